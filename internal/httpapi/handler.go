package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"strconv"
	"strings"
	"time"

	"yardops/yard-service/internal/catalog"
	"yardops/yard-service/internal/models"
	"yardops/yard-service/internal/store"
)

type Handler struct {
	store    store.YardStore
	resolver *catalog.Resolver
	loc      *time.Location
}

type Options struct {
	// Location is the yard wall-clock zone used for report date parsing
	// and timestamp rendering. Defaults to UTC when nil.
	Location *time.Location
}

func NewHandler(yardStore store.YardStore, resolver *catalog.Resolver, options Options) *Handler {
	loc := options.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{store: yardStore, resolver: resolver, loc: loc}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", expvar.Handler())
	mux.HandleFunc("/services/register", h.handleRegister)
	mux.HandleFunc("/services/completed", h.handleCompleted)
	mux.HandleFunc("/services/revert", h.handleRevert)
	mux.HandleFunc("/allocation/pending-vehicles", h.handlePendingVehicles)
	mux.HandleFunc("/allocation/areas/", h.handlePendingAreas)
	mux.HandleFunc("/allocation/boxes", h.handleFreeBays)
	mux.HandleFunc("/allocation/workers", h.handleWorkers)
	mux.HandleFunc("/allocation/assign", h.handleAssign)
	mux.HandleFunc("/boxes/active", h.handleActiveBays)
	mux.HandleFunc("/boxes/", h.handleBayActions)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type registerItem struct {
	Area string `json:"area"`
	Type string `json:"type"`
	Qty  int    `json:"qty"`
}

type registerRequest struct {
	VehicleID   int64          `json:"vehicleId"`
	Odometer    int64          `json:"odometer"`
	Observation string         `json:"observation"`
	Items       []registerItem `json:"items"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.VehicleID <= 0 || len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "vehicleId and items are required")
		return
	}

	items := make([]store.RegisterItem, 0, len(req.Items))
	for _, item := range req.Items {
		area := strings.TrimSpace(item.Area)
		if !models.ValidArea(area) {
			writeError(w, http.StatusBadRequest, "area_invalid", "unknown work area: "+area)
			return
		}
		serviceType := strings.TrimSpace(item.Type)
		if serviceType == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "item type is required")
			return
		}
		items = append(items, store.RegisterItem{Area: area, ServiceType: serviceType, Quantity: item.Qty})
	}

	err := h.store.RegisterServices(r.Context(), store.RegisterInput{
		VehicleID:   req.VehicleID,
		Odometer:    req.Odometer,
		Observation: strings.TrimSpace(req.Observation),
		Items:       items,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handlePendingVehicles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	vehicles, err := h.store.ListPendingVehicles(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if raw := r.URL.Query().Get("plate"); raw != "" {
		wanted, ok := models.NormalizePlate(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_request", "plate is not a recognizable format")
			return
		}
		filtered := make([]store.VehicleSummary, 0, len(vehicles))
		for _, vehicle := range vehicles {
			if plate, ok := models.NormalizePlate(vehicle.Plate); ok && plate == wanted {
				filtered = append(filtered, vehicle)
			}
		}
		vehicles = filtered
	}
	if vehicles == nil {
		vehicles = []store.VehicleSummary{}
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func (h *Handler) handlePendingAreas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/allocation/areas/"), "/")
	vehicleID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || vehicleID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "vehicle id must be a positive integer")
		return
	}

	areas, err := h.store.PendingAreas(r.Context(), vehicleID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, areas)
}

func (h *Handler) handleFreeBays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	bays, err := h.store.ListFreeBays(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if bays == nil {
		bays = []models.Bay{}
	}
	writeJSON(w, http.StatusOK, bays)
}

func (h *Handler) handleWorkers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	workers, err := h.store.ListWorkers(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if workers == nil {
		workers = []models.Worker{}
	}
	writeJSON(w, http.StatusOK, workers)
}

type assignRequest struct {
	VehicleID int64  `json:"vehicleId"`
	Area      string `json:"area"`
	BayID     int    `json:"bayId"`
	WorkerID  int64  `json:"workerId"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req assignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Area = strings.TrimSpace(req.Area)
	if req.VehicleID <= 0 || req.BayID <= 0 || req.WorkerID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "vehicleId, bayId and workerId are required")
		return
	}
	if !models.ValidArea(req.Area) {
		writeError(w, http.StatusBadRequest, "area_invalid", "unknown work area: "+req.Area)
		return
	}

	operator, ok := operatorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	_, err := h.store.AssignBay(r.Context(), store.AssignInput{
		VehicleID:  req.VehicleID,
		Area:       req.Area,
		BayID:      req.BayID,
		WorkerID:   req.WorkerID,
		OperatorID: operator,
		AssignedAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleActiveBays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snapshots, err := h.store.ActiveBays(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	for i := range snapshots {
		if snapshots[i].Execution != nil {
			h.localizeExecution(snapshots[i].Execution)
		}
	}
	if snapshots == nil {
		snapshots = []store.BaySnapshot{}
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (h *Handler) handleBayActions(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/boxes/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	bayID, err := strconv.Atoi(parts[0])
	if err != nil || bayID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "bay id must be a positive integer")
		return
	}

	switch parts[1] {
	case "details":
		h.handleBayDetails(w, r, bayID)
	case "services":
		h.handleAddService(w, r, bayID)
	case "unassign":
		h.handleUnassign(w, r, bayID)
	case "finalize":
		h.handleFinalize(w, r, bayID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleBayDetails(w http.ResponseWriter, r *http.Request, bayID int) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	detail, err := h.store.BayDetails(r.Context(), bayID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	h.localizeExecution(&detail.Execution)
	for i := range detail.Requests {
		detail.Requests[i].CreatedAt = detail.Requests[i].CreatedAt.In(h.loc)
		if detail.Requests[i].UpdatedAt != nil {
			local := detail.Requests[i].UpdatedAt.In(h.loc)
			detail.Requests[i].UpdatedAt = &local
		}
	}
	writeJSON(w, http.StatusOK, detail)
}

type addServiceRequest struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) handleAddService(w http.ResponseWriter, r *http.Request, bayID int) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req addServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Type = strings.TrimSpace(req.Type)
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "type is required")
		return
	}

	area, err := h.resolver.AreaOf(r.Context(), req.Type)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	operator, ok := operatorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	_, err = h.store.AddService(r.Context(), store.AddServiceInput{
		BayID:       bayID,
		Area:        area,
		ServiceType: req.Type,
		Quantity:    req.Quantity,
		OperatorID:  operator,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleUnassign(w http.ResponseWriter, r *http.Request, bayID int) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := h.store.UnassignBay(r.Context(), bayID); err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type finalizeItem struct {
	Area     string `json:"area"`
	ID       int64  `json:"id"`
	Quantity int    `json:"quantity"`
}

type finalizeRequest struct {
	FinalObservation string         `json:"finalObservation"`
	Services         []finalizeItem `json:"services"`
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request, bayID int) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req finalizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	items := make([]store.FinalizeItem, 0, len(req.Services))
	for _, item := range req.Services {
		area := strings.TrimSpace(item.Area)
		if !models.ValidArea(area) {
			writeError(w, http.StatusBadRequest, "area_invalid", "unknown work area: "+area)
			return
		}
		if item.ID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "service id must be a positive integer")
			return
		}
		items = append(items, store.FinalizeItem{RequestID: item.ID, Area: area, ExecutedQty: item.Quantity})
	}

	operator, ok := operatorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	err := h.store.FinalizeBay(r.Context(), store.FinalizeInput{
		BayID:            bayID,
		FinalObservation: strings.TrimSpace(req.FinalObservation),
		Services:         items,
		OperatorID:       operator,
		FinishedAt:       time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleCompleted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	start, ok := h.parseDate(w, r.URL.Query().Get("start"), "start")
	if !ok {
		return
	}
	end, ok := h.parseDate(w, r.URL.Query().Get("end"), "end")
	if !ok {
		return
	}

	rows, err := h.store.CompletedServices(r.Context(), start, end.AddDate(0, 0, 1))
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	for i := range rows {
		rows[i].FinishedAt = rows[i].FinishedAt.In(h.loc)
	}
	if rows == nil {
		rows = []store.CompletedRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type revertRequest struct {
	VehicleID int64 `json:"vehicleId"`
	Odometer  int64 `json:"odometer"`
}

func (h *Handler) handleRevert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req revertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.VehicleID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "vehicleId is required")
		return
	}

	if err := h.store.RevertVisit(r.Context(), req.VehicleID, req.Odometer); err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) parseDate(w http.ResponseWriter, raw, name string) (time.Time, bool) {
	value, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", name+" must be a YYYY-MM-DD date")
		return time.Time{}, false
	}
	return value, true
}

func (h *Handler) localizeExecution(execution *models.Execution) {
	execution.StartedAt = execution.StartedAt.In(h.loc)
	if execution.FinishedAt != nil {
		local := execution.FinishedAt.In(h.loc)
		execution.FinishedAt = &local
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrAreaInvalid):
		return http.StatusBadRequest, "area_invalid", "unknown work area"
	case errors.Is(err, store.ErrServiceTypeUnknown):
		return http.StatusBadRequest, "service_type_unknown", "service type not in catalog"
	case errors.Is(err, store.ErrVehicleAlreadyActive):
		return http.StatusConflict, "vehicle_already_active", "vehicle already allocated to a bay"
	case errors.Is(err, store.ErrBayBusy):
		return http.StatusConflict, "bay_busy", "bay already occupied"
	case errors.Is(err, store.ErrNoPendingRequests):
		return http.StatusConflict, "no_pending_requests", "no pending requests for this area"
	case errors.Is(err, store.ErrNoActiveExecution):
		return http.StatusNotFound, "no_active_execution", "no active execution on this bay"
	case errors.Is(err, store.ErrVisitNotFound):
		return http.StatusNotFound, "visit_not_found", "no finalized visit matches"
	case errors.Is(err, store.ErrVehicleNotFound):
		return http.StatusNotFound, "vehicle_not_found", "vehicle not found"
	case errors.Is(err, store.ErrBayNotFound):
		return http.StatusNotFound, "bay_not_found", "bay not found"
	case errors.Is(err, store.ErrRequestNotFound):
		return http.StatusNotFound, "request_not_found", "service request not bound to this execution"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout", "operation timed out"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
