package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"yardops/yard-service/internal/catalog"
	"yardops/yard-service/internal/models"
	"yardops/yard-service/internal/store"
)

type fakeStore struct {
	registerFn        func(ctx context.Context, input store.RegisterInput) error
	pendingVehiclesFn func(ctx context.Context) ([]store.VehicleSummary, error)
	pendingAreasFn    func(ctx context.Context, vehicleID int64) (store.PendingAreas, error)
	freeBaysFn        func(ctx context.Context) ([]models.Bay, error)
	workersFn         func(ctx context.Context) ([]models.Worker, error)
	assignFn          func(ctx context.Context, input store.AssignInput) (models.Execution, error)
	activeBaysFn      func(ctx context.Context) ([]store.BaySnapshot, error)
	bayDetailsFn      func(ctx context.Context, bayID int) (store.BayDetail, error)
	addServiceFn      func(ctx context.Context, input store.AddServiceInput) (models.ServiceRequest, error)
	unassignFn        func(ctx context.Context, bayID int) error
	finalizeFn        func(ctx context.Context, input store.FinalizeInput) error
	completedFn       func(ctx context.Context, start, end time.Time) ([]store.CompletedRow, error)
	revertFn          func(ctx context.Context, vehicleID, odometer int64) error
	recomputeFn       func(ctx context.Context, vehicleID int64) (*float64, error)
	sessionFn         func(ctx context.Context, sessionID string) (store.Session, error)
}

func (f fakeStore) RegisterServices(ctx context.Context, input store.RegisterInput) error {
	if f.registerFn == nil {
		return nil
	}
	return f.registerFn(ctx, input)
}

func (f fakeStore) ListPendingVehicles(ctx context.Context) ([]store.VehicleSummary, error) {
	if f.pendingVehiclesFn == nil {
		return nil, nil
	}
	return f.pendingVehiclesFn(ctx)
}

func (f fakeStore) PendingAreas(ctx context.Context, vehicleID int64) (store.PendingAreas, error) {
	if f.pendingAreasFn == nil {
		return store.PendingAreas{}, nil
	}
	return f.pendingAreasFn(ctx, vehicleID)
}

func (f fakeStore) ListFreeBays(ctx context.Context) ([]models.Bay, error) {
	if f.freeBaysFn == nil {
		return nil, nil
	}
	return f.freeBaysFn(ctx)
}

func (f fakeStore) ListWorkers(ctx context.Context) ([]models.Worker, error) {
	if f.workersFn == nil {
		return nil, nil
	}
	return f.workersFn(ctx)
}

func (f fakeStore) AssignBay(ctx context.Context, input store.AssignInput) (models.Execution, error) {
	if f.assignFn == nil {
		return models.Execution{}, nil
	}
	return f.assignFn(ctx, input)
}

func (f fakeStore) ActiveBays(ctx context.Context) ([]store.BaySnapshot, error) {
	if f.activeBaysFn == nil {
		return nil, nil
	}
	return f.activeBaysFn(ctx)
}

func (f fakeStore) BayDetails(ctx context.Context, bayID int) (store.BayDetail, error) {
	if f.bayDetailsFn == nil {
		return store.BayDetail{}, nil
	}
	return f.bayDetailsFn(ctx, bayID)
}

func (f fakeStore) AddService(ctx context.Context, input store.AddServiceInput) (models.ServiceRequest, error) {
	if f.addServiceFn == nil {
		return models.ServiceRequest{}, nil
	}
	return f.addServiceFn(ctx, input)
}

func (f fakeStore) UnassignBay(ctx context.Context, bayID int) error {
	if f.unassignFn == nil {
		return nil
	}
	return f.unassignFn(ctx, bayID)
}

func (f fakeStore) FinalizeBay(ctx context.Context, input store.FinalizeInput) error {
	if f.finalizeFn == nil {
		return nil
	}
	return f.finalizeFn(ctx, input)
}

func (f fakeStore) CompletedServices(ctx context.Context, start, end time.Time) ([]store.CompletedRow, error) {
	if f.completedFn == nil {
		return nil, nil
	}
	return f.completedFn(ctx, start, end)
}

func (f fakeStore) RevertVisit(ctx context.Context, vehicleID, odometer int64) error {
	if f.revertFn == nil {
		return nil
	}
	return f.revertFn(ctx, vehicleID, odometer)
}

func (f fakeStore) RecomputeDailyAverage(ctx context.Context, vehicleID int64) (*float64, error) {
	if f.recomputeFn == nil {
		return nil, nil
	}
	return f.recomputeFn(ctx, vehicleID)
}

func (f fakeStore) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	if f.sessionFn == nil {
		if sessionID == "valid-token" {
			return store.Session{SessionID: sessionID, UserID: "op-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		}
		return store.Session{}, store.ErrSessionNotFound
	}
	return f.sessionFn(ctx, sessionID)
}

type fakeCatalog struct {
	areas map[string]string
}

func (f fakeCatalog) AreaOf(ctx context.Context, name string) (string, error) {
	area, ok := f.areas[name]
	if !ok {
		return "", store.ErrServiceTypeUnknown
	}
	return area, nil
}

func newTestServer(fake fakeStore, areas map[string]string) http.Handler {
	resolver := catalog.New(fakeCatalog{areas: areas}, time.Hour)
	handler := NewHandler(fake, resolver, Options{})
	return AuthMiddleware(fake, handler.Routes())
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if authed {
		req.Header.Set("Authorization", "Bearer valid-token")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload.Error.Code
}

func TestRegisterRejectsUnknownArea(t *testing.T) {
	called := false
	handler := newTestServer(fakeStore{
		registerFn: func(ctx context.Context, input store.RegisterInput) error {
			called = true
			return nil
		},
	}, nil)

	body := map[string]any{
		"vehicleId": 1,
		"odometer":  120000,
		"items":     []map[string]any{{"area": "paint", "type": "TIRE_SWAP", "qty": 1}},
	}
	recorder := doRequest(t, handler, http.MethodPost, "/services/register", body, true)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", recorder.Code)
	}
	if code := errorCode(t, recorder); code != "area_invalid" {
		t.Fatalf("got code %q, want area_invalid", code)
	}
	if called {
		t.Fatal("store must not be reached on validation failure")
	}
}

func TestRegisterForwardsItems(t *testing.T) {
	var got store.RegisterInput
	handler := newTestServer(fakeStore{
		registerFn: func(ctx context.Context, input store.RegisterInput) error {
			got = input
			return nil
		},
	}, nil)

	body := map[string]any{
		"vehicleId":   7,
		"odometer":    120000,
		"observation": "front left worn",
		"items": []map[string]any{
			{"area": "tire", "type": "TIRE_SWAP", "qty": 2},
			{"area": "maint", "type": "OIL_CHANGE", "qty": 1},
		},
	}
	recorder := doRequest(t, handler, http.MethodPost, "/services/register", body, true)
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", recorder.Code, recorder.Body.String())
	}
	if got.VehicleID != 7 || got.Odometer != 120000 || len(got.Items) != 2 {
		t.Fatalf("unexpected input: %+v", got)
	}
	if got.Items[1].Area != "maint" || got.Items[1].ServiceType != "OIL_CHANGE" {
		t.Fatalf("unexpected second item: %+v", got.Items[1])
	}
}

func TestAssignRequiresAuth(t *testing.T) {
	handler := newTestServer(fakeStore{}, nil)
	body := map[string]any{"vehicleId": 1, "area": "tire", "bayId": 3, "workerId": 2}
	recorder := doRequest(t, handler, http.MethodPost, "/allocation/assign", body, false)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", recorder.Code)
	}
}

func TestAssignConflicts(t *testing.T) {
	cases := []struct {
		name     string
		storeErr error
		wantCode string
	}{
		{"vehicle active", store.ErrVehicleAlreadyActive, "vehicle_already_active"},
		{"bay busy", store.ErrBayBusy, "bay_busy"},
		{"nothing pending", store.ErrNoPendingRequests, "no_pending_requests"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(fakeStore{
				assignFn: func(ctx context.Context, input store.AssignInput) (models.Execution, error) {
					return models.Execution{}, tt.storeErr
				},
			}, nil)
			body := map[string]any{"vehicleId": 1, "area": "align", "bayId": 4, "workerId": 2}
			recorder := doRequest(t, handler, http.MethodPost, "/allocation/assign", body, true)
			if recorder.Code != http.StatusConflict {
				t.Fatalf("got status %d, want 409", recorder.Code)
			}
			if code := errorCode(t, recorder); code != tt.wantCode {
				t.Fatalf("got code %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestAssignStampsOperator(t *testing.T) {
	var got store.AssignInput
	handler := newTestServer(fakeStore{
		assignFn: func(ctx context.Context, input store.AssignInput) (models.Execution, error) {
			got = input
			return models.Execution{ExecutionID: 11}, nil
		},
	}, nil)
	body := map[string]any{"vehicleId": 1, "area": "tire", "bayId": 3, "workerId": 2}
	recorder := doRequest(t, handler, http.MethodPost, "/allocation/assign", body, true)
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", recorder.Code, recorder.Body.String())
	}
	if got.OperatorID != "op-1" {
		t.Fatalf("got operator %q, want op-1", got.OperatorID)
	}
}

func TestAddServiceResolvesArea(t *testing.T) {
	var got store.AddServiceInput
	handler := newTestServer(fakeStore{
		addServiceFn: func(ctx context.Context, input store.AddServiceInput) (models.ServiceRequest, error) {
			got = input
			return models.ServiceRequest{RequestID: 9}, nil
		},
	}, map[string]string{"ALIGN_FRONT": "align"})

	body := map[string]any{"type": "ALIGN_FRONT", "quantity": 1}
	recorder := doRequest(t, handler, http.MethodPost, "/boxes/5/services", body, true)
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", recorder.Code, recorder.Body.String())
	}
	if got.BayID != 5 || got.Area != "align" || got.ServiceType != "ALIGN_FRONT" {
		t.Fatalf("unexpected input: %+v", got)
	}
	if got.OperatorID != "op-1" {
		t.Fatalf("got operator %q, want op-1", got.OperatorID)
	}
}

func TestAddServiceUnknownType(t *testing.T) {
	handler := newTestServer(fakeStore{}, map[string]string{})
	body := map[string]any{"type": "NOT_IN_CATALOG", "quantity": 1}
	recorder := doRequest(t, handler, http.MethodPost, "/boxes/5/services", body, true)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", recorder.Code)
	}
	if code := errorCode(t, recorder); code != "service_type_unknown" {
		t.Fatalf("got code %q, want service_type_unknown", code)
	}
}

func TestFinalizeNoActiveExecution(t *testing.T) {
	handler := newTestServer(fakeStore{
		finalizeFn: func(ctx context.Context, input store.FinalizeInput) error {
			return store.ErrNoActiveExecution
		},
	}, nil)
	body := map[string]any{"services": []map[string]any{{"area": "tire", "id": 1, "quantity": 1}}}
	recorder := doRequest(t, handler, http.MethodPost, "/boxes/3/finalize", body, true)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", recorder.Code)
	}
	if code := errorCode(t, recorder); code != "no_active_execution" {
		t.Fatalf("got code %q", code)
	}
}

func TestFinalizeForwardsPayload(t *testing.T) {
	var got store.FinalizeInput
	handler := newTestServer(fakeStore{
		finalizeFn: func(ctx context.Context, input store.FinalizeInput) error {
			got = input
			return nil
		},
	}, nil)
	body := map[string]any{
		"finalObservation": "replaced both fronts",
		"services": []map[string]any{
			{"area": "tire", "id": 1, "quantity": 1},
			{"area": "tire", "id": 2, "quantity": 2},
		},
	}
	recorder := doRequest(t, handler, http.MethodPost, "/boxes/3/finalize", body, true)
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", recorder.Code, recorder.Body.String())
	}
	if got.BayID != 3 || len(got.Services) != 2 || got.FinalObservation != "replaced both fronts" {
		t.Fatalf("unexpected input: %+v", got)
	}
	if got.Services[1].RequestID != 2 || got.Services[1].ExecutedQty != 2 {
		t.Fatalf("unexpected second item: %+v", got.Services[1])
	}
	if got.OperatorID != "op-1" {
		t.Fatalf("got operator %q, want op-1", got.OperatorID)
	}
}

func TestFinalizeDeadlineMapsToTimeout(t *testing.T) {
	handler := newTestServer(fakeStore{
		finalizeFn: func(ctx context.Context, input store.FinalizeInput) error {
			return context.DeadlineExceeded
		},
	}, nil)
	body := map[string]any{"services": []map[string]any{{"area": "tire", "id": 1, "quantity": 1}}}
	recorder := doRequest(t, handler, http.MethodPost, "/boxes/3/finalize", body, true)
	if recorder.Code != http.StatusGatewayTimeout {
		t.Fatalf("got status %d, want 504", recorder.Code)
	}
	if code := errorCode(t, recorder); code != "timeout" {
		t.Fatalf("got code %q, want timeout", code)
	}
}

func TestUnassignBay(t *testing.T) {
	var gotBay int
	handler := newTestServer(fakeStore{
		unassignFn: func(ctx context.Context, bayID int) error {
			gotBay = bayID
			return nil
		},
	}, nil)
	recorder := doRequest(t, handler, http.MethodPost, "/boxes/4/unassign", nil, true)
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", recorder.Code, recorder.Body.String())
	}
	if gotBay != 4 {
		t.Fatalf("got bay %d, want 4", gotBay)
	}
}

func TestRevertVisitNotFound(t *testing.T) {
	handler := newTestServer(fakeStore{
		revertFn: func(ctx context.Context, vehicleID, odometer int64) error {
			return store.ErrVisitNotFound
		},
	}, nil)
	body := map[string]any{"vehicleId": 1, "odometer": 120000}
	recorder := doRequest(t, handler, http.MethodPost, "/services/revert", body, true)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", recorder.Code)
	}
	if code := errorCode(t, recorder); code != "visit_not_found" {
		t.Fatalf("got code %q", code)
	}
}

func TestPendingAreasPathParsing(t *testing.T) {
	handler := newTestServer(fakeStore{
		pendingAreasFn: func(ctx context.Context, vehicleID int64) (store.PendingAreas, error) {
			if vehicleID != 7 {
				t.Fatalf("got vehicle %d, want 7", vehicleID)
			}
			return store.PendingAreas{Areas: []string{"tire", "maint"}, Odometer: 120000}, nil
		},
	}, nil)

	recorder := doRequest(t, handler, http.MethodGet, "/allocation/areas/7", nil, true)
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", recorder.Code, recorder.Body.String())
	}
	var payload store.PendingAreas
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Areas) != 2 || payload.Odometer != 120000 {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	recorder = doRequest(t, handler, http.MethodGet, "/allocation/areas/not-a-number", nil, true)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", recorder.Code)
	}
}

func TestPendingVehiclesPlateFilter(t *testing.T) {
	handler := newTestServer(fakeStore{
		pendingVehiclesFn: func(ctx context.Context) ([]store.VehicleSummary, error) {
			return []store.VehicleSummary{
				{VehicleID: 1, Plate: "ABC-1234"},
				{VehicleID: 2, Plate: "XYZ-9876"},
			}, nil
		},
	}, nil)

	recorder := doRequest(t, handler, http.MethodGet, "/allocation/pending-vehicles?plate=abc1234", nil, true)
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", recorder.Code, recorder.Body.String())
	}
	var vehicles []store.VehicleSummary
	if err := json.Unmarshal(recorder.Body.Bytes(), &vehicles); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(vehicles) != 1 || vehicles[0].VehicleID != 1 {
		t.Fatalf("unexpected filter result: %+v", vehicles)
	}

	recorder = doRequest(t, handler, http.MethodGet, "/allocation/pending-vehicles?plate=123", nil, true)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400 for malformed plate", recorder.Code)
	}
}

func TestCompletedRequiresDates(t *testing.T) {
	handler := newTestServer(fakeStore{}, nil)
	recorder := doRequest(t, handler, http.MethodGet, "/services/completed?start=2024-01-01", nil, true)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", recorder.Code)
	}
}

func TestCompletedEndIsInclusive(t *testing.T) {
	var gotStart, gotEnd time.Time
	handler := newTestServer(fakeStore{
		completedFn: func(ctx context.Context, start, end time.Time) ([]store.CompletedRow, error) {
			gotStart, gotEnd = start, end
			return nil, nil
		},
	}, nil)
	recorder := doRequest(t, handler, http.MethodGet, "/services/completed?start=2024-01-01&end=2024-01-31", nil, true)
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", recorder.Code, recorder.Body.String())
	}
	if !gotEnd.Equal(gotStart.AddDate(0, 0, 31)) {
		t.Fatalf("end %s should be one day past the requested range", gotEnd)
	}
}
