package models

import "time"

type ServiceRequest struct {
	RequestID       int64      `json:"request_id"`
	Area            string     `json:"area"`
	VehicleID       int64      `json:"vehicle_id"`
	ServiceType     string     `json:"service_type"`
	RequestedQty    int        `json:"requested_qty"`
	ExecutedQty     *int       `json:"executed_qty,omitempty"`
	Observation     string     `json:"observation,omitempty"`
	ExecObservation string     `json:"exec_observation,omitempty"`
	Odometer        int64      `json:"odometer"`
	Status          string     `json:"status"`
	BayID           *int       `json:"bay_id,omitempty"`
	WorkerID        *int64     `json:"worker_id,omitempty"`
	ExecutionID     *int64     `json:"execution_id,omitempty"`
	AddedBy         string     `json:"added_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusFinalized  = "finalized"
	StatusCancelled  = "cancelled"
)

const (
	AreaTire  = "tire"
	AreaAlign = "align"
	AreaMaint = "maint"
)

// Areas returns the work areas in catalog resolution order.
func Areas() []string {
	return []string{AreaTire, AreaAlign, AreaMaint}
}

func ValidArea(area string) bool {
	switch area {
	case AreaTire, AreaAlign, AreaMaint:
		return true
	default:
		return false
	}
}
