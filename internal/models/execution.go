package models

import "time"

// Execution is one vehicle's visit to a bay, from allocation through
// finalize or cancellation. Driver identity is snapshotted at allocation
// time so later vehicle edits do not rewrite historical records.
type Execution struct {
	ExecutionID   int64      `json:"execution_id"`
	VehicleID     int64      `json:"vehicle_id"`
	BayID         int        `json:"bay_id"`
	WorkerID      int64      `json:"worker_id"`
	Odometer      int64      `json:"odometer"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	AssignedBy    string     `json:"assigned_by,omitempty"`
	FinalizedBy   string     `json:"finalized_by,omitempty"`
	DriverName    string     `json:"driver_name,omitempty"`
	DriverContact string     `json:"driver_contact,omitempty"`
}

const (
	ExecutionInProgress = "in_progress"
	ExecutionFinalized  = "finalized"
	ExecutionCancelled  = "cancelled"
)
