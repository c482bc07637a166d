package store

import (
	"context"
	"encoding/json"
	"time"

	"yardops/yard-service/internal/models"
)

type RegisterItem struct {
	Area        string
	ServiceType string
	Quantity    int
}

type RegisterInput struct {
	VehicleID   int64
	Odometer    int64
	Observation string
	Items       []RegisterItem
	CreatedAt   time.Time
}

type AssignInput struct {
	VehicleID  int64
	Area       string
	BayID      int
	WorkerID   int64
	OperatorID string
	AssignedAt time.Time
}

type FinalizeItem struct {
	RequestID   int64
	Area        string
	ExecutedQty int
}

type FinalizeInput struct {
	BayID            int
	FinalObservation string
	Services         []FinalizeItem
	OperatorID       string
	FinishedAt       time.Time
}

type AddServiceInput struct {
	BayID       int
	Area        string
	ServiceType string
	Quantity    int
	OperatorID  string
}

type VehicleSummary struct {
	VehicleID int64  `json:"id"`
	Plate     string `json:"plate"`
	Company   string `json:"company,omitempty"`
}

type PendingAreas struct {
	Areas    []string `json:"areas"`
	Odometer int64    `json:"odometer"`
}

type BaySnapshot struct {
	Bay       models.Bay        `json:"bay"`
	Execution *models.Execution `json:"execution,omitempty"`
	Vehicle   *VehicleSummary   `json:"vehicle,omitempty"`
}

type BayDetail struct {
	Execution models.Execution        `json:"execution"`
	Vehicle   VehicleSummary          `json:"vehicle"`
	Requests  []models.ServiceRequest `json:"requests"`
}

type CompletedRow struct {
	Area        string    `json:"area"`
	RequestID   int64     `json:"request_id"`
	VehicleID   int64     `json:"vehicle_id"`
	Plate       string    `json:"plate"`
	ServiceType string    `json:"service_type"`
	ExecutedQty int       `json:"executed_qty"`
	Odometer    int64     `json:"odometer"`
	FinishedAt  time.Time `json:"finished_at"`
}

type Session struct {
	SessionID string
	UserID    string
	Name      string
	ExpiresAt time.Time
}

type OutboxEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// YardStore is the transactional boundary of the execution lifecycle
// engine. Every mutating call runs in a single database transaction;
// the daily-km recomputation triggered by finalize, unassign and revert
// runs in its own transaction after the mutation commits.
type YardStore interface {
	RegisterServices(ctx context.Context, input RegisterInput) error
	ListPendingVehicles(ctx context.Context) ([]VehicleSummary, error)
	PendingAreas(ctx context.Context, vehicleID int64) (PendingAreas, error)
	ListFreeBays(ctx context.Context) ([]models.Bay, error)
	ListWorkers(ctx context.Context) ([]models.Worker, error)
	AssignBay(ctx context.Context, input AssignInput) (models.Execution, error)
	ActiveBays(ctx context.Context) ([]BaySnapshot, error)
	BayDetails(ctx context.Context, bayID int) (BayDetail, error)
	AddService(ctx context.Context, input AddServiceInput) (models.ServiceRequest, error)
	UnassignBay(ctx context.Context, bayID int) error
	FinalizeBay(ctx context.Context, input FinalizeInput) error
	CompletedServices(ctx context.Context, start, end time.Time) ([]CompletedRow, error)
	RevertVisit(ctx context.Context, vehicleID, odometer int64) error
	RecomputeDailyAverage(ctx context.Context, vehicleID int64) (*float64, error)
	GetSession(ctx context.Context, sessionID string) (Session, error)
}
