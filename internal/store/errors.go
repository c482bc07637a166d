package store

import "errors"

var (
	ErrAreaInvalid          = errors.New("invalid work area")
	ErrServiceTypeUnknown   = errors.New("unknown service type")
	ErrVehicleNotFound      = errors.New("vehicle not found")
	ErrVehicleAlreadyActive = errors.New("vehicle already active in a bay")
	ErrBayNotFound          = errors.New("bay not found")
	ErrBayBusy              = errors.New("bay occupied")
	ErrNoPendingRequests    = errors.New("no pending requests for area")
	ErrNoActiveExecution    = errors.New("no active execution on bay")
	ErrVisitNotFound        = errors.New("visit not found")
	ErrRequestNotFound      = errors.New("service request not found")
	ErrSessionNotFound      = errors.New("session not found")
)
