package voxmap

import "github.com/kailas-cloud/voxmap/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound          = domain.ErrNotFound
	ErrMapNotFound       = domain.ErrMapNotFound
	ErrNodeNotFound      = domain.ErrNodeNotFound
	ErrInvalidLabel      = domain.ErrInvalidLabel
	ErrInvalidRequest    = domain.ErrInvalidRequest
	ErrNoActiveSession   = domain.ErrNoActiveSession
	ErrSessionActive     = domain.ErrSessionActive
	ErrInvalidTransition = domain.ErrInvalidTransition
)
