package store

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("run not found")

// Run is one persisted pipeline run. State holds the serialized pipeline
// state; it is empty in listings.
type Run struct {
	ID        string
	Owner     string
	Title     string
	Phase     string
	State     []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}
