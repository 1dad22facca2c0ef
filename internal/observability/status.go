package observability

import (
	"sync"
	"time"
)

// SystemStatus is what the live status line renders.
type SystemStatus struct {
	mu            sync.RWMutex
	Phase         string
	ActiveStage   string
	Tokens        int
	CO2Grams      float64
	LastHeartbeat time.Time
}

var globalStatus = &SystemStatus{
	Phase:         "idle",
	LastHeartbeat: time.Now(),
}

// SetStatus updates the phase and the stage currently in flight.
func SetStatus(phase, stage string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.Phase = phase
	globalStatus.ActiveStage = stage
}

// SetUsage updates the token counters.
func SetUsage(tokens int, co2 float64) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.Tokens = tokens
	globalStatus.CO2Grams = co2
}

// Status is a copy of the global system status.
type Status struct {
	Phase         string
	ActiveStage   string
	Tokens        int
	CO2Grams      float64
	LastHeartbeat time.Time
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() Status {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return Status{
		Phase:         globalStatus.Phase,
		ActiveStage:   globalStatus.ActiveStage,
		Tokens:        globalStatus.Tokens,
		CO2Grams:      globalStatus.CO2Grams,
		LastHeartbeat: globalStatus.LastHeartbeat,
	}
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
