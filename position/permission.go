package position

import (
	"sync"
)

type PermissionState int

const (
	PermissionPrompt PermissionState = iota
	PermissionGranted
	PermissionDenied
)

// PermissionGate holds the location permission state shared by both
// provider variants. The first operation triggers the request; once
// denied, every operation fails PermissionDenied until the state is
// changed externally via SetState.
type PermissionGate struct {
	mu        sync.Mutex
	state     PermissionState
	requester func() bool // asks the user; nil grants
}

func NewPermissionGate(requester func() bool) *PermissionGate {
	return &PermissionGate{requester: requester}
}

// Ensure resolves the permission, prompting on first use.
func (g *PermissionGate) Ensure() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case PermissionGranted:
		return nil
	case PermissionDenied:
		return errPermissionDenied()
	}

	granted := true
	if g.requester != nil {
		granted = g.requester()
	}
	if granted {
		g.state = PermissionGranted
		return nil
	}
	g.state = PermissionDenied
	return errPermissionDenied()
}

// SetState changes the permission externally (OS settings, a granted
// prompt on the device).
func (g *PermissionGate) SetState(state PermissionState) {
	g.mu.Lock()
	g.state = state
	g.mu.Unlock()
}

// State returns the current permission state.
func (g *PermissionGate) State() PermissionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}
