package recording

import "sync"

// GateState is the lifecycle state of batch operations on a recording
type GateState string

const (
	GateIdle      GateState = "idle"      // Nothing has run yet
	GateRunning   GateState = "running"   // An operation is running. Everything else is refused.
	GateCommitted GateState = "committed" // The last operation succeeded
	GateFailed    GateState = "failed"    // The last operation failed, possibly part way through
)

// Gate allows only one operation at a time.
// Running is entered by Begin, and left by End, which records the outcome.
// Both terminal states accept a new Begin.
type Gate struct {
	lock    sync.Mutex
	state   GateState
	op      string // Current or most recent operation
	lastErr error
}

// Begin enters the Running state, or returns ErrBusy if an operation is already running
func (g *Gate) Begin(op string) error {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.state == GateRunning {
		return newError(KindBusy, nil, "Cannot start '%v' while '%v' is running", op, g.op)
	}
	g.state = GateRunning
	g.op = op
	g.lastErr = nil
	return nil
}

// End leaves the Running state
func (g *Gate) End(err error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if err != nil {
		g.state = GateFailed
	} else {
		g.state = GateCommitted
	}
	g.lastErr = err
}

// State returns the current state, the current or last operation, and the last error
func (g *Gate) State() (GateState, string, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	state := g.state
	if state == "" {
		state = GateIdle
	}
	return state, g.op, g.lastErr
}

// Enabled is true when no operation is running
func (g *Gate) Enabled() bool {
	s, _, _ := g.State()
	return s != GateRunning
}
