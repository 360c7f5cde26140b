// Package progress delivers progress reports of long running batch operations
// to any number of synchronous listeners.
package progress

import "sync"

// Stage of an operation
type Stage string

const (
	StageStart    Stage = "start"
	StageProgress Stage = "progress"
	StageDone     Stage = "done"
	StageFailed   Stage = "failed"
	StageStale    Stage = "stale" // The directory changed underneath us, and needs to be reloaded
)

// Event is a single progress report
type Event struct {
	Operation  string  `json:"operation"`            // eg "detect", "removeDuplicates", "crop"
	Stage      Stage   `json:"stage"`                //
	Done       int     `json:"done"`                 // Number of items processed so far
	Total      int     `json:"total"`                // Total number of items, or 0 if unknown
	Duplicates int     `json:"duplicates,omitempty"` // Running duplicate count (detection only)
	Current    string  `json:"current,omitempty"`    // File currently being processed
	Compare    string  `json:"compare,omitempty"`    // File that Current is being compared against (detection only)
	Message    string  `json:"message,omitempty"`    //
	Ratio      float64 `json:"ratio"`                // Done/Total, or 0 if Total is 0
}

// Listener receives events.
// We use an interface instead of a function, because functions cannot be compared for equality,
// and we need that to remove a listener.
type Listener interface {
	OnProgress(ev Event)
}

// Sender sends events
type Sender struct {
	listenersLock sync.Mutex
	listeners     []Listener
}

// AddListener adds a listener, unless it is already present
func (s *Sender) AddListener(listener Listener) {
	s.listenersLock.Lock()
	defer s.listenersLock.Unlock()
	for _, l := range s.listeners {
		if l == listener {
			return
		}
	}
	s.listeners = append(s.listeners, listener)
}

// RemoveListener removes a listener, if it is present
func (s *Sender) RemoveListener(listener Listener) {
	s.listenersLock.Lock()
	defer s.listenersLock.Unlock()
	for i, l := range s.listeners {
		if l == listener {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Send an event to all listeners.
// Ratio is computed from Done and Total.
func (s *Sender) Send(ev Event) {
	if ev.Total > 0 {
		ev.Ratio = float64(ev.Done) / float64(ev.Total)
	}

	s.listenersLock.Lock()
	list := make([]Listener, len(s.listeners))
	copy(list, s.listeners)
	s.listenersLock.Unlock()

	for _, l := range list {
		l.OnProgress(ev)
	}
}

// Func adapts an ordinary function into a Listener.
// Because a Func cannot be compared, it must be wrapped in a pointer to be removed again.
type Func func(ev Event)

func (f *Func) OnProgress(ev Event) {
	(*f)(ev)
}
