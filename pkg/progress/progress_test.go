package progress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []Event
}

func (r *recorder) OnProgress(ev Event) {
	r.events = append(r.events, ev)
}

func TestSender(t *testing.T) {
	s := Sender{}
	a := &recorder{}
	b := &recorder{}
	s.AddListener(a)
	s.AddListener(a)
	s.AddListener(b)

	s.Send(Event{Operation: "crop", Stage: StageProgress, Done: 1, Total: 4})
	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	require.Equal(t, 0.25, a.events[0].Ratio)

	s.RemoveListener(b)
	s.Send(Event{Operation: "crop", Stage: StageDone, Done: 4, Total: 4})
	require.Len(t, a.events, 2)
	require.Len(t, b.events, 1)
	require.Equal(t, 1.0, a.events[1].Ratio)

	count := 0
	f := Func(func(ev Event) { count++ })
	s.AddListener(&f)
	s.Send(Event{Stage: StageStart})
	s.RemoveListener(&f)
	s.Send(Event{Stage: StageStart})
	require.Equal(t, 1, count)
}
