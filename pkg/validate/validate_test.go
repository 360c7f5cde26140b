package validate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type span struct {
	Start int `json:"start" validate:"min=0"`
	End   int `json:"end" validate:"gtfield=Start"`
}

type request struct {
	Span   span `json:"span"`
	Window int  `json:"window" validate:"min=1,max=100"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(&request{Span: span{Start: 0, End: 5}, Window: 2}))

	err := Struct(&request{Span: span{Start: 5, End: 5}, Window: 0})
	require.Error(t, err)
	require.Contains(t, err.Error(), "span.end must be greater than start")
	require.Contains(t, err.Error(), "window must be at least 1")
}
