package eventstore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInfoAndErrorRecorded(t *testing.T) {
	es := New(10)
	es.Info("mon", "deployed mon.h1")
	es.Error("mon", "agent exited 1")

	events := es.For("mon")
	require.Len(t, events, 2)
	require.NotEmpty(t, events[0].ID)
	require.NotEqual(t, events[0].ID, events[1].ID)
}

func TestRingEvictsOldest(t *testing.T) {
	es := New(3)
	for i := 0; i < 5; i++ {
		es.Info("osd.3", fmt.Sprintf("tick %d", i))
	}
	events := es.For("osd.3")
	require.Len(t, events, 3)
	require.Equal(t, "tick 2", events[0].Message)
	require.Equal(t, "tick 4", events[2].Message)
}

func TestForUnknownSubjectIsEmpty(t *testing.T) {
	es := New(10)
	require.Empty(t, es.For("ghost"))
}

func TestClearRemovesSubject(t *testing.T) {
	es := New(10)
	es.Info("mgr", "hello")
	es.Clear("mgr")
	require.Empty(t, es.For("mgr"))
}
