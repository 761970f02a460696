package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
	err    error
}

func (s *captureSink) Consume(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, evt)
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestHubDeliversEventsInOrder(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(nil, sink)

	hub.Emit(Event{RunID: "r1", Stage: StageRunStart})
	hub.Emit(Event{RunID: "r1", Stage: StageAppStart, AppID: 440})
	hub.Emit(Event{RunID: "r1", Stage: StageAppDone, AppID: 440, TrailerFound: true})
	hub.Emit(Event{RunID: "r1", Stage: StagePageWritten, Path: "out/rando_bin_1.html"})
	hub.Emit(Event{RunID: "r1", Stage: StageRunDone, Dur: time.Second})

	require.NoError(t, hub.Close(context.Background()))

	got := sink.snapshot()
	require.Len(t, got, 5)
	require.Equal(t, StageRunStart, got[0].Stage)
	require.Equal(t, StageRunDone, got[4].Stage)
	require.True(t, sink.closed)
	for _, evt := range got {
		require.False(t, evt.TS.IsZero(), "hub must stamp events")
	}
}

func TestHubDropsInvalidEvents(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(nil, sink)

	hub.Emit(Event{Stage: StageRunStart})                // missing run id
	hub.Emit(Event{RunID: "r1", Stage: Stage("BOGUS")})  // unknown stage
	hub.Emit(Event{RunID: "r1", Stage: StageAppStart})   // missing appid
	hub.Emit(Event{RunID: "r1", Stage: StagePageWritten}) // missing path

	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.snapshot())
}

func TestHubSurvivesSinkErrors(t *testing.T) {
	bad := &captureSink{err: errors.New("sink down")}
	good := &captureSink{}
	hub := NewHub(nil, bad, good)

	hub.Emit(Event{RunID: "r1", Stage: StageRunStart})
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, good.snapshot(), 1)
}

func TestHubNilAndDoubleCloseAreSafe(t *testing.T) {
	var nilHub *Hub
	nilHub.Emit(Event{RunID: "r1", Stage: StageRunStart})
	require.NoError(t, nilHub.Close(context.Background()))

	hub := NewHub(nil)
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
	hub.Emit(Event{RunID: "r1", Stage: StageRunStart}) // ignored after close
}

func TestEventValidate(t *testing.T) {
	now := time.Now()
	require.NoError(t, Event{RunID: "r", TS: now, Stage: StageRunStart}.Validate())
	require.NoError(t, Event{RunID: "r", TS: now, Stage: StageAppDone, AppID: 1}.Validate())
	require.Error(t, Event{TS: now, Stage: StageRunStart}.Validate())
	require.Error(t, Event{RunID: "r", Stage: StageRunStart}.Validate())
	require.Error(t, Event{RunID: "r", TS: now, Stage: StageRunDone, Dur: -time.Second}.Validate())
}
