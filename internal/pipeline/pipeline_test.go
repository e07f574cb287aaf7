package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-labs/wayfarer/internal/assistant"
	"github.com/wayfarer-labs/wayfarer/internal/domain"
	"github.com/wayfarer-labs/wayfarer/internal/store"
	"github.com/wayfarer-labs/wayfarer/internal/stream"
)

type fakeStreamer struct {
	body string
	err  error
	got  assistant.QueryRequest
}

func (f *fakeStreamer) Stream(_ context.Context, req assistant.QueryRequest) (io.ReadCloser, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func TestPipelineHotelScenario(t *testing.T) {
	t.Parallel()

	upstream := &fakeStreamer{body: "data: {\"hotels\":[{\"name\":\"h1\"}]}\n\n" +
		"data: {\"hotels\":[{\"name\":\"h1\"},{\"name\":\"h2\"}],\"general_city_data\":{\"city\":\"Tokyo\"}}\n\n" +
		"data: [DONE]\n\n"}
	repo := store.NewMemory()
	p := New(upstream, repo, nil)

	ctx := context.Background()
	scope := store.Scope{ProfileID: "anon_1", TabID: "tab1"}

	events, err := p.Run(ctx, scope, "Best hotels in Tokyo", nil)
	require.NoError(t, err)

	var kinds []stream.EventKind
	var final Event
	for ev := range events {
		kinds = append(kinds, ev.Kind)
		final = ev
	}

	require.Equal(t, []stream.EventKind{stream.EventProgress, stream.EventProgress, stream.EventComplete}, kinds)
	require.NotNil(t, final.Session)
	assert.Len(t, final.Session.Data.Hotels, 2)
	assert.Equal(t, "Tokyo", final.Session.City)
	assert.Equal(t, domain.StatusComplete, final.Session.Status)
	assert.Equal(t, domain.DomainAccommodation, final.Session.Domain)
	assert.Contains(t, final.Route, "/hotels?")
	assert.Contains(t, final.Route, "sessionId="+final.Session.SessionID)
	assert.Contains(t, final.Route, "cityName=Tokyo")

	// The upstream request carried the classified domain and profile.
	assert.Equal(t, "anon_1", upstream.got.ProfileID)
	assert.Equal(t, "accommodation", upstream.got.Domain)
	assert.Equal(t, final.Session.SessionID, upstream.got.SessionID)

	// Both slots persisted: completed matches the final state.
	current, err := repo.LoadCurrent(ctx, scope)
	require.NoError(t, err)
	completed, err := repo.LoadCompleted(ctx, scope)
	require.NoError(t, err)
	require.NotNil(t, current)
	require.NotNil(t, completed)
	assert.Equal(t, final.Session.SessionID, completed.SessionID)
	assert.Equal(t, domain.StatusComplete, completed.Status)
	assert.Len(t, completed.Data.Hotels, 2)
}

func TestPipelineMissingProfileFailsSynchronously(t *testing.T) {
	t.Parallel()

	repo := store.NewMemory()
	p := New(&fakeStreamer{}, repo, nil)

	_, err := p.Run(context.Background(), store.Scope{TabID: "tab1"}, "hi", nil)
	require.ErrorIs(t, err, assistant.ErrMissingProfile)

	// No partial session left behind.
	got, err := repo.LoadCurrent(context.Background(), store.Scope{TabID: "tab1"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPipelineNoUpstreamConfigured(t *testing.T) {
	t.Parallel()

	repo := store.NewMemory()
	p := New(nil, repo, nil)

	scope := store.Scope{ProfileID: "anon_1", TabID: "tab1"}
	_, err := p.Run(context.Background(), scope, "hi", nil)
	require.ErrorIs(t, err, ErrUpstreamUnavailable)

	// Slot recovery still works without an upstream.
	got, err := p.Current(context.Background(), scope)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPipelineUpstreamRefusal(t *testing.T) {
	t.Parallel()

	upstream := &fakeStreamer{err: errors.New("assistant returned non-OK status: 502")}
	repo := store.NewMemory()
	p := New(upstream, repo, nil)

	ctx := context.Background()
	scope := store.Scope{ProfileID: "anon_1", TabID: "tab1"}

	events, err := p.Run(ctx, scope, "Best hotels in Tokyo", nil)
	require.NoError(t, err)

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	assert.Equal(t, stream.EventError, got[0].Kind)
	require.Error(t, got[0].Err)
	assert.Equal(t, domain.StatusError, got[0].Session.Status)

	// The errored session is persisted in the current slot.
	current, err := repo.LoadCurrent(ctx, scope)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, domain.StatusError, current.Status)
}

func TestPipelineNewQueryReplacesCurrentSlot(t *testing.T) {
	t.Parallel()

	repo := store.NewMemory()
	ctx := context.Background()
	scope := store.Scope{ProfileID: "anon_1", TabID: "tab1"}

	first := New(&fakeStreamer{body: "data: [DONE]\n\n"}, repo, nil)
	events, err := first.Run(ctx, scope, "plan 3 days in Kyoto", nil)
	require.NoError(t, err)
	for range events {
	}

	second := New(&fakeStreamer{body: "data: {\"restaurants\":[{\"name\":\"r1\"}]}\n\ndata: [DONE]\n\n"}, repo, nil)
	events, err = second.Run(ctx, scope, "where to eat in Kyoto", nil)
	require.NoError(t, err)
	var last Event
	for ev := range events {
		last = ev
	}

	current, err := repo.LoadCurrent(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, last.Session.SessionID, current.SessionID)
	assert.Equal(t, domain.DomainDining, current.Domain)
}

func TestPipelineResume(t *testing.T) {
	t.Parallel()

	repo := store.NewMemory()
	p := New(&fakeStreamer{body: "data: {\"activities\":[{\"name\":\"a1\"}]}\n\ndata: [DONE]\n\n"}, repo, nil)

	ctx := context.Background()
	scope := store.Scope{ProfileID: "anon_1", TabID: "tab1"}

	events, err := p.Run(ctx, scope, "things to do in Porto", nil)
	require.NoError(t, err)
	var final Event
	for ev := range events {
		final = ev
	}
	require.Equal(t, stream.EventComplete, final.Kind)

	// Matching id recovers the session.
	got, err := p.Resume(ctx, scope, final.Session.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, final.Session.SessionID, got.SessionID)

	// A stale or foreign id is not trusted.
	got, err = p.Resume(ctx, scope, "some-other-session")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPipelineReset(t *testing.T) {
	t.Parallel()

	repo := store.NewMemory()
	p := New(&fakeStreamer{body: "data: [DONE]\n\n"}, repo, nil)

	ctx := context.Background()
	scope := store.Scope{ProfileID: "anon_1", TabID: "tab1"}

	events, err := p.Run(ctx, scope, "tell me about Iceland", nil)
	require.NoError(t, err)
	for range events {
	}

	require.NoError(t, p.Reset(ctx, scope))

	current, err := p.Current(ctx, scope)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestPipelineGeoForwarded(t *testing.T) {
	t.Parallel()

	upstream := &fakeStreamer{body: "data: [DONE]\n\n"}
	p := New(upstream, store.NewMemory(), nil)

	events, err := p.Run(context.Background(), store.Scope{ProfileID: "anon_1", TabID: "t"}, "food near me", &Geo{Latitude: 38.72, Longitude: -9.14})
	require.NoError(t, err)
	for range events {
	}

	require.NotNil(t, upstream.got.Latitude)
	require.NotNil(t, upstream.got.Longitude)
	assert.InDelta(t, 38.72, *upstream.got.Latitude, 1e-9)
	assert.InDelta(t, -9.14, *upstream.got.Longitude, 1e-9)
}
