package pagination

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/capitalize-ai/expat-assistant/internal/client"
	"github.com/capitalize-ai/expat-assistant/internal/model"
	"github.com/capitalize-ai/expat-assistant/internal/render"
	"github.com/capitalize-ai/expat-assistant/internal/transcript"
	"github.com/capitalize-ai/expat-assistant/pkg/logger"
)

type fakeSender struct {
	mu      sync.Mutex
	queries []model.Query
	resp    *model.QueryResponse
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeSender) Send(ctx context.Context, q model.Query) (*model.RawResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.RawResponse{Mode: model.ModeQuery, Query: f.resp}, nil
}

func items(names ...string) []model.ItemWire {
	out := make([]model.ItemWire, 0, len(names))
	for _, n := range names {
		out = append(out, model.ItemWire{Nombre: model.LooseString(n), Descripcion: "d"})
	}
	return out
}

func intPtr(v int) *int { return &v }

// setup paints a first page of two items with a show more control.
func setup(t *testing.T, sender client.Sender) (*Controller, *transcript.Store, string) {
	t.Helper()

	entries := transcript.New()
	first := &model.QueryResult{
		FriendlyText: "Some restaurants",
		Items:        []model.ResultItem{{Name: "A", Description: "d"}, {Name: "B", Description: "d"}},
		HasMore:      true,
		NextOffset:   5,
		Agent:        "restaurants",
	}
	pending := entries.Append(transcript.RoleBot, nil)
	_, err := entries.Resolve(pending.ID, render.Render(first))
	require.NoError(t, err)

	c := New(sender, entries, Config{Language: "es"}, logger.FromZap(zaptest.NewLogger(t)))
	c.Reset(State{LastQueryText: "Restaurants", LastAgent: "restaurants", NextOffset: 5, EntryID: pending.ID})
	return c, entries, pending.ID
}

func TestLoadMore_PropagatesOffsetAndQuery(t *testing.T) {
	sender := &fakeSender{resp: &model.QueryResponse{JSON: items("C"), HasMore: false}}
	c, entries, id := setup(t, sender)

	result, err := c.LoadMore(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	require.Len(t, sender.queries, 1)
	q := sender.queries[0]
	assert.Equal(t, "Restaurants", q.Text)
	assert.Equal(t, 5, q.Offset)
	assert.Equal(t, model.DefaultPageSize, q.Limit)
	assert.Equal(t, model.ModeQuery, q.Mode)
	assert.Equal(t, "es", q.Language)
	assert.Equal(t, "restaurants", q.Agent)

	entry, err := entries.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Content.Count(render.KindCard), "new cards land in the same entry")
	assert.Zero(t, entry.Content.Count(render.KindShowMore), "control is not re-added without more pages")
	assert.Zero(t, entry.Content.Count(render.KindTyping))
	assert.Equal(t, 1, entries.Len())

	_, err = c.LoadMore(context.Background(), id)
	assert.ErrorIs(t, err, ErrNoControl)
}

func TestLoadMore_FreshControlWhileMorePages(t *testing.T) {
	sender := &fakeSender{resp: &model.QueryResponse{JSON: items("C", "D"), HasMore: true, NextOffset: intPtr(10)}}
	c, entries, id := setup(t, sender)

	_, err := c.LoadMore(context.Background(), id)
	require.NoError(t, err)

	entry, err := entries.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Content.Count(render.KindShowMore))
	assert.Equal(t, render.KindShowMore, entry.Content.Last().Kind)
	assert.NotNil(t, entry.Content.Find(render.KindCard, "card-3"))
	assert.Equal(t, 10, c.Snapshot().NextOffset)

	_, err = c.LoadMore(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 10, sender.queries[1].Offset)
}

func TestLoadMore_MissingNextOffsetAdvancesByPage(t *testing.T) {
	sender := &fakeSender{resp: &model.QueryResponse{JSON: items("C", "D"), HasMore: true}}
	c, _, id := setup(t, sender)

	_, err := c.LoadMore(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Snapshot().NextOffset)
}

func TestLoadMore_FailurePaintsMessage(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	c, entries, id := setup(t, sender)

	_, err := c.LoadMore(context.Background(), id)
	require.Error(t, err)

	entry, err := entries.Get(id)
	require.NoError(t, err)
	assert.Zero(t, entry.Content.Count(render.KindShowMore))
	assert.Zero(t, entry.Content.Count(render.KindTyping))
	failed := entry.Content.Last()
	assert.Equal(t, render.KindError, failed.Kind)
	assert.Equal(t, render.MessageLoadMoreError, failed.Text)

	_, err = c.LoadMore(context.Background(), id)
	assert.ErrorIs(t, err, ErrNoControl, "no automatic retry")
	assert.Len(t, sender.queries, 1)
}

func TestLoadMore_SecondCallWhilePendingIsNoop(t *testing.T) {
	sender := &fakeSender{
		resp:    &model.QueryResponse{JSON: items("C")},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c, entries, id := setup(t, sender)

	done := make(chan error, 1)
	go func() {
		_, err := c.LoadMore(context.Background(), id)
		done <- err
	}()
	<-sender.started

	entry, err := entries.Get(id)
	require.NoError(t, err)
	assert.Equal(t, render.KindTyping, entry.Content.Last().Kind)

	_, err = c.LoadMore(context.Background(), id)
	assert.ErrorIs(t, err, ErrLoadInProgress)

	close(sender.release)
	require.NoError(t, <-done)
	assert.Len(t, sender.queries, 1)
}

func TestLoadMore_StaleAndUnknown(t *testing.T) {
	sender := &fakeSender{resp: &model.QueryResponse{}}
	c, _, id := setup(t, sender)

	_, err := c.LoadMore(context.Background(), "another-entry")
	assert.ErrorIs(t, err, ErrStale)

	c.Reset(State{})
	_, err = c.LoadMore(context.Background(), id)
	assert.ErrorIs(t, err, ErrNoControl)
	assert.Empty(t, sender.queries)
}

func TestLoadMore_ResetDuringLoadKeepsNewState(t *testing.T) {
	sender := &fakeSender{
		resp:    &model.QueryResponse{JSON: items("C"), HasMore: true, NextOffset: intPtr(10)},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c, _, id := setup(t, sender)

	done := make(chan error, 1)
	go func() {
		_, err := c.LoadMore(context.Background(), id)
		done <- err
	}()
	<-sender.started

	newer := State{LastQueryText: "Gyms", NextOffset: 5, EntryID: "newer"}
	c.Reset(newer)
	close(sender.release)
	require.NoError(t, <-done)

	assert.Equal(t, newer, c.Snapshot())
}

func TestAbandon_PaintsFailureAndRetiresSlot(t *testing.T) {
	sender := &fakeSender{}
	c, entries, id := setup(t, sender)

	_, err := entries.Patch(id, startLoading)
	require.NoError(t, err)

	require.NoError(t, c.Abandon(id))

	entry, err := entries.Get(id)
	require.NoError(t, err)
	assert.Zero(t, entry.Content.Count(render.KindTyping))
	assert.Equal(t, render.MessageLoadMoreError, entry.Content.Last().Text)
	assert.Empty(t, c.Snapshot().EntryID)

	assert.ErrorIs(t, c.Abandon(id), ErrNoControl)
	assert.Empty(t, sender.queries)
}
