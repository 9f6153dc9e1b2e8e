package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/capitalize-ai/expat-assistant/internal/client"
	"github.com/capitalize-ai/expat-assistant/internal/model"
	"github.com/capitalize-ai/expat-assistant/internal/pagination"
	"github.com/capitalize-ai/expat-assistant/internal/render"
	"github.com/capitalize-ai/expat-assistant/internal/transcript"
	"github.com/capitalize-ai/expat-assistant/pkg/logger"
)

type recordedEvent struct {
	name model.EventName
	data map[string]any
}

type fakeTracker struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeTracker) Track(event model.EventName, _ string, data map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{name: event, data: data})
}

func (f *fakeTracker) names() []model.EventName {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.EventName, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.name)
	}
	return out
}

// upstream serves fixed bodies per path and records request payloads.
type upstream struct {
	mu       sync.Mutex
	bodies   map[string]string
	requests []map[string]any
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)

	u.mu.Lock()
	u.requests = append(u.requests, payload)
	body, ok := u.bodies[r.URL.Path]
	u.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (u *upstream) set(path, body string) {
	u.mu.Lock()
	u.bodies[path] = body
	u.mu.Unlock()
}

func newSession(t *testing.T, baseURL string, tracker *fakeTracker, delay time.Duration) *Session {
	t.Helper()
	log := logger.FromZap(zaptest.NewLogger(t))
	c, err := client.New(client.Config{BaseURL: baseURL, Timeout: 2 * time.Second}, log)
	require.NoError(t, err)

	s := New(Config{ID: "session-1", Language: "en", ChainDelay: delay}, c, tracker, log)
	t.Cleanup(s.Close)
	return s
}

func startUpstream(t *testing.T) (*upstream, *httptest.Server) {
	t.Helper()
	u := &upstream{bodies: map[string]string{}}
	server := httptest.NewServer(u)
	t.Cleanup(server.Close)
	return u, server
}

func TestAsk_ScenarioA(t *testing.T) {
	u, server := startUpstream(t)
	u.set(client.QueryPath, `{"respuesta":"Here are some options","json":[{"nombre":"Hotel X","descripcion":"desc","es_anunciante":true}],"has_more":false}`)
	tracker := &fakeTracker{}
	s := newSession(t, server.URL, tracker, 0)

	entry, err := s.Ask(context.Background(), "Accommodation", model.ModeQuery)
	require.NoError(t, err)

	assert.Equal(t, transcript.StatusResolved, entry.Status)
	assert.Equal(t, "Here are some options", entry.Content.Find(render.KindFriendlyText, "").Text)
	assert.Equal(t, 1, entry.Content.Count(render.KindCard))
	assert.Equal(t, 1, entry.Content.Count(render.KindBadge))
	assert.Zero(t, entry.Content.Count(render.KindShowMore))

	list := s.Transcript()
	require.Len(t, list, 2)
	assert.Equal(t, transcript.RoleUser, list[0].Role)
	assert.Equal(t, "Accommodation", list[0].Content.Find(render.KindUserText, "").Text)

	require.Len(t, u.requests, 1)
	assert.Equal(t, "Accommodation", u.requests[0]["question"])
	assert.Equal(t, "en", u.requests[0]["language"])
	assert.EqualValues(t, 5, u.requests[0]["limit"])
	assert.EqualValues(t, 0, u.requests[0]["offset"])

	assert.Equal(t, []model.EventName{model.EventQuerySent}, tracker.names())
	assert.Equal(t, 1, tracker.events[0].data["advertisers_count"])
}

func TestAsk_ScenarioB(t *testing.T) {
	u, server := startUpstream(t)
	u.set(client.QueryPath, `{}`)
	s := newSession(t, server.URL, &fakeTracker{}, 0)

	entry, err := s.Ask(context.Background(), "xyzzy", model.ModeQuery)
	require.NoError(t, err)

	require.Len(t, entry.Content.Children, 1)
	assert.Equal(t, render.KindFallback, entry.Content.Children[0].Kind)
	assert.Equal(t, render.MessageFallback, entry.Content.Children[0].Text)
}

func TestAsk_ScenarioC(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	tracker := &fakeTracker{}
	s := newSession(t, server.URL, tracker, 0)

	var (
		mu      sync.Mutex
		changes []transcript.Entry
	)
	s.OnChange(func(e transcript.Entry) {
		mu.Lock()
		changes = append(changes, e)
		mu.Unlock()
	})

	entry, err := s.Ask(context.Background(), "Accommodation", "")
	require.NoError(t, err)

	assert.Zero(t, entry.Content.Count(render.KindTyping))
	require.Len(t, entry.Content.Children, 1)
	assert.Equal(t, render.MessageConnection, entry.Content.Children[0].Text)

	resolutions := 0
	for _, c := range changes {
		if c.ID == entry.ID && c.Status == transcript.StatusResolved {
			resolutions++
		}
	}
	assert.Equal(t, 1, resolutions, "placeholder is replaced exactly once")
	assert.Equal(t, []model.EventName{model.EventQueryError}, tracker.names())
	assert.Equal(t, string(client.KindNetwork), tracker.events[0].data["error"])
}

func TestAsk_ServerErrorPaintsConnectionError(t *testing.T) {
	_, server := startUpstream(t)
	s := newSession(t, server.URL, &fakeTracker{}, 0)

	entry, err := s.Ask(context.Background(), "Accommodation", model.ModeQuery)
	require.NoError(t, err)
	assert.Equal(t, render.KindError, entry.Content.Children[0].Kind)
}

func TestAsk_RejectsBadInput(t *testing.T) {
	s := newSession(t, "http://127.0.0.1:1", &fakeTracker{}, 0)

	_, err := s.Ask(context.Background(), "   ", model.ModeQuery)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = s.Ask(context.Background(), "hi", model.Mode("sales"))
	assert.ErrorIs(t, err, ErrInvalidMode)

	assert.Empty(t, s.Transcript())
}

func TestAsk_NewQueryResetsPagination(t *testing.T) {
	u, server := startUpstream(t)
	u.set(client.QueryPath, `{"json":[{"nombre":"A","descripcion":"d"}],"has_more":true,"next_offset":5,"agente":"restaurants"}`)
	s := newSession(t, server.URL, &fakeTracker{}, 0)

	first, err := s.Ask(context.Background(), "Restaurants", model.ModeQuery)
	require.NoError(t, err)
	assert.Equal(t, pagination.State{LastQueryText: "Restaurants", LastAgent: "restaurants", NextOffset: 5, EntryID: first.ID}, s.Pagination())

	second, err := s.Ask(context.Background(), "Gyms", model.ModeQuery)
	require.NoError(t, err)
	assert.Equal(t, "Gyms", s.Pagination().LastQueryText)

	_, err = s.LoadMore(context.Background(), first.ID)
	assert.ErrorIs(t, err, pagination.ErrStale)

	u.set(client.QueryPath, `{"json":[{"nombre":"B","descripcion":"d"}],"has_more":false}`)
	entry, err := s.LoadMore(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Content.Count(render.KindCard))
	assert.Zero(t, entry.Content.Count(render.KindShowMore))

	last := u.requests[len(u.requests)-1]
	assert.Equal(t, "Gyms", last["question"])
	assert.EqualValues(t, 5, last["offset"])
	assert.Equal(t, "restaurants", last["agent"])
}

func TestLoadMore_FailureIsPainted(t *testing.T) {
	u, server := startUpstream(t)
	u.set(client.QueryPath, `{"json":[{"nombre":"A","descripcion":"d"}],"has_more":true,"next_offset":5}`)
	s := newSession(t, server.URL, &fakeTracker{}, 0)

	first, err := s.Ask(context.Background(), "Restaurants", model.ModeQuery)
	require.NoError(t, err)

	u.set(client.QueryPath, `not json`)
	entry, err := s.LoadMore(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, render.MessageLoadMoreError, entry.Content.Last().Text)
}

func TestToggleFAQ(t *testing.T) {
	u, server := startUpstream(t)
	u.set(client.QueryPath, `{"json":[
		{"nombre":"A","descripcion":"d","faq":[{"q":"Pets?","a":"Yes"}]},
		{"nombre":"B","descripcion":"d","faq":[{"q":"Wifi?","a":"Free"}]}]}`)
	s := newSession(t, server.URL, &fakeTracker{}, 0)

	entry, err := s.Ask(context.Background(), "Hotels", model.ModeQuery)
	require.NoError(t, err)

	open, err := s.ToggleFAQ(entry.ID, "faq-1")
	require.NoError(t, err)
	assert.True(t, open)

	got, err := s.Entry(entry.ID)
	require.NoError(t, err)
	assert.True(t, got.Content.Find(render.KindFAQ, "faq-1").Expanded)
	assert.False(t, got.Content.Find(render.KindFAQ, "faq-0").Expanded)

	_, err = s.ToggleFAQ(entry.ID, "faq-7")
	assert.ErrorIs(t, err, render.ErrFAQNotFound)
}

func TestAsk_AdvertisingChain(t *testing.T) {
	u, server := startUpstream(t)
	u.set(client.AdvertisingPath, `{
		"message": "Hola, soy Luna",
		"quick_replies": [{"text": "See plans", "action": "show_plans"}],
		"next": {"message": "Here are our plans", "plans": [{"id": "basica", "nombre": "Basica", "precio": 29}]}
	}`)
	s := newSession(t, server.URL, &fakeTracker{}, 10*time.Millisecond)

	entry, err := s.Ask(context.Background(), "I want to advertise", model.ModeAdvertising)
	require.NoError(t, err)
	assert.Equal(t, "Hola, soy Luna", entry.Content.Find(render.KindFriendlyText, "").Text)
	assert.Equal(t, 1, entry.Content.Count(render.KindQuickReply))

	require.Eventually(t, func() bool { return len(s.Transcript()) == 3 }, time.Second, 5*time.Millisecond)
	chained := s.Transcript()[2]
	assert.Equal(t, transcript.RoleBot, chained.Role)
	assert.NotNil(t, chained.Content.Find(render.KindPlan, "basica"))

	req := u.requests[0]
	assert.Equal(t, "I want to advertise", req["message"])
	assert.Equal(t, "session-1", req["conversation_id"])

	assert.Equal(t, pagination.State{}, s.Pagination(), "advertising answers never paginate")
}

func TestAsk_AdvertisingChainWithoutDelay(t *testing.T) {
	u, server := startUpstream(t)
	u.set(client.AdvertisingPath, `{"message":"one","next":{"message":"two","next":{"message":"three"}}}`)
	s := newSession(t, server.URL, &fakeTracker{}, 0)

	_, err := s.Ask(context.Background(), "hi", model.ModeAdvertising)
	require.NoError(t, err)

	list := s.Transcript()
	require.Len(t, list, 4)
	assert.Equal(t, "three", list[3].Content.Find(render.KindFriendlyText, "").Text)
}

func TestSnapshotRestore(t *testing.T) {
	u, server := startUpstream(t)
	u.set(client.QueryPath, `{"json":[{"nombre":"A","descripcion":"d"}],"has_more":true,"next_offset":5}`)
	s := newSession(t, server.URL, &fakeTracker{}, 0)

	_, err := s.Ask(context.Background(), "Restaurants", model.ModeQuery)
	require.NoError(t, err)
	snap := s.Snapshot()

	restored := newSession(t, server.URL, &fakeTracker{}, 0)
	restored.Restore(snap)

	assert.Equal(t, s.Transcript(), restored.Transcript())
	assert.Equal(t, s.Pagination(), restored.Pagination())
}

func TestRestore_SettlesInterruptedRequests(t *testing.T) {
	src := transcript.New()
	src.Append(transcript.RoleUser, render.UserText("Restaurants"))
	paged := src.Append(transcript.RoleBot, nil)
	_, err := src.Resolve(paged.ID, render.Render(&model.QueryResult{
		Items:   []model.ResultItem{{Name: "A", Description: "d"}},
		HasMore: true,
	}))
	require.NoError(t, err)
	_, err = src.Patch(paged.ID, func(root *render.Node) error {
		for i, child := range root.Children {
			if child.Kind == render.KindShowMore {
				loading := render.TypingIndicator()
				loading.ID = render.ShowMoreID
				root.Children[i] = loading
			}
		}
		return nil
	})
	require.NoError(t, err)
	src.Append(transcript.RoleUser, render.UserText("Dentists"))
	waiting := src.Append(transcript.RoleBot, nil)

	s := newSession(t, "http://127.0.0.1:1", &fakeTracker{}, 0)
	s.Restore(Snapshot{
		ID:         "session-1",
		Language:   "en",
		Entries:    src.List(),
		Pagination: pagination.State{LastQueryText: "Restaurants", NextOffset: 5, EntryID: paged.ID},
	})

	answer, err := s.Entry(waiting.ID)
	require.NoError(t, err)
	assert.Equal(t, transcript.StatusResolved, answer.Status)
	assert.Equal(t, render.MessageConnection, answer.Content.Find(render.KindError, "").Text)

	page, err := s.Entry(paged.ID)
	require.NoError(t, err)
	assert.Zero(t, page.Content.Count(render.KindTyping))
	assert.Equal(t, render.MessageLoadMoreError, page.Content.Last().Text)
	assert.Empty(t, s.Pagination().EntryID)

	_, err = s.LoadMore(context.Background(), paged.ID)
	assert.ErrorIs(t, err, pagination.ErrNoControl)
}

func TestClose_RejectsAsk(t *testing.T) {
	s := newSession(t, "http://127.0.0.1:1", &fakeTracker{}, 0)
	s.Close()

	_, err := s.Ask(context.Background(), "hi", model.ModeQuery)
	assert.ErrorIs(t, err, ErrClosed)
}
