package chat

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MintuTF/tripply/internal/api/auth"
	"github.com/MintuTF/tripply/internal/api/trip"
	"github.com/MintuTF/tripply/internal/types"
)

// scriptedRunner plays back a fixed lifecycle sequence and records the
// inputs it was invoked with.
type scriptedRunner struct {
	events []LifecycleEvent
	mode   types.ChatMode

	gotHistory []types.ConversationTurn
	gotMessage string
	gotTripCtx types.TripContext
}

func (r *scriptedRunner) Run(ctx context.Context, history []types.ConversationTurn, message string, explicitMode types.ChatMode, tripCtx types.TripContext) (<-chan LifecycleEvent, types.ChatMode) {
	r.gotHistory = history
	r.gotMessage = message
	r.gotTripCtx = tripCtx

	ch := make(chan LifecycleEvent, len(r.events))
	for _, ev := range r.events {
		ch <- ev
	}
	close(ch)

	mode := r.mode
	if mode == "" {
		mode = types.ModeAsk
	}
	return ch, mode
}

type fakeTripRepo struct {
	mu       sync.Mutex
	trip     *types.Trip
	tripErr  error
	messages []types.TripMessage
	created  []types.TripMessage
}

var _ trip.Repository = (*fakeTripRepo)(nil)

func (f *fakeTripRepo) GetTrip(ctx context.Context, tripID uuid.UUID) (*types.Trip, error) {
	if f.tripErr != nil {
		return nil, f.tripErr
	}
	return f.trip, nil
}

func (f *fakeTripRepo) GetTripMessages(ctx context.Context, tripID uuid.UUID, limit int) ([]types.TripMessage, error) {
	return f.messages, nil
}

func (f *fakeTripRepo) CreateMessage(ctx context.Context, msg types.TripMessage) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, msg)
	return uuid.New(), nil
}

func (f *fakeTripRepo) createdMessages() []types.TripMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.TripMessage, len(f.created))
	copy(out, f.created)
	return out
}

func newTestHandler(runner TurnRunner, repo trip.Repository) *StreamingHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStreamingHandler(runner, repo, logger)
}

func postChat(t *testing.T, handler *StreamingHandler, body string, ctxMut func(context.Context) context.Context) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if ctxMut != nil {
		req = req.WithContext(ctxMut(req.Context()))
	}
	rec := httptest.NewRecorder()
	handler.ChatStream(rec, req)
	return rec
}

// parseFrames splits an SSE body into decoded JSON frames.
func parseFrames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
		frames = append(frames, frame)
	}
	return frames
}

func frameTypes(frames []map[string]any) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f["type"].(string)
	}
	return out
}

func TestChatStreamRejectsMissingMessage(t *testing.T) {
	handler := newTestHandler(&scriptedRunner{}, &fakeTripRepo{})

	rec := postChat(t, handler, `{"message": "   "}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "message is required")
}

func TestChatStreamRejectsMalformedJSON(t *testing.T) {
	handler := newTestHandler(&scriptedRunner{}, &fakeTripRepo{})

	rec := postChat(t, handler, `{"message": `, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatStreamRequiresSessionForTripID(t *testing.T) {
	handler := newTestHandler(&scriptedRunner{}, &fakeTripRepo{})

	body := `{"message": "hello", "trip_id": "` + uuid.New().String() + `"}`
	rec := postChat(t, handler, body, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatStreamInvalidTripIDFallsBackToClientContext(t *testing.T) {
	runner := &scriptedRunner{events: []LifecycleEvent{
		TokenChunk{Text: "hi"},
		TurnCompleted{Mode: types.ModeAsk},
	}}
	handler := newTestHandler(runner, &fakeTripRepo{})

	body := `{"message": "hello", "trip_id": "not-a-uuid", "context": {"destination": "Tokyo", "savedPlacesCount": 3}}`
	rec := postChat(t, handler, body, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Tokyo", runner.gotTripCtx.Destination)
	assert.Equal(t, 3, runner.gotTripCtx.SavedPlacesCount)

	frames := parseFrames(t, rec.Body.String())
	assert.Equal(t, []string{"content", "done"}, frameTypes(frames))
}

func TestChatStreamAskScenario(t *testing.T) {
	runner := &scriptedRunner{events: []LifecycleEvent{
		TokenChunk{Text: "Ichiran "},
		TokenChunk{Text: "in Shibuya."},
		TurnCompleted{Mode: types.ModeAsk},
	}}
	handler := newTestHandler(runner, &fakeTripRepo{})

	rec := postChat(t, handler, `{"message": "best ramen in Shibuya", "chatMode": "ask"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	frames := parseFrames(t, rec.Body.String())
	assert.Equal(t, []string{"content", "content", "done"}, frameTypes(frames))
	assert.Equal(t, "best ramen in Shibuya", runner.gotMessage)
}

func TestChatStreamResearchScenarioOrdering(t *testing.T) {
	call := types.ToolCall{ID: "c1", ToolName: "place_search", Status: "pending"}
	resolved := call
	resolved.Status = "resolved"
	runner := &scriptedRunner{
		mode: types.ModeResearch,
		events: []LifecycleEvent{
			ToolCallsIssued{Calls: []types.ToolCall{call}},
			ToolResolved{Call: resolved, Result: types.ToolResult{
				Cards:     []types.PlaceCard{{ID: "p1", Name: "Park Hyatt", Category: "hotel"}},
				Citations: []types.Citation{{Title: "provider", URL: "https://example.com"}},
			}},
			TokenChunk{Text: "Park Hyatt stands out."},
			TurnCompleted{Mode: types.ModeResearch, Citations: []types.Citation{{Title: "provider", URL: "https://example.com"}}},
		},
	}
	handler := newTestHandler(runner, &fakeTripRepo{})

	rec := postChat(t, handler, `{"message": "find me hotels in Tokyo", "chatMode": "research"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	frames := parseFrames(t, rec.Body.String())
	got := frameTypes(frames)
	assert.Equal(t, []string{"toolCalls", "toolCalls", "cards", "content", "done"}, got)

	// cards strictly precede content, done is terminal and unique.
	assert.Less(t, indexOf(got, "cards"), indexOf(got, "content"))
	assert.Equal(t, "done", got[len(got)-1])

	done := frames[len(frames)-1]
	assert.Equal(t, "research", done["chatMode"])
	citations, ok := done["citations"].([]any)
	require.True(t, ok)
	assert.Len(t, citations, 1)
}

func TestChatStreamOrchestrationFailureStaysHTTP200(t *testing.T) {
	runner := &scriptedRunner{events: []LifecycleEvent{
		TurnFailed{Err: assert.AnError},
	}}
	handler := newTestHandler(runner, &fakeTripRepo{})

	rec := postChat(t, handler, `{"message": "hello"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	frames := parseFrames(t, rec.Body.String())
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0]["type"])
}

func TestChatStreamPersistsTurnPairForTrip(t *testing.T) {
	tripID := uuid.New()
	repo := &fakeTripRepo{
		trip: &types.Trip{ID: tripID, Title: "Tokyo trip", Destination: "Tokyo"},
		messages: []types.TripMessage{
			{TripID: tripID, Role: types.RoleUser, Content: "earlier question"},
			{TripID: tripID, Role: types.RoleAssistant, Content: "earlier answer"},
		},
	}
	runner := &scriptedRunner{events: []LifecycleEvent{
		TokenChunk{Text: "Sure thing."},
		TurnCompleted{Mode: types.ModeAsk},
	}}
	handler := newTestHandler(runner, repo)

	body := `{"message": "and the weather?", "trip_id": "` + tripID.String() + `"}`
	rec := postChat(t, handler, body, func(ctx context.Context) context.Context {
		return context.WithValue(ctx, auth.UserIDKey, "user-1")
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tokyo", runner.gotTripCtx.Destination)
	require.Len(t, runner.gotHistory, 2)
	assert.Equal(t, types.RoleAssistant, runner.gotHistory[1].Role)

	// Assistant persistence is asynchronous.
	require.Eventually(t, func() bool {
		return len(repo.createdMessages()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	created := repo.createdMessages()
	assert.Equal(t, types.RoleUser, created[0].Role)
	assert.Equal(t, "and the weather?", created[0].Content)
	assert.Equal(t, types.RoleAssistant, created[1].Role)
	assert.Equal(t, "Sure thing.", created[1].Content)
}

func TestChatStreamNoPersistenceWithoutTerminalEvent(t *testing.T) {
	tripID := uuid.New()
	repo := &fakeTripRepo{trip: &types.Trip{ID: tripID, Destination: "Tokyo"}}
	// Channel closes without a terminal event, as happens when the
	// producer bails out on a dead client.
	runner := &scriptedRunner{events: []LifecycleEvent{
		ToolCallsIssued{Calls: []types.ToolCall{{ID: "c1", ToolName: "place_search", Status: "pending"}}},
	}}
	handler := newTestHandler(runner, repo)

	body := `{"message": "find hotels", "trip_id": "` + tripID.String() + `"}`
	rec := postChat(t, handler, body, func(ctx context.Context) context.Context {
		return context.WithValue(ctx, auth.UserIDKey, "user-1")
	})

	require.Equal(t, http.StatusOK, rec.Code)

	// Only the user turn lands; the unfinished assistant turn is never
	// written as if it completed.
	time.Sleep(50 * time.Millisecond)
	created := repo.createdMessages()
	require.Len(t, created, 1)
	assert.Equal(t, types.RoleUser, created[0].Role)
}

func TestChatStreamTripLookupFailureFallsBack(t *testing.T) {
	runner := &scriptedRunner{events: []LifecycleEvent{
		TokenChunk{Text: "ok"},
		TurnCompleted{Mode: types.ModeAsk},
	}}
	repo := &fakeTripRepo{tripErr: trip.ErrTripNotFound}
	handler := newTestHandler(runner, repo)

	body := `{"message": "hello", "trip_id": "` + uuid.New().String() + `", "context": {"destination": "Osaka"}}`
	rec := postChat(t, handler, body, func(ctx context.Context) context.Context {
		return context.WithValue(ctx, auth.UserIDKey, "user-1")
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Osaka", runner.gotTripCtx.Destination)
	assert.Empty(t, repo.createdMessages(), "nothing is persisted against a missing trip")
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}
