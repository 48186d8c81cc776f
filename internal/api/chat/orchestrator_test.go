package chat

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/MintuTF/tripply/internal/api/tools"
	"github.com/MintuTF/tripply/internal/types"
)

type scriptedRound struct {
	parts []*genai.Part
	err   error
}

// scriptedModel plays back one canned round per model invocation and
// records what each invocation received.
type scriptedModel struct {
	rounds   []scriptedRound
	configs  []*genai.GenerateContentConfig
	contents [][]*genai.Content
}

func (m *scriptedModel) GenerateContentStream(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	m.configs = append(m.configs, config)
	m.contents = append(m.contents, contents)

	idx := len(m.configs) - 1
	if idx >= len(m.rounds) {
		idx = len(m.rounds) - 1
	}
	round := m.rounds[idx]

	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		if round.err != nil {
			yield(nil, round.err)
			return
		}
		for _, part := range round.parts {
			resp := &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{part}},
				}},
			}
			if !yield(resp, nil) {
				return
			}
		}
	}
}

type fakeTool struct {
	name    string
	execute func(ctx context.Context, args map[string]any) types.ToolResult
}

func (t *fakeTool) Name() string { return t.name }
func (t *fakeTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{Name: t.name, Parameters: &genai.Schema{Type: genai.TypeObject}}
}
func (t *fakeTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	return t.execute(ctx, args)
}

func newTestService(t *testing.T, model *scriptedModel, toolList ...tools.Tool) *ChatService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := tools.NewRegistry(logger, time.Second)
	for _, tool := range toolList {
		registry.Register(tool)
	}
	return NewChatService(logger, model, registry, &KeywordClassifier{}, 3, 0.5)
}

func collect(t *testing.T, ch <-chan LifecycleEvent) []LifecycleEvent {
	t.Helper()
	var events []LifecycleEvent
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatal("timed out waiting for lifecycle events")
		}
	}
}

func textPart(text string) *genai.Part { return &genai.Part{Text: text} }

func callPart(id, name string, args map[string]any) *genai.Part {
	return &genai.Part{FunctionCall: &genai.FunctionCall{ID: id, Name: name, Args: args}}
}

func TestAskModeStreamsWithoutTools(t *testing.T) {
	model := &scriptedModel{rounds: []scriptedRound{
		{parts: []*genai.Part{textPart("Ichiran "), textPart("is a classic pick.")}},
	}}
	svc := newTestService(t, model)

	ch, mode := svc.Run(context.Background(), nil, "best ramen in Shibuya", types.ModeAsk, types.TripContext{})
	events := collect(t, ch)

	assert.Equal(t, types.ModeAsk, mode)
	require.Len(t, events, 3)
	assert.Equal(t, TokenChunk{Text: "Ichiran "}, events[0])
	assert.Equal(t, TokenChunk{Text: "is a classic pick."}, events[1])
	done, ok := events[2].(TurnCompleted)
	require.True(t, ok)
	assert.Equal(t, types.ModeAsk, done.Mode)

	require.Len(t, model.configs, 1)
	assert.Nil(t, model.configs[0].Tools, "ask mode never attaches tool schemas")
}

func TestResearchModeRunsToolRoundThenAnswers(t *testing.T) {
	model := &scriptedModel{rounds: []scriptedRound{
		{parts: []*genai.Part{
			textPart("Let me look that up."),
			callPart("c1", "place_search", map[string]any{"destination": "Tokyo", "category": "hotel"}),
		}},
		{parts: []*genai.Part{textPart("Park Hyatt stands out.")}},
	}}
	cards := []types.PlaceCard{{ID: "p1", Name: "Park Hyatt", Category: "hotel"}}
	search := &fakeTool{name: "place_search", execute: func(ctx context.Context, args map[string]any) types.ToolResult {
		return types.ToolResult{
			Cards:     cards,
			Citations: []types.Citation{{Title: "provider", URL: "https://example.com"}},
		}
	}}
	svc := newTestService(t, model, search)

	ch, _ := svc.Run(context.Background(), nil, "find me hotels in Tokyo", types.ModeResearch, types.TripContext{})
	events := collect(t, ch)

	require.Len(t, events, 4)

	issued, ok := events[0].(ToolCallsIssued)
	require.True(t, ok, "tool issuance must precede everything else")
	require.Len(t, issued.Calls, 1)
	assert.Equal(t, "place_search", issued.Calls[0].ToolName)
	assert.Equal(t, "pending", issued.Calls[0].Status)

	resolved, ok := events[1].(ToolResolved)
	require.True(t, ok)
	assert.Equal(t, "resolved", resolved.Call.Status)
	assert.Equal(t, cards, resolved.Result.Cards)

	chunk, ok := events[2].(TokenChunk)
	require.True(t, ok)
	assert.Equal(t, "Park Hyatt stands out.", chunk.Text, "pre-tool preamble is discarded")

	done, ok := events[3].(TurnCompleted)
	require.True(t, ok)
	assert.Len(t, done.Citations, 1)

	require.Len(t, model.configs, 2)
	assert.NotNil(t, model.configs[0].Tools)
	assert.NotNil(t, model.configs[1].Tools, "round two is still under budget")

	// The tool exchange was fed back to the model.
	lastContents := model.contents[1]
	require.GreaterOrEqual(t, len(lastContents), 3)
	assert.NotNil(t, lastContents[len(lastContents)-1].Parts[0].FunctionResponse)
	assert.NotNil(t, lastContents[len(lastContents)-2].Parts[0].FunctionCall)
}

func TestRoundBudgetForcesFinalAnswer(t *testing.T) {
	greedy := scriptedRound{parts: []*genai.Part{
		callPart("", "web_search", map[string]any{"query": "more"}),
	}}
	model := &scriptedModel{rounds: []scriptedRound{
		greedy,
		greedy,
		{parts: []*genai.Part{textPart("Here is what I found so far.")}},
	}}
	search := &fakeTool{name: "web_search", execute: func(ctx context.Context, args map[string]any) types.ToolResult {
		return types.ToolResult{Summary: "partial"}
	}}
	svc := newTestService(t, model, search)

	ch, _ := svc.Run(context.Background(), nil, "compare every district", types.ModeResearch, types.TripContext{})
	events := collect(t, ch)

	require.Len(t, model.configs, 3, "exactly maxRounds model invocations")
	assert.Nil(t, model.configs[2].Tools, "final round must not offer tools")

	lastContents := model.contents[2]
	assert.Equal(t, forcedFinalInstruction, lastContents[len(lastContents)-1].Parts[0].Text)

	done, ok := events[len(events)-1].(TurnCompleted)
	require.True(t, ok, "round budget still ends in a terminal event")
	assert.Equal(t, types.ModeResearch, done.Mode)

	// Model-minted IDs were absent, so the orchestrator supplied them.
	issued := events[0].(ToolCallsIssued)
	assert.NotEmpty(t, issued.Calls[0].ID)
}

func TestFailingToolDoesNotAbortTurn(t *testing.T) {
	model := &scriptedModel{rounds: []scriptedRound{
		{parts: []*genai.Part{
			callPart("c1", "weather_lookup", map[string]any{"destination": "Lisbon"}),
		}},
		{parts: []*genai.Part{textPart("I could not reach the forecast service.")}},
	}}
	weather := &fakeTool{name: "weather_lookup", execute: func(ctx context.Context, args map[string]any) types.ToolResult {
		return tools.FailedResult("provider unavailable")
	}}
	svc := newTestService(t, model, weather)

	ch, _ := svc.Run(context.Background(), nil, "weather in Lisbon", types.ModeResearch, types.TripContext{})
	events := collect(t, ch)

	resolved, ok := events[1].(ToolResolved)
	require.True(t, ok)
	assert.Equal(t, "failed", resolved.Call.Status)
	assert.True(t, resolved.Result.Failed)

	_, ok = events[len(events)-1].(TurnCompleted)
	assert.True(t, ok, "a failing tool degrades gracefully instead of erroring the turn")
}

func TestModelStreamErrorFailsTurn(t *testing.T) {
	model := &scriptedModel{rounds: []scriptedRound{
		{err: errors.New("rate limited")},
	}}
	svc := newTestService(t, model)

	ch, _ := svc.Run(context.Background(), nil, "anything", types.ModeAsk, types.TripContext{})
	events := collect(t, ch)

	require.Len(t, events, 1)
	failed, ok := events[0].(TurnFailed)
	require.True(t, ok)
	assert.ErrorContains(t, failed.Err, "rate limited")
}

func TestItineraryModeParsesStructuredPlan(t *testing.T) {
	plan := "```json\n{\"title\":\"Tokyo in two days\",\"days\":[{\"day\":1,\"activities\":[{\"name\":\"Meiji Shrine\"}]},{\"day\":2,\"activities\":[{\"name\":\"Tsukiji\"}]}]}\n```"
	model := &scriptedModel{rounds: []scriptedRound{
		{parts: []*genai.Part{textPart(plan)}},
	}}
	svc := newTestService(t, model)

	ch, _ := svc.Run(context.Background(), nil, "plan my trip day by day", types.ModeItinerary, types.TripContext{})
	events := collect(t, ch)

	require.Len(t, events, 2)
	ready, ok := events[0].(ItineraryReady)
	require.True(t, ok)
	assert.Equal(t, "Tokyo in two days", ready.Itinerary.Title)
	assert.Len(t, ready.Itinerary.Days, 2)
	_, ok = events[1].(TurnCompleted)
	assert.True(t, ok)
}

func TestItineraryModeFallsBackToTextOnBadJSON(t *testing.T) {
	model := &scriptedModel{rounds: []scriptedRound{
		{parts: []*genai.Part{textPart("Sorry, I can only sketch this in prose.")}},
	}}
	svc := newTestService(t, model)

	ch, _ := svc.Run(context.Background(), nil, "plan my trip day by day", types.ModeItinerary, types.TripContext{})
	events := collect(t, ch)

	require.Len(t, events, 2)
	chunk, ok := events[0].(TokenChunk)
	require.True(t, ok)
	assert.Contains(t, chunk.Text, "prose")
	_, ok = events[1].(TurnCompleted)
	assert.True(t, ok)
}

func TestEmptyModelOutputStillTerminates(t *testing.T) {
	model := &scriptedModel{rounds: []scriptedRound{{}}}
	svc := newTestService(t, model)

	ch, _ := svc.Run(context.Background(), nil, "hello", types.ModeAsk, types.TripContext{})
	events := collect(t, ch)

	require.Len(t, events, 2)
	chunk, ok := events[0].(TokenChunk)
	require.True(t, ok)
	assert.NotEmpty(t, chunk.Text)
	_, ok = events[1].(TurnCompleted)
	assert.True(t, ok)
}

func TestParseItinerary(t *testing.T) {
	t.Run("strips fences and surrounding prose", func(t *testing.T) {
		got, err := parseItinerary("Here you go:\n```json\n{\"days\":[{\"day\":1,\"activities\":[]}]}\n```")
		require.NoError(t, err)
		assert.Len(t, got.Days, 1)
	})

	t.Run("rejects plans without days", func(t *testing.T) {
		_, err := parseItinerary("{\"title\":\"empty\",\"days\":[]}")
		assert.Error(t, err)
	})

	t.Run("rejects non-JSON", func(t *testing.T) {
		_, err := parseItinerary("no plan here")
		assert.Error(t, err)
	})
}
