package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/MintuTF/tripply/app/tracer"
	"github.com/MintuTF/tripply/internal/api/tools"
	"github.com/MintuTF/tripply/internal/types"
)

// ContentGenerator is the language-model primitive the orchestrator
// drives: one streaming call per round, tool schemas attached through
// the config.
type ContentGenerator interface {
	GenerateContentStream(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

const (
	defaultMaxRounds = 3
	eventBufferSize  = 64
)

const exhaustedAnswer = "I gathered some results but could not finish a full answer this turn. Ask me again and I will pick up from here."

// ChatService drives one chat turn through up to maxRounds model rounds,
// fanning tool calls out between rounds and reporting progress as
// lifecycle events. It never persists anything itself.
type ChatService struct {
	logger      *slog.Logger
	ai          ContentGenerator
	registry    *tools.Registry
	classifier  ModeClassifier
	maxRounds   int
	temperature float32
}

func NewChatService(logger *slog.Logger, ai ContentGenerator, registry *tools.Registry, classifier ModeClassifier, maxRounds int, temperature float32) *ChatService {
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	if classifier == nil {
		classifier = &KeywordClassifier{}
	}
	return &ChatService{
		logger:      logger,
		ai:          ai,
		registry:    registry,
		classifier:  classifier,
		maxRounds:   maxRounds,
		temperature: temperature,
	}
}

// Run classifies the turn and starts the producer goroutine. The
// returned channel is closed after the terminal event; the resolved mode
// is returned immediately so callers do not have to wait for it.
func (s *ChatService) Run(ctx context.Context, history []types.ConversationTurn, message string, explicitMode types.ChatMode, tripCtx types.TripContext) (<-chan LifecycleEvent, types.ChatMode) {
	mode := s.classifier.Classify(message, explicitMode)
	ch := make(chan LifecycleEvent, eventBufferSize)
	go s.runTurn(ctx, ch, history, message, mode, tripCtx)
	return ch, mode
}

func (s *ChatService) runTurn(ctx context.Context, ch chan<- LifecycleEvent, history []types.ConversationTurn, message string, mode types.ChatMode, tripCtx types.TripContext) {
	defer close(ch)

	ctx, span := otel.Tracer("ChatService").Start(ctx, "runTurn", trace.WithAttributes(
		attribute.String("chat.mode", string(mode)),
		attribute.Int("chat.history_len", len(history)),
	))
	defer span.End()

	start := time.Now()
	outcome := "completed"
	defer func() {
		tracer.RecordChatTurn(ctx, string(mode), outcome, time.Since(start).Seconds())
	}()

	sendEvent := func(ev LifecycleEvent) bool {
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	fail := func(err error) {
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "Chat turn failed", slog.Any("error", err), slog.String("mode", string(mode)))
		sendEvent(TurnFailed{Err: err})
	}

	contents := buildContents(history, message)

	var (
		citations []types.Citation
		usedTools bool
	)

	for round := 1; round <= s.maxRounds; round++ {
		toolsAllowed := mode != types.ModeAsk && round < s.maxRounds

		if round == s.maxRounds && usedTools {
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: forcedFinalInstruction}},
			})
		}

		config := &genai.GenerateContentConfig{
			Temperature: genai.Ptr(s.temperature),
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: systemPrompt(mode, tripCtx)}},
			},
		}
		if toolsAllowed {
			config.Tools = []*genai.Tool{{FunctionDeclarations: s.registry.Declarations()}}
		}

		// Tool-enabled rounds buffer their text: a preamble before a
		// tool request must never reach the client ahead of the tool
		// events it narrates.
		streamLive := !toolsAllowed && mode != types.ModeItinerary

		var (
			chunks  []string
			calls   []*genai.FunctionCall
			emitted bool
		)
		for resp, err := range s.ai.GenerateContentStream(ctx, contents, config) {
			if err != nil {
				fail(fmt.Errorf("model stream failed on round %d: %w", round, err))
				return
			}
			for _, part := range responseParts(resp) {
				if part.FunctionCall != nil {
					calls = append(calls, part.FunctionCall)
					continue
				}
				if part.Text == "" {
					continue
				}
				if streamLive {
					if !sendEvent(TokenChunk{Text: part.Text}) {
						outcome = "canceled"
						return
					}
					emitted = true
				} else {
					chunks = append(chunks, part.Text)
				}
			}
		}

		if toolsAllowed && len(calls) > 0 {
			usedTools = true
			roundCitations, ok := s.runToolRound(ctx, sendEvent, &contents, calls)
			if !ok {
				outcome = "canceled"
				return
			}
			citations = append(citations, roundCitations...)
			continue
		}

		// Final answer for this turn.
		finalText := strings.Join(chunks, "")
		if mode == types.ModeItinerary {
			if itinerary, err := parseItinerary(finalText); err == nil {
				if !sendEvent(ItineraryReady{Itinerary: itinerary}) {
					outcome = "canceled"
					return
				}
				// The structured plan replaces the raw JSON text.
				chunks = nil
				emitted = true
			} else {
				s.logger.WarnContext(ctx, "Itinerary output was not parseable, falling back to text",
					slog.Any("error", err))
			}
		}
		if !streamLive {
			for _, chunk := range chunks {
				if !sendEvent(TokenChunk{Text: chunk}) {
					outcome = "canceled"
					return
				}
				emitted = true
			}
		}
		if !emitted && finalText == "" {
			// The model ran out of rounds or produced nothing usable.
			// Best effort beats a silent drop.
			if !sendEvent(TokenChunk{Text: exhaustedAnswer}) {
				outcome = "canceled"
				return
			}
		}
		sendEvent(TurnCompleted{Citations: citations, Mode: mode})
		return
	}

	fail(fmt.Errorf("round budget of %d exhausted without a final answer", s.maxRounds))
}

// runToolRound executes one batch of model-requested calls, reports their
// resolutions in issue order and appends the exchange to the working
// contents. Returns false when the request context died mid-round.
func (s *ChatService) runToolRound(ctx context.Context, sendEvent func(LifecycleEvent) bool, contents *[]*genai.Content, calls []*genai.FunctionCall) ([]types.Citation, bool) {
	issued := make([]types.ToolCall, len(calls))
	for i, call := range calls {
		id := call.ID
		if id == "" {
			id = types.NewToolCallID()
		}
		issued[i] = types.ToolCall{
			ID:        id,
			ToolName:  call.Name,
			Arguments: call.Args,
			Status:    string(types.InvocationPending),
		}
	}
	if !sendEvent(ToolCallsIssued{Calls: issued}) {
		return nil, false
	}

	// Tools run detached from the request context: a client disconnect
	// lets in-flight provider calls finish, then discards the results.
	detached := context.WithoutCancel(ctx)
	results := make([]types.ToolResult, len(issued))
	g, gctx := errgroup.WithContext(detached)
	for i := range issued {
		g.Go(func() error {
			results[i] = s.registry.Execute(gctx, issued[i].ToolName, issued[i].Arguments)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, false
	}

	var citations []types.Citation
	modelParts := make([]*genai.Part, 0, len(issued))
	resultParts := make([]*genai.Part, 0, len(issued))
	for i, call := range issued {
		result := results[i]
		resolved := call
		if result.Failed {
			resolved.Status = string(types.InvocationFailed)
		} else {
			resolved.Status = string(types.InvocationResolved)
		}
		if !sendEvent(ToolResolved{Call: resolved, Result: result}) {
			return nil, false
		}
		citations = append(citations, result.Citations...)

		modelParts = append(modelParts, &genai.Part{FunctionCall: &genai.FunctionCall{
			ID:   call.ID,
			Name: call.ToolName,
			Args: call.Arguments,
		}})
		resultParts = append(resultParts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       call.ID,
			Name:     call.ToolName,
			Response: toolResponseMap(result),
		}})
	}

	*contents = append(*contents,
		&genai.Content{Role: genai.RoleModel, Parts: modelParts},
		&genai.Content{Role: genai.RoleUser, Parts: resultParts},
	)
	return citations, true
}

func buildContents(history []types.ConversationTurn, message string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		role := genai.RoleUser
		if turn.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Text}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: message}},
	})
	return contents
}

func responseParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}

// toolResponseMap feeds a tool result back to the model as the function
// response payload.
func toolResponseMap(result types.ToolResult) map[string]any {
	raw, err := json.Marshal(result)
	if err != nil {
		return map[string]any{"failed": true, "message": "result serialization failed"}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"failed": true, "message": "result serialization failed"}
	}
	if len(out) == 0 {
		out = map[string]any{"summary": ""}
	}
	return out
}

// parseItinerary extracts the JSON plan from the model's final text,
// tolerating markdown fences the model sometimes adds anyway.
func parseItinerary(text string) (types.ItineraryResponse, error) {
	cleaned := cleanJSONResponse(text)
	var itinerary types.ItineraryResponse
	if err := json.Unmarshal([]byte(cleaned), &itinerary); err != nil {
		return types.ItineraryResponse{}, fmt.Errorf("failed to parse itinerary JSON: %w", err)
	}
	if len(itinerary.Days) == 0 {
		return types.ItineraryResponse{}, fmt.Errorf("itinerary JSON contained no days")
	}
	return itinerary, nil
}

func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	if start := strings.Index(response, "{"); start >= 0 {
		if end := strings.LastIndex(response, "}"); end > start {
			return response[start : end+1]
		}
	}
	return response
}
