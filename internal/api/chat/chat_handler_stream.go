package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MintuTF/tripply/app/tracer"
	"github.com/MintuTF/tripply/internal/api"
	"github.com/MintuTF/tripply/internal/api/auth"
	"github.com/MintuTF/tripply/internal/api/trip"
	"github.com/MintuTF/tripply/internal/types"
)

const defaultHistoryLimit = 20

// TurnRunner is the orchestration entry point the handler drives.
type TurnRunner interface {
	Run(ctx context.Context, history []types.ConversationTurn, message string, explicitMode types.ChatMode, tripCtx types.TripContext) (<-chan LifecycleEvent, types.ChatMode)
}

// StreamingHandler serves the chat stream endpoint: it validates the
// request, resolves trip context, relays the turn as SSE frames and
// persists the finished assistant turn.
type StreamingHandler struct {
	logger       *slog.Logger
	service      TurnRunner
	trips        trip.Repository
	historyLimit int
}

func NewStreamingHandler(service TurnRunner, trips trip.Repository, logger *slog.Logger) *StreamingHandler {
	return &StreamingHandler{
		logger:       logger,
		service:      service,
		trips:        trips,
		historyLimit: defaultHistoryLimit,
	}
}

// ChatStream handles POST /api/v1/chat/stream.
//
// Validation failures surface as HTTP errors before the stream opens.
// Once the SSE response is committed, every failure travels as an error
// frame inside the stream instead.
func (h *StreamingHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("StreamingHandler").Start(r.Context(), "ChatStream", trace.WithAttributes(
		attribute.String("http.method", r.Method),
		attribute.String("http.route", "/chat/stream"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	var req types.ChatStreamRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "message is required")
		return
	}

	resolved, status := h.resolveTripContext(ctx, req)
	if status != 0 {
		api.ErrorResponse(w, r, status, "authentication required to access trip conversations")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.ErrorResponse(w, r, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if resolved.persist {
		h.persistUserTurn(ctx, resolved.tripID, req.Message)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	eventCh, mode := h.service.Run(ctx, resolved.history, req.Message, types.ChatMode(req.ChatMode), resolved.tripCtx)
	span.SetAttributes(attribute.String("chat.mode", string(mode)))

	assistant := types.AssistantMessage{ChatMode: mode}
	mux := NewMultiplexer()
	var (
		content   strings.Builder
		callOrder []string
		callByID  = map[string]types.ToolCall{}
		itinerary *types.ItineraryResponse
		completed bool
	)

	for ev := range eventCh {
		for _, frame := range mux.Map(ev) {
			switch f := frame.(type) {
			case types.ToolCallsEvent:
				for _, call := range f.ToolCalls {
					if _, seen := callByID[call.ID]; !seen {
						callOrder = append(callOrder, call.ID)
					}
					callByID[call.ID] = call
				}
			case types.CardsEvent:
				assistant.Cards = append(assistant.Cards, f.Cards...)
			case types.ContentEvent:
				content.WriteString(f.Content)
			case types.ItineraryEvent:
				it := f.Itinerary
				itinerary = &it
			case types.DoneEvent:
				assistant.Citations = f.Citations
				completed = true
			}

			if !h.writeFrame(ctx, w, flusher, frame) {
				// Client gone. Whatever is left in the channel drains
				// as the producer notices the dead context.
				h.logger.InfoContext(ctx, "Client disconnected mid-stream")
				return
			}
		}
	}

	if !completed {
		span.SetAttributes(attribute.Bool("chat.completed", false))
		return
	}

	assistant.Content = content.String()
	for _, id := range callOrder {
		assistant.ToolCalls = append(assistant.ToolCalls, callByID[id])
	}

	if resolved.persist {
		// Fire and forget: the client already has its answer.
		go h.persistAssistantTurn(context.WithoutCancel(ctx), resolved.tripID, assistant, itinerary)
	}
}

type resolvedContext struct {
	tripCtx types.TripContext
	history []types.ConversationTurn
	persist bool
	tripID  uuid.UUID
}

// resolveTripContext picks the context source for the turn. A valid trip
// identifier demands an authenticated session; a malformed one degrades
// to the client-supplied draft context rather than failing the request.
func (h *StreamingHandler) resolveTripContext(ctx context.Context, req types.ChatStreamRequest) (resolvedContext, int) {
	if req.TripID != "" {
		tripID, err := uuid.Parse(req.TripID)
		if err != nil {
			h.logger.DebugContext(ctx, "Malformed trip id, using client context",
				slog.String("trip_id", req.TripID))
			return h.clientContext(req), 0
		}

		if _, authed := auth.GetUserIDFromContext(ctx); !authed {
			return resolvedContext{}, http.StatusUnauthorized
		}

		t, err := h.trips.GetTrip(ctx, tripID)
		if err != nil {
			h.logger.WarnContext(ctx, "Trip lookup failed, using client context",
				slog.String("trip_id", tripID.String()), slog.Any("error", err))
			return h.clientContext(req), 0
		}

		history, err := h.trips.GetTripMessages(ctx, tripID, h.historyLimit)
		if err != nil {
			h.logger.WarnContext(ctx, "Trip history load failed, continuing without it",
				slog.String("trip_id", tripID.String()), slog.Any("error", err))
		}
		turns := make([]types.ConversationTurn, 0, len(history))
		for _, msg := range history {
			turns = append(turns, types.ConversationTurn{
				Role:      msg.Role,
				Text:      msg.Content,
				CreatedAt: msg.CreatedAt,
			})
		}
		return resolvedContext{
			tripCtx: t.Context(),
			history: turns,
			persist: true,
			tripID:  tripID,
		}, 0
	}

	return h.clientContext(req), 0
}

func (h *StreamingHandler) clientContext(req types.ChatStreamRequest) resolvedContext {
	var tripCtx types.TripContext
	if req.Context != nil {
		tripCtx = types.TripContext{
			Destination:      req.Context.Destination,
			Country:          req.Context.Country,
			SavedPlacesCount: req.Context.SavedPlacesCount,
		}
	}
	turns := make([]types.ConversationTurn, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := types.RoleUser
		if msg.Role == string(types.RoleAssistant) {
			role = types.RoleAssistant
		}
		turns = append(turns, types.ConversationTurn{Role: role, Text: msg.Content})
	}
	return resolvedContext{tripCtx: tripCtx, history: turns}
}

func (h *StreamingHandler) writeFrame(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, frame types.StreamEvent) bool {
	if ctx.Err() != nil {
		return false
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to marshal stream frame", slog.Any("error", err))
		return true
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return false
	}
	flusher.Flush()
	tracer.RecordStreamFrame(ctx, types.EventKind(frame))
	return true
}

func (h *StreamingHandler) persistUserTurn(ctx context.Context, tripID uuid.UUID, message string) {
	_, err := h.trips.CreateMessage(ctx, types.TripMessage{
		TripID:  tripID,
		Role:    types.RoleUser,
		Content: message,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "Failed to persist user turn",
			slog.String("trip_id", tripID.String()), slog.Any("error", err))
	}
}

func (h *StreamingHandler) persistAssistantTurn(ctx context.Context, tripID uuid.UUID, assistant types.AssistantMessage, itinerary *types.ItineraryResponse) {
	metadata, err := json.Marshal(struct {
		ToolCalls []types.ToolCall         `json:"tool_calls,omitempty"`
		Citations []types.Citation         `json:"citations,omitempty"`
		Cards     []types.PlaceCard        `json:"cards,omitempty"`
		ChatMode  types.ChatMode           `json:"chat_mode,omitempty"`
		Itinerary *types.ItineraryResponse `json:"itinerary,omitempty"`
	}{assistant.ToolCalls, assistant.Citations, assistant.Cards, assistant.ChatMode, itinerary})
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to marshal assistant metadata", slog.Any("error", err))
		metadata = nil
	}

	_, err = h.trips.CreateMessage(ctx, types.TripMessage{
		TripID:   tripID,
		Role:     types.RoleAssistant,
		Content:  assistant.Content,
		Metadata: metadata,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to persist assistant turn",
			slog.String("trip_id", tripID.String()), slog.Any("error", err))
	}
}
