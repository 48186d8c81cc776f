package chat

import (
	"github.com/MintuTF/tripply/internal/types"
)

// Multiplexer translates orchestrator lifecycle events into wire events.
// The translation is pure and synchronous; it fans a single tool
// resolution out into the status update plus any card/video payloads the
// tool produced, in that order, so result cards always land before the
// narrative text that describes them.
type Multiplexer struct{}

func NewMultiplexer() *Multiplexer { return &Multiplexer{} }

// Map returns the wire events for one lifecycle event, in emission order.
// A failed turn maps to the single error frame; a completed turn maps to
// the single done frame.
func (m *Multiplexer) Map(ev LifecycleEvent) []types.StreamEvent {
	switch e := ev.(type) {
	case ToolCallsIssued:
		return []types.StreamEvent{types.ToolCallsEvent{ToolCalls: e.Calls}}

	case ToolResolved:
		out := []types.StreamEvent{
			types.ToolCallsEvent{ToolCalls: []types.ToolCall{e.Call}},
		}
		if len(e.Result.Cards) > 0 {
			out = append(out, types.CardsEvent{Cards: e.Result.Cards})
		}
		if len(e.Result.Videos) > 0 {
			out = append(out, types.VideosEvent{Videos: e.Result.Videos})
		}
		if e.Result.Analysis != nil {
			out = append(out, types.VideoAnalysisEvent{Analysis: *e.Result.Analysis})
		}
		if e.Result.Smart != nil {
			out = append(out, types.SmartVideoResultEvent{Result: *e.Result.Smart})
		}
		return out

	case TokenChunk:
		return []types.StreamEvent{types.ContentEvent{Content: e.Text}}

	case ItineraryReady:
		return []types.StreamEvent{types.ItineraryEvent{Itinerary: e.Itinerary}}

	case TurnCompleted:
		return []types.StreamEvent{types.DoneEvent{
			Citations: e.Citations,
			Intent:    string(e.Mode),
			ChatMode:  e.Mode,
		}}

	case TurnFailed:
		return []types.StreamEvent{types.ErrorEvent{Error: e.Err.Error()}}
	}
	return nil
}
