package chat

import (
	"github.com/MintuTF/tripply/internal/types"
)

// LifecycleEvent is the closed union of everything the orchestrator can
// report while driving a turn. The multiplexer translates these into wire
// events; nothing else consumes them.
type LifecycleEvent interface {
	lifecycle()
}

// ToolCallsIssued is emitted once per round, before any tool runs, with
// every call the model requested in that round.
type ToolCallsIssued struct {
	Calls []types.ToolCall
}

// ToolResolved is emitted once per tool call, after the whole batch has
// finished, in issue order.
type ToolResolved struct {
	Call   types.ToolCall
	Result types.ToolResult
}

// TokenChunk carries exactly one incremental text chunk as the model
// produced it.
type TokenChunk struct {
	Text string
}

// ItineraryReady is emitted when an itinerary-mode turn produced a
// parseable day-by-day plan.
type ItineraryReady struct {
	Itinerary types.ItineraryResponse
}

// TurnCompleted is the successful terminal event.
type TurnCompleted struct {
	Citations []types.Citation
	Mode      types.ChatMode
}

// TurnFailed is the failure terminal event. Exactly one of TurnCompleted
// or TurnFailed ends every turn.
type TurnFailed struct {
	Err error
}

func (ToolCallsIssued) lifecycle() {}
func (ToolResolved) lifecycle()    {}
func (TokenChunk) lifecycle()      {}
func (ItineraryReady) lifecycle()  {}
func (TurnCompleted) lifecycle()   {}
func (TurnFailed) lifecycle()      {}
