package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ConversationTurn is one persisted message of a conversation. Immutable
// once written.
type ConversationTurn struct {
	Role      MessageRole `json:"role"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
}

// ChatMode selects the orchestration strategy for a turn.
type ChatMode string

const (
	ModeAsk       ChatMode = "ask"
	ModeResearch  ChatMode = "research"
	ModeItinerary ChatMode = "itinerary"
)

// TripContext is a read-only snapshot of the user's in-progress trip,
// injected at the start of a turn. The orchestration core never mutates it.
type TripContext struct {
	Title            string   `json:"title,omitempty"`
	Destination      string   `json:"destination,omitempty"`
	Country          string   `json:"country,omitempty"`
	DateRange        string   `json:"date_range,omitempty"`
	BudgetRange      string   `json:"budget_range,omitempty"`
	Preferences      []string `json:"preferences,omitempty"`
	SavedPlacesCount int      `json:"saved_places_count,omitempty"`
}

type InvocationStatus string

const (
	InvocationPending  InvocationStatus = "pending"
	InvocationResolved InvocationStatus = "resolved"
	InvocationFailed   InvocationStatus = "failed"
)

// ToolCall is the wire representation of one model-requested tool call.
type ToolCall struct {
	ID        string         `json:"id"`
	ToolName  string         `json:"toolName"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Status    string         `json:"status"`
}

// ToolInvocation tracks one tool call through its lifecycle. Owned by a
// single orchestration round; transitions to resolved/failed exactly once.
type ToolInvocation struct {
	ID        string
	ToolName  string
	Arguments map[string]any
	Status    InvocationStatus
	Result    *ToolResult
}

// ToolResult is what a tool executor hands back. Failures are captured
// here rather than returned as errors so one failing tool never aborts
// the round.
type ToolResult struct {
	Failed    bool            `json:"failed,omitempty"`
	Message   string          `json:"message,omitempty"`
	Summary   string          `json:"summary,omitempty"`
	Cards     []PlaceCard     `json:"cards,omitempty"`
	Videos    []VideoResult   `json:"videos,omitempty"`
	Analysis  *VideoAnalysis  `json:"analysis,omitempty"`
	Smart     *SmartVideoPick `json:"smart,omitempty"`
	Citations []Citation      `json:"citations,omitempty"`
	Payload   map[string]any  `json:"payload,omitempty"`
}

type PlaceCard struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"` // hotel, restaurant, activity
	Address     string   `json:"address,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	PriceLevel  int      `json:"price_level,omitempty"`
	Latitude    float64  `json:"latitude,omitempty"`
	Longitude   float64  `json:"longitude,omitempty"`
	PhotoURL    string   `json:"photo_url,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type VideoResult struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ChannelName  string `json:"channel_name,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Duration     string `json:"duration,omitempty"`
	ViewCount    int64  `json:"view_count,omitempty"`
	URL          string `json:"url"`
}

type VideoAnalysis struct {
	VideoID    string   `json:"video_id"`
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights,omitempty"`
	Places     []string `json:"places,omitempty"`
}

// SmartVideoPick is the single best-match video with the reasoning that
// selected it.
type SmartVideoPick struct {
	Video     VideoResult `json:"video"`
	Reasoning string      `json:"reasoning,omitempty"`
	Relevance float64     `json:"relevance,omitempty"`
}

type Citation struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}

type ItineraryActivity struct {
	Time        string `json:"time,omitempty"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

type ItineraryDay struct {
	Day        int                 `json:"day"`
	Title      string              `json:"title,omitempty"`
	Activities []ItineraryActivity `json:"activities"`
}

type ItineraryResponse struct {
	Title       string         `json:"title,omitempty"`
	Destination string         `json:"destination,omitempty"`
	Days        []ItineraryDay `json:"days"`
}

// AssistantMessage is the durable record of one assistant turn: every
// content chunk concatenated plus the final tool calls, citations and
// cards collected while streaming. Built incrementally, written once at
// stream close.
type AssistantMessage struct {
	Content   string      `json:"content"`
	ToolCalls []ToolCall  `json:"tool_calls,omitempty"`
	Citations []Citation  `json:"citations,omitempty"`
	Cards     []PlaceCard `json:"cards,omitempty"`
	ChatMode  ChatMode    `json:"chat_mode,omitempty"`
}

// ClientMessage is a prior turn supplied by the client when no persisted
// trip backs the conversation.
type ClientMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ClientContext struct {
	Destination      string `json:"destination,omitempty"`
	Country          string `json:"country,omitempty"`
	SavedPlacesCount int    `json:"savedPlacesCount,omitempty"`
}

// ChatStreamRequest is the inbound body of the chat-stream endpoint.
type ChatStreamRequest struct {
	TripID         string          `json:"trip_id,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Message        string          `json:"message"`
	Messages       []ClientMessage `json:"messages,omitempty"`
	ChatMode       string          `json:"chatMode,omitempty"`
	Context        *ClientContext  `json:"context,omitempty"`
}

// StreamEvent is the closed union of everything the chat-stream endpoint
// can write to the client. Each variant is self-contained and marshals to
// a JSON object carrying a "type" discriminator. Keeping the union closed
// lets the transport boundary switch exhaustively instead of dispatching
// on ad hoc strings.
type StreamEvent interface {
	eventKind() string
}

type ToolCallsEvent struct {
	ToolCalls []ToolCall
}

type CardsEvent struct {
	Cards []PlaceCard
}

type VideosEvent struct {
	Videos []VideoResult
}

type VideoAnalysisEvent struct {
	Analysis VideoAnalysis
}

type SmartVideoResultEvent struct {
	Result SmartVideoPick
}

type ContentEvent struct {
	Content string
}

type ItineraryEvent struct {
	Itinerary ItineraryResponse
}

type DoneEvent struct {
	Citations []Citation
	Intent    string
	ChatMode  ChatMode
}

type ErrorEvent struct {
	Error string
}

func (ToolCallsEvent) eventKind() string        { return "toolCalls" }
func (CardsEvent) eventKind() string            { return "cards" }
func (VideosEvent) eventKind() string           { return "videos" }
func (VideoAnalysisEvent) eventKind() string    { return "videoAnalysis" }
func (SmartVideoResultEvent) eventKind() string { return "smartVideoResult" }
func (ContentEvent) eventKind() string          { return "content" }
func (ItineraryEvent) eventKind() string        { return "itinerary" }
func (DoneEvent) eventKind() string             { return "done" }
func (ErrorEvent) eventKind() string            { return "error" }

func (e ToolCallsEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string     `json:"type"`
		ToolCalls []ToolCall `json:"toolCalls"`
	}{e.eventKind(), e.ToolCalls})
}

func (e CardsEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string      `json:"type"`
		Cards []PlaceCard `json:"cards"`
	}{e.eventKind(), e.Cards})
}

func (e VideosEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string        `json:"type"`
		Videos []VideoResult `json:"videos"`
	}{e.eventKind(), e.Videos})
}

func (e VideoAnalysisEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string        `json:"type"`
		Analysis VideoAnalysis `json:"videoAnalysis"`
	}{e.eventKind(), e.Analysis})
}

func (e SmartVideoResultEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string         `json:"type"`
		Result SmartVideoPick `json:"smartVideoResult"`
	}{e.eventKind(), e.Result})
}

func (e ContentEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}{e.eventKind(), e.Content})
}

func (e ItineraryEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string            `json:"type"`
		Itinerary ItineraryResponse `json:"itinerary"`
	}{e.eventKind(), e.Itinerary})
}

func (e DoneEvent) MarshalJSON() ([]byte, error) {
	citations := e.Citations
	if citations == nil {
		citations = []Citation{}
	}
	return json.Marshal(struct {
		Type      string     `json:"type"`
		Citations []Citation `json:"citations"`
		Intent    string     `json:"intent,omitempty"`
		ChatMode  string     `json:"chatMode,omitempty"`
	}{e.eventKind(), citations, e.Intent, string(e.ChatMode)})
}

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}{e.eventKind(), e.Error})
}

// EventKind exposes the wire discriminator of a stream event without
// marshaling it.
func EventKind(e StreamEvent) string { return e.eventKind() }

// NewToolCallID mints an identifier for a model-requested tool call that
// arrived without one.
func NewToolCallID() string { return uuid.New().String() }
