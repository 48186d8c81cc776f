package chat

import (
	"regexp"
	"strings"

	"github.com/MintuTF/tripply/internal/types"
)

// ModeClassifier decides how a turn is orchestrated. Implementations must
// be deterministic and local: same inputs, same mode, no network.
type ModeClassifier interface {
	Classify(message string, explicit types.ChatMode) types.ChatMode
}

var _ ModeClassifier = (*KeywordClassifier)(nil)

// KeywordClassifier is the default heuristic. An explicit mode from the
// client always wins, which keeps a conversation from flip-flopping
// between strategies mid-thread.
type KeywordClassifier struct{}

var dayMarkerRe = regexp.MustCompile(`\bday\s*\d+\b`)

var itineraryKeywords = []string{
	"itinerary",
	"day-by-day",
	"day by day",
	"plan my trip",
	"plan a trip",
	"plan the trip",
	"full schedule",
}

var researchKeywords = []string{
	"find",
	"search",
	"look up",
	"hotel",
	"hostel",
	"restaurant",
	"where to stay",
	"where to eat",
	"things to do",
	"activities",
	"weather",
	"video",
	"flight",
	"book",
	"compare",
}

func (c *KeywordClassifier) Classify(message string, explicit types.ChatMode) types.ChatMode {
	switch explicit {
	case types.ModeAsk, types.ModeResearch, types.ModeItinerary:
		return explicit
	}

	msg := strings.ToLower(message)

	if dayMarkerRe.MatchString(msg) {
		return types.ModeItinerary
	}
	for _, kw := range itineraryKeywords {
		if strings.Contains(msg, kw) {
			return types.ModeItinerary
		}
	}
	for _, kw := range researchKeywords {
		if strings.Contains(msg, kw) {
			return types.ModeResearch
		}
	}

	// Ambiguous input defaults to the strategy with the fewest side
	// effects.
	return types.ModeAsk
}
