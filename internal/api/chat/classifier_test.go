package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MintuTF/tripply/internal/types"
)

func TestKeywordClassifier(t *testing.T) {
	c := &KeywordClassifier{}

	tests := []struct {
		name     string
		message  string
		explicit types.ChatMode
		want     types.ChatMode
	}{
		{
			name:    "plain question defaults to ask",
			message: "What is the best time of year to visit Kyoto?",
			want:    types.ModeAsk,
		},
		{
			name:    "hotel lookup is research",
			message: "Can you find me hotels near Shibuya station?",
			want:    types.ModeResearch,
		},
		{
			name:    "weather is research",
			message: "what's the weather like in Lisbon next week",
			want:    types.ModeResearch,
		},
		{
			name:    "itinerary keyword wins over research keywords",
			message: "Build an itinerary and find restaurants for each evening",
			want:    types.ModeItinerary,
		},
		{
			name:    "day marker triggers itinerary",
			message: "On day 2 we should do something outdoors",
			want:    types.ModeItinerary,
		},
		{
			name:     "explicit mode always wins",
			message:  "plan my trip day by day",
			explicit: types.ModeAsk,
			want:     types.ModeAsk,
		},
		{
			name:     "unknown explicit mode falls back to heuristics",
			message:  "where to eat in Porto",
			explicit: types.ChatMode("bogus"),
			want:     types.ModeResearch,
		},
		{
			name:    "empty message defaults to ask",
			message: "",
			want:    types.ModeAsk,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.message, tt.explicit))
		})
	}
}

func TestKeywordClassifierIsDeterministic(t *testing.T) {
	c := &KeywordClassifier{}
	msg := "find me a hostel near the old town"

	first := c.Classify(msg, "")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify(msg, ""))
	}
}
