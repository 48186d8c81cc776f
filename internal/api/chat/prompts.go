package chat

import (
	"fmt"
	"strings"

	"github.com/MintuTF/tripply/internal/types"
)

const basePersona = `You are Tripply, a travel planning assistant. You help travellers research destinations, compare options and build day-by-day itineraries. Be concise and concrete; prefer named places over generic advice.`

const askInstructions = `Answer the traveller's question directly from what you already know. Do not call any tools.`

const researchInstructions = `Ground your answer in tool results. Use place_search for hotels, restaurants and activities, weather_lookup for forecasts, video_search for video context and web_search for anything else. Call every tool you need for the question in a single batch, then summarise the results. Never invent places or prices that did not come from a tool.`

const itineraryInstructions = `Build a day-by-day itinerary. Research with tools first when you are missing concrete places. Your final answer must be a single JSON object with this shape and nothing else:
{"title": string, "destination": string, "days": [{"day": number, "title": string, "activities": [{"time": string, "name": string, "category": string, "description": string}]}]}
Use "" for any field you cannot fill. Do not wrap the JSON in markdown fences.`

// forcedFinalInstruction closes the last round of a turn: the model got the
// results of every tool it asked for and now has to answer with what it has.
const forcedFinalInstruction = `All tool results for this turn are above. Produce your final answer now using only those results and the conversation. Do not request any more tools.`

func systemPrompt(mode types.ChatMode, tripCtx types.TripContext) string {
	var b strings.Builder
	b.WriteString(basePersona)
	b.WriteString("\n\n")

	switch mode {
	case types.ModeResearch:
		b.WriteString(researchInstructions)
	case types.ModeItinerary:
		b.WriteString(itineraryInstructions)
	default:
		b.WriteString(askInstructions)
	}

	if ctxPart := tripContextPrompt(tripCtx); ctxPart != "" {
		b.WriteString("\n\n")
		b.WriteString(ctxPart)
	}
	return b.String()
}

func tripContextPrompt(tripCtx types.TripContext) string {
	var parts []string
	if tripCtx.Title != "" {
		parts = append(parts, fmt.Sprintf("trip: %s", tripCtx.Title))
	}
	if tripCtx.Destination != "" {
		dest := tripCtx.Destination
		if tripCtx.Country != "" {
			dest += ", " + tripCtx.Country
		}
		parts = append(parts, fmt.Sprintf("destination: %s", dest))
	}
	if tripCtx.DateRange != "" {
		parts = append(parts, fmt.Sprintf("dates: %s", tripCtx.DateRange))
	}
	if tripCtx.BudgetRange != "" {
		parts = append(parts, fmt.Sprintf("budget: %s", tripCtx.BudgetRange))
	}
	if len(tripCtx.Preferences) > 0 {
		parts = append(parts, fmt.Sprintf("preferences: %s", strings.Join(tripCtx.Preferences, ", ")))
	}
	if tripCtx.SavedPlacesCount > 0 {
		parts = append(parts, fmt.Sprintf("places already saved to the trip: %d", tripCtx.SavedPlacesCount))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Trip context:\n- " + strings.Join(parts, "\n- ")
}
