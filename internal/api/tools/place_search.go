package tools

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/patrickmn/go-cache"
	"google.golang.org/genai"

	"github.com/MintuTF/tripply/internal/types"
)

const PlaceSearchToolName = "place_search"

// PlaceSearchTool looks up hotels, restaurants and activities for a
// destination against the places provider.
type PlaceSearchTool struct {
	logger  *slog.Logger
	cache   *cache.Cache
	baseURL string
	client  Doer
}

func NewPlaceSearchTool(baseURL string, resultCache *cache.Cache, logger *slog.Logger) *PlaceSearchTool {
	return &PlaceSearchTool{
		logger:  logger,
		cache:   resultCache,
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
}

// WithHTTPClient overrides the provider client, for tests.
func (t *PlaceSearchTool) WithHTTPClient(client Doer) *PlaceSearchTool {
	t.client = client
	return t
}

func (t *PlaceSearchTool) Name() string { return PlaceSearchToolName }

func (t *PlaceSearchTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        PlaceSearchToolName,
		Description: "Search for hotels, restaurants or activities in or near a destination. Returns place cards with name, rating and location.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"destination": {Type: genai.TypeString, Description: "City or area to search in, e.g. 'Tokyo' or 'Shibuya'"},
				"category":    {Type: genai.TypeString, Description: "One of: hotel, restaurant, activity", Enum: []string{"hotel", "restaurant", "activity"}},
				"query":       {Type: genai.TypeString, Description: "Optional free-text refinement, e.g. 'ramen' or 'boutique'"},
				"limit":       {Type: genai.TypeInteger, Description: "Maximum number of results, default 5"},
			},
			Required: []string{"destination", "category"},
		},
	}
}

type placeProviderResponse struct {
	Results []struct {
		ID         string   `json:"id"`
		Name       string   `json:"name"`
		Address    string   `json:"address"`
		Rating     float64  `json:"rating"`
		PriceLevel int      `json:"price_level"`
		Latitude   float64  `json:"lat"`
		Longitude  float64  `json:"lng"`
		PhotoURL   string   `json:"photo_url"`
		Summary    string   `json:"summary"`
		Tags       []string `json:"tags"`
	} `json:"results"`
}

func (t *PlaceSearchTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	destination := stringArg(args, "destination")
	category := stringArg(args, "category")
	if destination == "" || category == "" {
		return FailedResult("place_search requires destination and category")
	}
	query := stringArg(args, "query")
	limit := intArg(args, "limit", 5)

	key := cacheKey("places", category, destination, query, strconv.Itoa(limit))
	if cached, found := t.cache.Get(key); found {
		return cached.(types.ToolResult)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("near", destination)
	params.Set("category", category)
	params.Set("limit", strconv.Itoa(limit))

	var resp placeProviderResponse
	if err := getJSON(ctx, t.client, t.baseURL, "/search", params, &resp); err != nil {
		return FailedResult(fmt.Sprintf("place search for %s in %s failed: %v", category, destination, err))
	}

	cards := make([]types.PlaceCard, 0, len(resp.Results))
	for _, p := range resp.Results {
		cards = append(cards, types.PlaceCard{
			ID:          p.ID,
			Name:        p.Name,
			Category:    category,
			Address:     p.Address,
			Rating:      p.Rating,
			PriceLevel:  p.PriceLevel,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			PhotoURL:    p.PhotoURL,
			Description: p.Summary,
			Tags:        p.Tags,
		})
	}
	if len(cards) == 0 {
		return types.ToolResult{Summary: fmt.Sprintf("No %s results found in %s.", category, destination)}
	}

	result := types.ToolResult{
		Summary: fmt.Sprintf("Found %d %s result(s) in %s.", len(cards), category, destination),
		Cards:   cards,
	}
	t.cache.Set(key, result, cache.DefaultExpiration)
	return result
}
