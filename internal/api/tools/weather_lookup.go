package tools

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/patrickmn/go-cache"
	"google.golang.org/genai"

	"github.com/MintuTF/tripply/internal/types"
)

const WeatherLookupToolName = "weather_lookup"

// WeatherLookupTool fetches a short forecast for a destination.
type WeatherLookupTool struct {
	logger  *slog.Logger
	cache   *cache.Cache
	baseURL string
	client  Doer
}

func NewWeatherLookupTool(baseURL string, resultCache *cache.Cache, logger *slog.Logger) *WeatherLookupTool {
	return &WeatherLookupTool{
		logger:  logger,
		cache:   resultCache,
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
}

func (t *WeatherLookupTool) WithHTTPClient(client Doer) *WeatherLookupTool {
	t.client = client
	return t
}

func (t *WeatherLookupTool) Name() string { return WeatherLookupToolName }

func (t *WeatherLookupTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        WeatherLookupToolName,
		Description: "Look up the weather forecast for a destination for the next few days.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"destination": {Type: genai.TypeString, Description: "City to fetch the forecast for"},
				"days":        {Type: genai.TypeInteger, Description: "Number of forecast days, default 3, max 7"},
			},
			Required: []string{"destination"},
		},
	}
}

type weatherProviderResponse struct {
	Location string `json:"location"`
	Days     []struct {
		Date         string  `json:"date"`
		Summary      string  `json:"summary"`
		HighC        float64 `json:"high_c"`
		LowC         float64 `json:"low_c"`
		PrecipChance int     `json:"precip_chance"`
	} `json:"days"`
}

func (t *WeatherLookupTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	destination := stringArg(args, "destination")
	if destination == "" {
		return FailedResult("weather_lookup requires destination")
	}
	days := intArg(args, "days", 3)
	if days > 7 {
		days = 7
	}

	key := cacheKey("weather", destination, strconv.Itoa(days))
	if cached, found := t.cache.Get(key); found {
		return cached.(types.ToolResult)
	}

	params := url.Values{}
	params.Set("q", destination)
	params.Set("days", strconv.Itoa(days))

	var resp weatherProviderResponse
	if err := getJSON(ctx, t.client, t.baseURL, "/forecast", params, &resp); err != nil {
		return FailedResult(fmt.Sprintf("weather lookup for %s failed: %v", destination, err))
	}

	var sb strings.Builder
	payloadDays := make([]map[string]any, 0, len(resp.Days))
	for _, d := range resp.Days {
		fmt.Fprintf(&sb, "%s: %s, %.0f-%.0f°C, %d%% precipitation. ", d.Date, d.Summary, d.LowC, d.HighC, d.PrecipChance)
		payloadDays = append(payloadDays, map[string]any{
			"date":          d.Date,
			"summary":       d.Summary,
			"high_c":        d.HighC,
			"low_c":         d.LowC,
			"precip_chance": d.PrecipChance,
		})
	}

	result := types.ToolResult{
		Summary: fmt.Sprintf("Forecast for %s: %s", resp.Location, strings.TrimSpace(sb.String())),
		Payload: map[string]any{
			"location": resp.Location,
			"days":     payloadDays,
		},
	}
	t.cache.Set(key, result, cache.DefaultExpiration)
	return result
}
