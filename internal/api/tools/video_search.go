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

const VideoSearchToolName = "video_search"

// VideoSearchTool finds travel videos for a destination. With analyze set
// it also fetches the provider's content breakdown for the top hit, and
// with smart set it returns the single best match with the reasoning
// behind the pick.
type VideoSearchTool struct {
	logger  *slog.Logger
	cache   *cache.Cache
	baseURL string
	client  Doer
}

func NewVideoSearchTool(baseURL string, resultCache *cache.Cache, logger *slog.Logger) *VideoSearchTool {
	return &VideoSearchTool{
		logger:  logger,
		cache:   resultCache,
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
}

func (t *VideoSearchTool) WithHTTPClient(client Doer) *VideoSearchTool {
	t.client = client
	return t
}

func (t *VideoSearchTool) Name() string { return VideoSearchToolName }

func (t *VideoSearchTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        VideoSearchToolName,
		Description: "Search for travel videos about a destination or topic. Set analyze to include a content breakdown of the top result; set smart to get the single best match.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query":   {Type: genai.TypeString, Description: "What to search videos for, e.g. 'Tokyo street food'"},
				"limit":   {Type: genai.TypeInteger, Description: "Maximum number of results, default 4"},
				"analyze": {Type: genai.TypeBoolean, Description: "Fetch a content breakdown of the top result"},
				"smart":   {Type: genai.TypeBoolean, Description: "Return only the single most relevant video"},
			},
			Required: []string{"query"},
		},
	}
}

type videoProviderResponse struct {
	Items []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		Channel      string `json:"channel"`
		ThumbnailURL string `json:"thumbnail_url"`
		Duration     string `json:"duration"`
		ViewCount    int64  `json:"view_count"`
		URL          string `json:"url"`
	} `json:"items"`
}

type videoAnalysisResponse struct {
	VideoID    string   `json:"video_id"`
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
	Places     []string `json:"places"`
}

func (t *VideoSearchTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	query := stringArg(args, "query")
	if query == "" {
		return FailedResult("video_search requires query")
	}
	limit := intArg(args, "limit", 4)
	analyze := boolArg(args, "analyze")
	smart := boolArg(args, "smart")

	key := cacheKey("videos", query, strconv.Itoa(limit), strconv.FormatBool(analyze), strconv.FormatBool(smart))
	if cached, found := t.cache.Get(key); found {
		return cached.(types.ToolResult)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	var resp videoProviderResponse
	if err := getJSON(ctx, t.client, t.baseURL, "/search", params, &resp); err != nil {
		return FailedResult(fmt.Sprintf("video search for %q failed: %v", query, err))
	}
	if len(resp.Items) == 0 {
		return types.ToolResult{Summary: fmt.Sprintf("No videos found for %q.", query)}
	}

	videos := make([]types.VideoResult, 0, len(resp.Items))
	for _, v := range resp.Items {
		videos = append(videos, types.VideoResult{
			ID:           v.ID,
			Title:        v.Title,
			ChannelName:  v.Channel,
			ThumbnailURL: v.ThumbnailURL,
			Duration:     v.Duration,
			ViewCount:    v.ViewCount,
			URL:          v.URL,
		})
	}

	result := types.ToolResult{
		Summary: fmt.Sprintf("Found %d video(s) for %q.", len(videos), query),
		Videos:  videos,
	}

	if smart {
		best := videos[0]
		for _, v := range videos[1:] {
			if v.ViewCount > best.ViewCount {
				best = v
			}
		}
		result.Smart = &types.SmartVideoPick{
			Video:     best,
			Reasoning: fmt.Sprintf("Most watched result for %q (%d views).", query, best.ViewCount),
			Relevance: 1,
		}
	}

	if analyze {
		analysisParams := url.Values{}
		analysisParams.Set("video_id", videos[0].ID)
		var ar videoAnalysisResponse
		if err := getJSON(ctx, t.client, t.baseURL, "/analysis", analysisParams, &ar); err != nil {
			// Analysis is an enrichment; the search result stands on its own.
			t.logger.WarnContext(ctx, "Video analysis unavailable",
				slog.String("video_id", videos[0].ID), slog.Any("error", err))
		} else {
			result.Analysis = &types.VideoAnalysis{
				VideoID:    ar.VideoID,
				Summary:    ar.Summary,
				Highlights: ar.Highlights,
				Places:     ar.Places,
			}
		}
	}

	t.cache.Set(key, result, cache.DefaultExpiration)
	return result
}
