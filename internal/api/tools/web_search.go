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

const WebSearchToolName = "web_search"

// WebSearchTool grounds answers in current web results and yields the
// citations carried on the turn's done event.
type WebSearchTool struct {
	logger  *slog.Logger
	cache   *cache.Cache
	baseURL string
	client  Doer
}

func NewWebSearchTool(baseURL string, resultCache *cache.Cache, logger *slog.Logger) *WebSearchTool {
	return &WebSearchTool{
		logger:  logger,
		cache:   resultCache,
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
}

func (t *WebSearchTool) WithHTTPClient(client Doer) *WebSearchTool {
	t.client = client
	return t
}

func (t *WebSearchTool) Name() string { return WebSearchToolName }

func (t *WebSearchTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        WebSearchToolName,
		Description: "Search the web for up-to-date travel information: opening hours, events, entry requirements, prices.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query": {Type: genai.TypeString, Description: "Search query"},
				"limit": {Type: genai.TypeInteger, Description: "Maximum number of results, default 5"},
			},
			Required: []string{"query"},
		},
	}
}

type webProviderResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Source  string `json:"source"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	query := stringArg(args, "query")
	if query == "" {
		return FailedResult("web_search requires query")
	}
	limit := intArg(args, "limit", 5)

	key := cacheKey("web", query, strconv.Itoa(limit))
	if cached, found := t.cache.Get(key); found {
		return cached.(types.ToolResult)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(limit))

	var resp webProviderResponse
	if err := getJSON(ctx, t.client, t.baseURL, "/search", params, &resp); err != nil {
		return FailedResult(fmt.Sprintf("web search for %q failed: %v", query, err))
	}

	citations := make([]types.Citation, 0, len(resp.Results))
	var sb strings.Builder
	for _, r := range resp.Results {
		citations = append(citations, types.Citation{
			Title:  r.Title,
			URL:    r.URL,
			Source: r.Source,
		})
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "%s: %s\n", r.Title, r.Snippet)
		}
	}

	result := types.ToolResult{
		Summary:   strings.TrimSpace(sb.String()),
		Citations: citations,
	}
	if result.Summary == "" {
		result.Summary = fmt.Sprintf("No web results found for %q.", query)
	}
	t.cache.Set(key, result, cache.DefaultExpiration)
	return result
}
