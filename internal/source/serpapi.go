package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Lee-Soyeon/kpop-trade-collector/internal/model"
	"github.com/Lee-Soyeon/kpop-trade-collector/pkg/httpclient"
)

const defaultSerpAPIURL = "https://serpapi.com/search"

// SerpAPIConfig configures the search-proxy adapter.
type SerpAPIConfig struct {
	APIKey string
	// BaseURL overrides the SerpAPI endpoint, mainly for tests.
	BaseURL string
	// SiteScope restricts results to one domain via a site: operator.
	SiteScope string
	// PageSize is the number of hits requested per call (max 100).
	PageSize int
	// Language is the hl parameter, also recorded as the language hint.
	Language string
	// RecencyMonths limits results to the last N months (tbs=qdr:mN).
	RecencyMonths int
	HTTP          *httpclient.Client
	Logger        *slog.Logger
}

// SerpAPI searches the platform through a third-party Google-results API.
// Hits are generic web-search results, so anything outside the platform's
// domain is filtered out before it leaves this adapter. Every call burns
// one unit of a hard monthly quota.
type SerpAPI struct {
	cfg    SerpAPIConfig
	logger *slog.Logger
}

// NewSerpAPI validates the credential and returns the adapter.
func NewSerpAPI(cfg SerpAPIConfig) (*SerpAPI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("serpapi: missing API key: %w", ErrAuth)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSerpAPIURL
	}
	if cfg.SiteScope == "" {
		cfg.SiteScope = "reddit.com"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.PageSize > 100 {
		cfg.PageSize = 100
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.HTTP == nil {
		cfg.HTTP = httpclient.New(httpclient.Config{})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SerpAPI{cfg: cfg, logger: logger}, nil
}

func (s *SerpAPI) Name() string         { return "serpapi" }
func (s *SerpAPI) Source() model.Source { return model.SourceSearchProxy }

type serpResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// Search fetches one page of results. The cursor is the numeric start
// offset of the next page.
func (s *SerpAPI) Search(ctx context.Context, query, cursor string) ([]RawRecord, string, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("serpapi: invalid cursor %q", cursor)
		}
		offset = n
	}

	params := url.Values{}
	params.Set("q", query+" site:"+s.cfg.SiteScope)
	params.Set("api_key", s.cfg.APIKey)
	params.Set("num", strconv.Itoa(s.cfg.PageSize))
	params.Set("hl", s.cfg.Language)
	if s.cfg.RecencyMonths > 0 {
		params.Set("tbs", fmt.Sprintf("qdr:m%d", s.cfg.RecencyMonths))
	}
	if offset > 0 {
		params.Set("start", strconv.Itoa(offset))
	}

	req, err := http.NewRequest(http.MethodGet, s.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("serpapi: build request: %w", err)
	}

	resp, err := s.cfg.HTTP.Do(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("serpapi: %w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, "", fmt.Errorf("serpapi: status %d: %w", resp.StatusCode, ErrAuth)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, "", fmt.Errorf("serpapi: status %d: %w", resp.StatusCode, ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, "", fmt.Errorf("serpapi: status %d: %w", resp.StatusCode, ErrTransient)
	case resp.StatusCode != http.StatusOK:
		return nil, "", fmt.Errorf("serpapi: unexpected status %d", resp.StatusCode)
	}

	var data serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, "", fmt.Errorf("serpapi: decode response: %w", err)
	}
	if data.Error != "" {
		if strings.Contains(strings.ToLower(data.Error), "run out of searches") {
			return nil, "", fmt.Errorf("serpapi: %s: %w", data.Error, ErrQuotaExhausted)
		}
		return nil, "", fmt.Errorf("serpapi: provider error: %s", data.Error)
	}

	records := make([]RawRecord, 0, len(data.OrganicResults))
	for _, hit := range data.OrganicResults {
		if !s.inScope(hit.Link) {
			s.logger.Debug("serpapi hit outside platform domain", "url", hit.Link)
			continue
		}
		records = append(records, RawRecord{
			Source:  model.SourceSearchProxy,
			URL:     hit.Link,
			Title:   hit.Title,
			Snippet: hit.Snippet,
		})
	}

	// A short page means the provider has nothing further for this query.
	next := ""
	if len(data.OrganicResults) >= s.cfg.PageSize {
		next = strconv.Itoa(offset + len(data.OrganicResults))
	}
	return records, next, nil
}

// inScope reports whether the hit belongs to the platform's domain,
// including subdomains like www or old.
func (s *SerpAPI) inScope(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == s.cfg.SiteScope || strings.HasSuffix(host, "."+s.cfg.SiteScope)
}
