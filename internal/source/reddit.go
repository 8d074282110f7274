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
	"time"

	"github.com/Lee-Soyeon/kpop-trade-collector/internal/model"
	"github.com/Lee-Soyeon/kpop-trade-collector/pkg/httpclient"
)

const (
	defaultTokenURL   = "https://www.reddit.com/api/v1/access_token"
	defaultRedditURL  = "https://oauth.reddit.com"
	defaultUserAgent  = "kpop-trade-collector/2.0.0 (by /u/kpop_collector)"
	defaultTimeFilter = "year"
	defaultSort       = "relevance"

	// tokenSlack refreshes the OAuth token a bit before the server-side expiry.
	tokenSlack = 60 * time.Second
)

// RedditConfig configures the native-platform adapter.
type RedditConfig struct {
	AppID  string
	Secret string
	// TokenURL and BaseURL override the OAuth and API endpoints for tests.
	TokenURL string
	BaseURL  string
	// UserAgent identifies this application. Reddit requires a stable,
	// descriptive UA; rotating it gets clients banned.
	UserAgent string
	// Communities are the subreddits a query is searched in, in order.
	Communities []string
	// PageSize is posts per call (API max 100).
	PageSize int
	// Sort and TimeFilter are passed straight through to the search endpoint.
	Sort       string
	TimeFilter string
	// MaxAge drops posts older than now-MaxAge and stops paginating a
	// community once it reaches them. Zero disables the cutoff.
	MaxAge time.Duration
	// MaxPages caps the pages fetched per community for one query. Zero
	// means no cap.
	MaxPages int
	HTTP   *httpclient.Client
	Logger *slog.Logger
}

// Reddit searches the platform's own OAuth API. It yields much richer
// per-post metadata than the search proxy but is subject to a per-minute
// request ceiling, which the rate budget controller paces.
type Reddit struct {
	cfg    RedditConfig
	logger *slog.Logger

	token       string
	tokenExpiry time.Time
}

// NewReddit validates the credential pair and returns the adapter.
func NewReddit(cfg RedditConfig) (*Reddit, error) {
	if cfg.AppID == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("reddit: missing app credentials: %w", ErrAuth)
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultRedditURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if len(cfg.Communities) == 0 {
		return nil, fmt.Errorf("reddit: no communities configured")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.PageSize > 100 {
		cfg.PageSize = 100
	}
	if cfg.Sort == "" {
		cfg.Sort = defaultSort
	}
	if cfg.TimeFilter == "" {
		cfg.TimeFilter = defaultTimeFilter
	}
	if cfg.HTTP == nil {
		cfg.HTTP = httpclient.New(httpclient.Config{})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reddit{cfg: cfg, logger: logger}, nil
}

func (r *Reddit) Name() string         { return "reddit" }
func (r *Reddit) Source() model.Source { return model.SourceNativeAPI }

// authenticate obtains (or reuses) an application-only OAuth token.
func (r *Reddit) authenticate(ctx context.Context) error {
	if r.token != "" && time.Now().Before(r.tokenExpiry) {
		return nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("device_id", "kpop_trade_collector_v2")

	req, err := http.NewRequest(http.MethodPost, r.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("reddit: build token request: %w", err)
	}
	req.SetBasicAuth(r.cfg.AppID, r.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	resp, err := r.cfg.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("reddit: token request: %w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("reddit: token rejected, status %d: %w", resp.StatusCode, ErrAuth)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("reddit: token endpoint status %d: %w", resp.StatusCode, ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("reddit: token endpoint status %d: %w", resp.StatusCode, ErrTransient)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return fmt.Errorf("reddit: decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("reddit: empty access token: %w", ErrAuth)
	}

	if tok.ExpiresIn <= 0 {
		tok.ExpiresIn = 3600
	}
	r.token = tok.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSlack)
	return nil
}

type redditListing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Permalink   string  `json:"permalink"`
}

// Search runs a query against one community page at a time. The opaque
// cursor packs the community index, the page count within it and the
// listing's after token; when one community is exhausted the cursor
// advances to the next, and "" is returned once the last community is done.
func (r *Reddit) Search(ctx context.Context, query, cursor string) ([]RawRecord, string, error) {
	idx, page, after, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", fmt.Errorf("reddit: %w", err)
	}
	if idx >= len(r.cfg.Communities) {
		return nil, "", nil
	}
	community := r.cfg.Communities[idx]

	if err := r.authenticate(ctx); err != nil {
		return nil, "", err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(r.cfg.PageSize))
	params.Set("sort", r.cfg.Sort)
	params.Set("t", r.cfg.TimeFilter)
	params.Set("restrict_sr", "true")
	params.Set("raw_json", "1")
	if after != "" {
		params.Set("after", after)
	}

	endpoint := fmt.Sprintf("%s/r/%s/search?%s", r.cfg.BaseURL, community, params.Encode())
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("reddit: build search request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+r.token)
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	resp, err := r.cfg.HTTP.Do(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("reddit: search r/%s: %w: %v", community, ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Force a fresh token on the next call in case this one expired early.
		r.token = ""
		return nil, "", fmt.Errorf("reddit: search r/%s status %d: %w", community, resp.StatusCode, ErrAuth)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, "", fmt.Errorf("reddit: search r/%s status %d: %w", community, resp.StatusCode, ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, "", fmt.Errorf("reddit: search r/%s status %d: %w", community, resp.StatusCode, ErrTransient)
	case resp.StatusCode != http.StatusOK:
		return nil, "", fmt.Errorf("reddit: search r/%s unexpected status %d", community, resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, "", fmt.Errorf("reddit: decode listing: %w", err)
	}

	var cutoff time.Time
	if r.cfg.MaxAge > 0 {
		cutoff = time.Now().Add(-r.cfg.MaxAge)
	}

	records := make([]RawRecord, 0, len(listing.Data.Children))
	hitCutoff := false
	for _, child := range listing.Data.Children {
		post := child.Data
		created := time.Unix(int64(post.CreatedUTC), 0).UTC()
		if !cutoff.IsZero() && created.Before(cutoff) {
			hitCutoff = true
			continue
		}
		records = append(records, RawRecord{
			Source:       model.SourceNativeAPI,
			NativeID:     post.ID,
			URL:          "https://reddit.com" + post.Permalink,
			Title:        post.Title,
			Body:         post.Selftext,
			Author:       post.Author,
			Community:    post.Subreddit,
			Score:        post.Score,
			NumResponses: post.NumComments,
			CreatedAt:    created,
		})
	}

	// Advance within the community while there are pages left under the
	// page cap and we have not walked past the recency window; otherwise
	// move to the next one.
	next := ""
	switch {
	case listing.Data.After != "" && !hitCutoff && len(listing.Data.Children) > 0 && r.morePages(page):
		next = encodeCursor(idx, page+1, listing.Data.After)
	case idx+1 < len(r.cfg.Communities):
		next = encodeCursor(idx+1, 0, "")
	}
	return records, next, nil
}

func (r *Reddit) morePages(page int) bool {
	return r.cfg.MaxPages <= 0 || page+1 < r.cfg.MaxPages
}

func encodeCursor(idx, page int, after string) string {
	return strconv.Itoa(idx) + ":" + strconv.Itoa(page) + ":" + after
}

func decodeCursor(cursor string) (idx, page int, after string, err error) {
	if cursor == "" {
		return 0, 0, "", nil
	}
	head, rest, ok := strings.Cut(cursor, ":")
	if !ok {
		return 0, 0, "", fmt.Errorf("invalid cursor %q", cursor)
	}
	mid, tail, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, 0, "", fmt.Errorf("invalid cursor %q", cursor)
	}
	idx, err = strconv.Atoi(head)
	if err != nil {
		return 0, 0, "", fmt.Errorf("invalid cursor %q", cursor)
	}
	page, err = strconv.Atoi(mid)
	if err != nil {
		return 0, 0, "", fmt.Errorf("invalid cursor %q", cursor)
	}
	return idx, page, tail, nil
}
