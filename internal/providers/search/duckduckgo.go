package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/aibuddy/internal/cache"
)

const DefaultBaseURL = "https://api.duckduckgo.com/"

// DuckDuckGo queries an Instant Answer style endpoint.
type DuckDuckGo struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	Cache    cache.Cache // optional
	CacheTTL time.Duration

	Log *logrus.Logger
}

type instantAnswer struct {
	AbstractText  string         `json:"AbstractText"`
	RelatedTopics []relatedTopic `json:"RelatedTopics"`
}

// relatedTopic is either a leaf with Text or a named group of leaves.
type relatedTopic struct {
	Text   string         `json:"Text"`
	Topics []relatedTopic `json:"Topics"`
}

func NewDuckDuckGo(baseURL, apiKey string, c cache.Cache, ttl time.Duration, log *logrus.Logger) *DuckDuckGo {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &DuckDuckGo{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		HTTP:     &http.Client{Timeout: 15 * time.Second},
		Cache:    c,
		CacheTTL: ttl,
		Log:      log,
	}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, fmt.Errorf("search: empty query")
	}

	key := cache.SearchKey(query)
	if d.Cache != nil {
		var cached Result
		hit, err := d.Cache.GetJSON(ctx, key, &cached)
		if err != nil {
			d.logf(logrus.Fields{"query": query, "error": err.Error()}, "search cache read failed")
		} else if hit {
			return cached, nil
		}
	}

	res, err := d.fetch(ctx, query)
	if err != nil {
		return Result{}, err
	}

	if d.Cache != nil && d.CacheTTL > 0 {
		if err := d.Cache.SetJSON(ctx, key, res, d.CacheTTL); err != nil {
			d.logf(logrus.Fields{"query": query, "error": err.Error()}, "search cache write failed")
		}
	}
	return res, nil
}

func (d *DuckDuckGo) fetch(ctx context.Context, query string) (Result, error) {
	u, err := url.Parse(d.BaseURL)
	if err != nil {
		return Result{}, fmt.Errorf("search: bad base url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	if d.APIKey != "" {
		q.Set("key", d.APIKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Accept", "application/json")

	client := d.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("search: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("search: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var ia instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&ia); err != nil {
		return Result{}, fmt.Errorf("search: decode: %w", err)
	}

	res := Result{Abstract: strings.TrimSpace(ia.AbstractText)}
	collectRelated(ia.RelatedTopics, &res.Related)
	return res, nil
}

func collectRelated(topics []relatedTopic, out *[]string) {
	for _, t := range topics {
		if len(*out) >= MaxRelated {
			return
		}
		if txt := strings.TrimSpace(t.Text); txt != "" {
			*out = append(*out, txt)
			continue
		}
		collectRelated(t.Topics, out)
	}
}

func (d *DuckDuckGo) logf(fields logrus.Fields, msg string) {
	if d.Log == nil {
		return
	}
	d.Log.WithFields(fields).Warn(msg)
}
