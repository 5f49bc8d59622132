// Package exa adapts the Exa search API into the pipeline's Searcher,
// Contenter, FindSimilarer, and Answerer capabilities.
package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/researchd/researchd/pkg/adapter"
	"github.com/researchd/researchd/pkg/evidence"
	"github.com/researchd/researchd/pkg/httpclient"
)

const defaultBaseURL = "https://api.exa.ai"

// paramAliases maps the strategy-author-facing parameter names this
// module accepts onto the Exa API's own field names, so strategy
// documents can write max_results/start_date/domains instead of the
// API's num_results/start_published_date/include_domains.
var paramAliases = map[string]string{
	"start_date": "start_published_date",
	"end_date":   "end_published_date",
	"domains":    "include_domains",
	"exclude":    "exclude_domains",
	"autoprompt": "use_autoprompt",
	"location":   "user_location",
	"max_results": "num_results",
}

var searchParams = []string{
	"type", "category", "num_results",
	"start_crawl_date", "end_crawl_date",
	"start_published_date", "end_published_date",
	"include_domains", "exclude_domains",
	"include_text", "exclude_text",
	"use_autoprompt", "user_location",
	"moderation", "context",
}

var contentsParams = []string{
	"text", "highlights", "summary", "livecrawl",
	"livecrawl_timeout", "subpages", "subpage_target",
	"extras", "context",
}

var findSimilarParams = []string{
	"num_results", "include_domains", "exclude_domains",
	"start_crawl_date", "end_crawl_date",
	"start_published_date", "end_published_date",
	"include_text", "exclude_text", "exclude_source_domain",
	"category", "moderation", "context",
}

type Adapter struct {
	apiKey     string
	httpClient *httpclient.Client
	baseURL    string
}

func New(apiKey string) (*Adapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("exa: API key required")
	}
	client := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		httpclient.WithMaxRetries(2),
		httpclient.WithBaseDelay(time.Second),
	)
	return &Adapter{apiKey: apiKey, httpClient: client, baseURL: defaultBaseURL}, nil
}

func (a *Adapter) Name() string { return "exa" }

func (a *Adapter) Capabilities() []string {
	return []string{adapter.CapSearch, adapter.CapContents, adapter.CapFindSimilar, adapter.CapAnswer}
}

func applyAliases(inputs adapter.Inputs) map[string]any {
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		out[k] = v
	}
	for old, renamed := range paramAliases {
		if v, ok := out[old]; ok {
			out[renamed] = v
			delete(out, old)
		}
	}
	return out
}

func pickParams(params map[string]any, allowed []string) map[string]any {
	out := make(map[string]any, len(allowed))
	for _, p := range allowed {
		if v, ok := params[p]; ok {
			out[p] = v
		}
	}
	return out
}

type exaResult struct {
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Source        string  `json:"source"`
	PublishedDate string  `json:"publishedDate"`
	Text          string  `json:"text"`
	Snippet       string  `json:"snippet"`
	Score         float64 `json:"score"`
}

type exaSearchResponse struct {
	Results []exaResult `json:"results"`
}

func (a *Adapter) post(ctx context.Context, path string, body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("exa: marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("exa: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exa: request failed: %w", err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Search executes a keyword/neural search and returns normalized evidence.
func (a *Adapter) Search(ctx context.Context, query string, inputs adapter.Inputs) (adapter.EvidenceResult, error) {
	params := pickParams(applyAliases(inputs), searchParams)
	params["query"] = query

	raw, err := a.post(ctx, "/search", params)
	if err != nil {
		return nil, err
	}
	var parsed exaSearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("exa: decoding search response: %w", err)
	}

	out := make([]evidence.Evidence, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, evidence.Evidence{
			URL: r.URL, Title: r.Title,
			Publisher: firstNonEmpty(r.Author, r.Source),
			Date:      r.PublishedDate,
			Snippet:   firstNonEmpty(r.Text, r.Snippet),
			Tool:      a.Name(), Score: r.Score,
		})
	}
	return out, nil
}

// Contents fetches one or more URLs' page content.
func (a *Adapter) Contents(ctx context.Context, urls []string, inputs adapter.Inputs) (adapter.EvidenceResult, error) {
	params := pickParams(applyAliases(inputs), contentsParams)
	params["urls"] = urls

	raw, err := a.post(ctx, "/contents", params)
	if err != nil {
		return nil, err
	}
	var parsed exaSearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("exa: decoding contents response: %w", err)
	}

	out := make([]evidence.Evidence, 0, len(parsed.Results))
	for i, r := range parsed.Results {
		url := r.URL
		if url == "" && len(urls) == 1 {
			url = urls[0]
		} else if url == "" && i < len(urls) {
			url = urls[i]
		}
		out = append(out, evidence.Evidence{URL: url, Title: r.Title, Snippet: r.Text, Tool: a.Name()})
	}
	return out, nil
}

// FindSimilar finds pages similar to seedURL.
func (a *Adapter) FindSimilar(ctx context.Context, seedURL string, inputs adapter.Inputs) (adapter.EvidenceResult, error) {
	params := pickParams(applyAliases(inputs), findSimilarParams)
	params["url"] = seedURL

	raw, err := a.post(ctx, "/findSimilar", params)
	if err != nil {
		return nil, err
	}
	var parsed exaSearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("exa: decoding findSimilar response: %w", err)
	}

	out := make([]evidence.Evidence, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, evidence.Evidence{
			URL: r.URL, Title: r.Title,
			Publisher: firstNonEmpty(r.Author, r.Source),
			Date:      r.PublishedDate,
			Snippet:   firstNonEmpty(r.Text, r.Snippet),
			Tool:      a.Name(), Score: r.Score,
		})
	}
	return out, nil
}

type exaAnswerResponse struct {
	Answer string `json:"answer"`
}

// Answer asks Exa's direct-answer endpoint a question and returns the
// synthesized text (not evidence — Answerer is the one capability that
// returns a string, per the capability contract).
func (a *Adapter) Answer(ctx context.Context, query string, inputs adapter.Inputs) (string, error) {
	params := map[string]any{"query": query}
	if stream, ok := inputs["stream"]; ok {
		params["stream"] = stream
	}
	raw, err := a.post(ctx, "/answer", params)
	if err != nil {
		return "", err
	}
	var parsed exaAnswerResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("exa: decoding answer response: %w", err)
	}
	return parsed.Answer, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
