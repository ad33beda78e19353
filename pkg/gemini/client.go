// Package gemini talks to the Google Generative Language API with the
// Google Search grounding tool enabled, and maps its loosely-typed
// payload into a strict intermediate shape at the boundary.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// RawStock is one instrument as returned by the provider. Numeric
// fields absent from the payload decode as zero rather than failing.
type RawStock struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	CurrentPrice float64 `json:"currentPrice"`
	Change6M     float64 `json:"change6m"`
	Change1M     float64 `json:"change1m"`
	Change1W     float64 `json:"change1w"`
	PERatio      float64 `json:"peRatio"`
	FairValue    float64 `json:"fairValue"`
	Sector       string  `json:"sector"`
}

// WebSource is the optional nested title/uri pair inside a citation.
type WebSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Citation is one grounding chunk, opaque beyond its optional web part.
type Citation struct {
	Web *WebSource `json:"web"`
}

// ScreenPayload is everything one provider query yields.
type ScreenPayload struct {
	Stocks    []RawStock
	Analysis  string
	Citations []Citation
}

// Client is a thin wrapper around the generateContent REST endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a client with sane defaults.
func NewClient(apiKey, model string, opts ...func(*Client)) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient overrides the internal HTTP client.
func WithHTTPClient(hc *http.Client) func(*Client) {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the default API base URL (useful for tests).
func WithBaseURL(url string) func(*Client) {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
	Tools    []tool    `json:"tools,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type tool struct {
	GoogleSearch struct{} `json:"google_search"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		GroundingMetadata struct {
			GroundingChunks []Citation `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

// screenDocument is the JSON document the model is prompted to emit.
type screenDocument struct {
	Stocks   []RawStock `json:"stocks"`
	Analysis string     `json:"analysis"`
}

// Screen queries the provider for a snapshot of the given EGX index and
// returns the decoded stocks, narrative analysis, and grounding chunks.
func (c *Client) Screen(ctx context.Context, index string) (*ScreenPayload, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gemini: missing API key")
	}

	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: screenPrompt(index)}}}},
		Tools:    []tool{{}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gemini: api error %d: %s", resp.StatusCode, string(data))
	}

	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}

	if len(payload.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: response contains no candidates")
	}

	candidate := payload.Candidates[0]

	var text strings.Builder
	for _, p := range candidate.Content.Parts {
		text.WriteString(p.Text)
	}

	var doc screenDocument
	if err := json.Unmarshal([]byte(extractJSON(text.String())), &doc); err != nil {
		return nil, fmt.Errorf("gemini: decode screen document: %w", err)
	}

	return &ScreenPayload{
		Stocks:    doc.Stocks,
		Analysis:  doc.Analysis,
		Citations: candidate.GroundingMetadata.GroundingChunks,
	}, nil
}

func screenPrompt(index string) string {
	return fmt.Sprintf(`You are a market data assistant for the Egyptian Exchange.
Using current web data, list the constituents of the %s index.

Respond with a single JSON object and nothing else:
{
  "stocks": [
    {
      "symbol": "ticker",
      "name": "company name",
      "currentPrice": 0.0,
      "change6m": 0.0,
      "change1m": 0.0,
      "change1w": 0.0,
      "peRatio": 0.0,
      "fairValue": 0.0,
      "sector": "sector name"
    }
  ],
  "analysis": "two or three sentences on the index's current state"
}

Prices are in EGP, change fields are percentages. Omit peRatio or
fairValue when no reliable figure exists.`, index)
}

// extractJSON strips markdown code fences the model tends to wrap its
// answer in and trims to the outermost object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
