package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScreenRequiresAPIKey(t *testing.T) {
	client := NewClient("", "gemini-2.5-flash")

	if _, err := client.Screen(context.Background(), "EGX30"); err == nil {
		t.Fatalf("expected error for missing API key")
	}
}

func TestScreenDecodesGroundedResponse(t *testing.T) {
	modelText := "```json\n{\"stocks\": [{\"symbol\": \"COMI\", \"name\": \"CIB\", \"currentPrice\": 82.5, \"change6m\": 20, \"change1m\": -8, \"change1w\": 1, \"fairValue\": 95}], \"analysis\": \"Banks lead the index.\"}\n```"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Tools) != 1 {
			t.Errorf("expected grounding tool in request")
		}

		response := map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"parts": []map[string]any{{"text": modelText}},
					},
					"groundingMetadata": map[string]any{
						"groundingChunks": []map[string]any{
							{"web": map[string]any{"title": "EGX Daily", "uri": "https://example.com/egx"}},
							{"web": map[string]any{}},
						},
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := NewClient("test-key", "gemini-2.5-flash", WithBaseURL(server.URL), WithHTTPClient(server.Client()))

	payload, err := client.Screen(context.Background(), "EGX30")
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}

	if len(payload.Stocks) != 1 {
		t.Fatalf("expected 1 stock, got %d", len(payload.Stocks))
	}
	stock := payload.Stocks[0]
	if stock.Symbol != "COMI" || stock.CurrentPrice != 82.5 || stock.FairValue != 95 {
		t.Fatalf("unexpected stock: %+v", stock)
	}
	if stock.PERatio != 0 {
		t.Fatalf("absent peRatio should decode as zero, got %f", stock.PERatio)
	}

	if payload.Analysis != "Banks lead the index." {
		t.Fatalf("unexpected analysis: %q", payload.Analysis)
	}

	if len(payload.Citations) != 2 {
		t.Fatalf("expected 2 grounding chunks, got %d", len(payload.Citations))
	}
	if payload.Citations[0].Web == nil || payload.Citations[0].Web.Title != "EGX Daily" {
		t.Fatalf("unexpected first citation: %+v", payload.Citations[0])
	}
}

func TestScreenSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("test-key", "gemini-2.5-flash", WithBaseURL(server.URL))

	if _, err := client.Screen(context.Background(), "EGX30"); err == nil {
		t.Fatalf("expected error from non-2xx response")
	}
}

func TestExtractJSONHandlesFencesAndProse(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"{\"a\": 1}", "{\"a\": 1}"},
		{"```json\n{\"a\": 1}\n```", "{\"a\": 1}"},
		{"Here you go:\n{\"a\": 1}\nHope that helps.", "{\"a\": 1}"},
	}

	for _, tc := range cases {
		if got := extractJSON(tc.in); got != tc.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
