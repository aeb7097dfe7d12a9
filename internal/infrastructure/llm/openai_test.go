package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"PaperPromoter/internal/domain"
)

const completionJSON = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "test-model",
  "choices": [
    {"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "  generated text  "}}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOpenAIClient(Settings{
		APIKey:      "sk-test",
		BaseURL:     server.URL + "/v1/",
		TextModel:   "text-model",
		VisionModel: "vision-model",
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	return client
}

func TestCompleteReturnsTrimmedContent(t *testing.T) {
	t.Parallel()

	var body string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON))
	})

	out, err := client.Complete(context.Background(), domain.Prompt{System: "be brief", User: "summarise"}, domain.CallOptions{MaxTokens: 100})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "generated text" {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(body, `"text-model"`) || !strings.Contains(body, "summarise") {
		t.Fatalf("unexpected request body %s", body)
	}
}

func TestDescribeSendsDataURL(t *testing.T) {
	t.Parallel()

	var body string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON))
	})

	img := domain.Image{MIME: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}
	if _, err := client.Describe(context.Background(), img, domain.Prompt{User: "what is shown?"}, domain.CallOptions{}); err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !strings.Contains(body, "data:image/jpeg;base64,/9j/") {
		t.Fatalf("expected inline image in request, got %s", body)
	}
	if !strings.Contains(body, `"vision-model"`) {
		t.Fatalf("expected vision model in request, got %s", body)
	}
}

func TestStatusCodesAreClassified(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status    int
		retriable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
	}

	for _, tc := range cases {
		status := tc.status
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error": {"message": "nope", "type": "invalid_request_error"}}`))
		})

		_, err := client.Complete(context.Background(), domain.Prompt{User: "x"}, domain.CallOptions{})
		var te *domain.TransportError
		if !errors.As(err, &te) {
			t.Fatalf("status %d: expected TransportError, got %v", status, err)
		}
		if te.StatusCode != status || te.Retriable != tc.retriable {
			t.Fatalf("status %d: unexpected classification %+v", status, te)
		}
		if status == http.StatusTooManyRequests && te.RetryAfter != 3 {
			t.Fatalf("expected Retry-After 3, got %d", te.RetryAfter)
		}
	}
}

func TestNewOpenAIClientValidates(t *testing.T) {
	t.Parallel()

	if _, err := NewOpenAIClient(Settings{TextModel: "m"}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := NewOpenAIClient(Settings{APIKey: "k"}); err == nil {
		t.Fatalf("expected missing model error")
	}
	c, err := NewOpenAIClient(Settings{APIKey: "k", TextModel: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.VisionModelName() != "m" {
		t.Fatalf("vision model should default to text model, got %s", c.VisionModelName())
	}
}
