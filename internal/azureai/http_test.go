package azureai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(serverURL string) *HTTPClient {
	return NewHTTPClient(Config{
		Endpoint:            serverURL,
		APIKey:              "test-key",
		ChatDeployment:      "gpt-4",
		EmbeddingDeployment: "embeddings",
		ImageDeployment:     "dalle",
	})
}

func TestHTTPStreamCompleteParsesSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("api-key"); got != "test-key" {
			t.Errorf("api-key header = %q, want test-key", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, word := range []string{"Hello", " there", "!"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", word)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	var got []string
	final, err := c.StreamComplete(context.Background(),
		[]Message{{Role: "user", Content: "hi"}}, CompleteOptions{},
		func(delta string) error {
			got = append(got, delta)
			return nil
		})
	if err != nil {
		t.Fatalf("StreamComplete() error = %v", err)
	}
	if final != "Hello there!" {
		t.Fatalf("final = %q, want %q", final, "Hello there!")
	}
	if len(got) != 3 {
		t.Fatalf("deltas = %d, want 3 (no re-buffering of backend chunks)", len(got))
	}
}

func TestHTTPCompleteContentFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":"content_filter","message":"blocked"}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, CompleteOptions{})
	if !errors.Is(err, ErrContentBlocked) {
		t.Fatalf("Complete() error = %v, want ErrContentBlocked", err)
	}
}

func TestHTTPCompleteRetriesRetryableStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.maxRetries = 2
	text, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, CompleteOptions{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "ok" {
		t.Fatalf("text = %q, want ok", text)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestHTTPEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/deployments/embeddings/") {
			t.Errorf("path = %q, want embeddings deployment", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":[{"embedding":[0.25,0.5,-0.5]}]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	vec, err := c.Embed(context.Background(), "remember the milk")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.25 {
		t.Fatalf("vec = %v, want [0.25 0.5 -0.5]", vec)
	}
}

func TestHTTPEmbedUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Embed(context.Background(), "x")
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("Embed() error = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestHTTPGenerateImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"url":"https://img.example/1.png"}]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	url, err := c.GenerateImage(context.Background(), "a castle")
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if url != "https://img.example/1.png" {
		t.Fatalf("url = %q", url)
	}
}
