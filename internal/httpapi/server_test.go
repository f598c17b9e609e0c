package httpapi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/hellofriend/hellofriend/internal/azureai"
	"github.com/hellofriend/hellofriend/internal/chat"
	"github.com/hellofriend/hellofriend/internal/config"
	"github.com/hellofriend/hellofriend/internal/conversation"
	"github.com/hellofriend/hellofriend/internal/ingest"
	"github.com/hellofriend/hellofriend/internal/memory"
	"github.com/hellofriend/hellofriend/internal/retrieval"
	"github.com/hellofriend/hellofriend/internal/vectorindex"
	"github.com/hellofriend/hellofriend/internal/websearch"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ai, err := azureai.NewClient(azureai.Config{Mode: "mock"})
	if err != nil {
		t.Fatalf("azureai.NewClient() error = %v", err)
	}
	memStore := memory.NewInMemoryStore()
	index := vectorindex.NewInMemoryIndex()
	memSvc := memory.NewService(memStore, index, ai)
	convs := conversation.NewInMemoryStore()
	engine := retrieval.NewEngine(ai, index, memStore, nil)
	summarizer := conversation.NewSummarizer(convs, ai, memSvc, nil)
	orch := chat.NewOrchestrator(memSvc, convs, engine, ai, websearch.NewMockSearcher(), summarizer, nil, nil)
	files := ingest.NewService(memSvc)

	srv := New(config.Config{AllowAnyOrigin: true}, orch, memSvc, convs, engine, files, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postTurn(t *testing.T, ts *httptest.Server, body map[string]string) []streamEvent {
	t.Helper()
	payload, _ := json.Marshal(body)
	res, err := http.Post(ts.URL+"/v1/chat/turn", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("turn request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("turn status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var events []streamEvent
	scanner := bufio.NewScanner(res.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("unmarshal stream line %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestTurnEndpointStreams(t *testing.T) {
	ts := newTestServer(t)

	events := postTurn(t, ts, map[string]string{
		"conversationId": "c1",
		"userId":         "u1",
		"message":        "hello there",
	})
	if len(events) < 2 {
		t.Fatalf("events = %v, want chunks plus done", events)
	}
	var content strings.Builder
	for _, ev := range events[:len(events)-1] {
		if ev.Type != "chunk" {
			t.Fatalf("event type = %q, want chunk before done", ev.Type)
		}
		content.WriteString(ev.Content)
	}
	last := events[len(events)-1]
	if last.Type != "done" || last.Intent != "text" {
		t.Fatalf("final event = %+v, want done with text intent", last)
	}
	if !strings.Contains(content.String(), "hello there") {
		t.Fatalf("streamed content = %q, want mock echo of the message", content.String())
	}
}

func TestTurnEndpointValidation(t *testing.T) {
	ts := newTestServer(t)

	payload, _ := json.Marshal(map[string]string{"conversationId": "c1"})
	res, err := http.Post(ts.URL+"/v1/chat/turn", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("turn request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d for missing message", res.StatusCode, http.StatusBadRequest)
	}
}

func TestListTurnsAfterTurn(t *testing.T) {
	ts := newTestServer(t)
	postTurn(t, ts, map[string]string{
		"conversationId": "c2",
		"userId":         "u1",
		"message":        "remember my cat is called Miso",
	})

	res, err := http.Get(ts.URL + "/v1/conversations/c2/turns")
	if err != nil {
		t.Fatalf("history request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var out struct {
		Turns []turnView `json:"turns"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(out.Turns) != 2 {
		t.Fatalf("turns = %d, want user and assistant", len(out.Turns))
	}
	if out.Turns[0].Role != "user" || out.Turns[1].Role != "assistant" {
		t.Fatalf("turn roles = %s,%s want user,assistant", out.Turns[0].Role, out.Turns[1].Role)
	}
}

func TestUploadFileThenSearch(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "itinerary.txt")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := fw.Write([]byte("Day one: arrive in Kyoto and visit the market.")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	res, err := http.Post(ts.URL+"/v1/files?user_id=u1", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var ingested ingest.Result
	if err := json.NewDecoder(res.Body).Decode(&ingested); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if ingested.Chunks != 1 {
		t.Fatalf("chunks = %d, want 1 for a short file", ingested.Chunks)
	}

	searchRes, err := http.Get(ts.URL + "/v1/memories/search?q=Kyoto&user_id=u1")
	if err != nil {
		t.Fatalf("search request error = %v", err)
	}
	defer searchRes.Body.Close()
	if searchRes.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d, want %d", searchRes.StatusCode, http.StatusOK)
	}
	var found struct {
		Matches []retrieval.Match `json:"matches"`
	}
	if err := json.NewDecoder(searchRes.Body).Decode(&found); err != nil {
		t.Fatalf("decode search response: %v", err)
	}
	if len(found.Matches) == 0 {
		t.Fatal("search returned no matches for an uploaded document")
	}
}

func TestRecentMessagesEndpoint(t *testing.T) {
	ts := newTestServer(t)
	postTurn(t, ts, map[string]string{
		"conversationId": "c3",
		"userId":         "u2",
		"message":        "good morning",
	})

	res, err := http.Get(ts.URL + "/v1/messages?user_id=u2")
	if err != nil {
		t.Fatalf("messages request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("messages status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var out struct {
		Messages []memory.Record `json:"messages"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("messages = %d, want both sides of the turn", len(out.Messages))
	}
}

func TestChatWS(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{
		"conversationId": "c-ws",
		"userId":         "u1",
		"message":        "hi over websocket",
	}); err != nil {
		t.Fatalf("ws write error = %v", err)
	}

	var sawChunk bool
	for {
		var ev streamEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("ws read error = %v", err)
		}
		switch ev.Type {
		case "chunk":
			sawChunk = true
		case "done":
			if !sawChunk {
				t.Fatal("done arrived before any chunk")
			}
			return
		case "error":
			t.Fatalf("unexpected error event: %+v", ev)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, res.StatusCode, http.StatusOK)
		}
	}
}
