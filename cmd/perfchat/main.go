// perfchat drives turns against a running server over the websocket
// channel and reports first-chunk and full-turn latency per turn.
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type options struct {
	baseURL        string
	userID         string
	conversationID string
	turns          int
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	texts          []string
	verbose        bool
}

type turnMessage struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Message        string `json:"message"`
}

type streamEvent struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Message   string `json:"message,omitempty"`
	Blocked   bool   `json:"blocked,omitempty"`
	Intent    string `json:"intent,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

type turnSample struct {
	firstChunk time.Duration
	total      time.Duration
	chunks     int
	intent     string
}

var defaultTexts = []string{
	"tell me something interesting about octopuses",
	"what did we talk about earlier",
	"I am planning a trip to Lisbon in June",
	"remind me what my plans were",
}

func main() {
	opts := parseFlags()

	wsURL, err := toWSURL(opts.baseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad base url: %v\n", err)
		os.Exit(1)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", wsURL, err)
		os.Exit(1)
	}
	defer conn.Close()

	samples := make([]turnSample, 0, opts.turns)
	for i := 0; i < opts.turns; i++ {
		text := opts.texts[i%len(opts.texts)]
		sample, err := runTurn(conn, opts, text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "turn %d failed: %v\n", i+1, err)
			os.Exit(1)
		}
		samples = append(samples, sample)
		if opts.verbose {
			fmt.Printf("turn %d (%s): first chunk %s, total %s, %d chunks\n",
				i+1, sample.intent, sample.firstChunk, sample.total, sample.chunks)
		}
		time.Sleep(opts.interTurnDelay)
	}

	report(samples)
}

func parseFlags() options {
	var opts options
	var texts string
	flag.StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "server base URL")
	flag.StringVar(&opts.userID, "user", "perf", "user id for the run")
	flag.StringVar(&opts.conversationID, "conversation", "", "conversation id (random if empty)")
	flag.IntVar(&opts.turns, "turns", 8, "number of turns to run")
	flag.DurationVar(&opts.interTurnDelay, "inter-turn-delay", 250*time.Millisecond, "pause between turns")
	flag.DurationVar(&opts.turnTimeout, "turn-timeout", 30*time.Second, "per-turn deadline")
	flag.StringVar(&texts, "texts", "", "pipe-separated turn texts (defaults built in)")
	flag.BoolVar(&opts.verbose, "v", false, "log each turn")
	flag.Parse()

	if opts.conversationID == "" {
		opts.conversationID = "perf-" + uuid.NewString()
	}
	opts.texts = defaultTexts
	if strings.TrimSpace(texts) != "" {
		opts.texts = strings.Split(texts, "|")
	}
	return opts
}

func toWSURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/v1/chat/ws"
	return u.String(), nil
}

func runTurn(conn *websocket.Conn, opts options, text string) (turnSample, error) {
	start := time.Now()
	deadline := start.Add(opts.turnTimeout)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(turnMessage{
		ConversationID: opts.conversationID,
		UserID:         opts.userID,
		Message:        text,
	}); err != nil {
		return turnSample{}, fmt.Errorf("write: %w", err)
	}

	var sample turnSample
	for {
		_ = conn.SetReadDeadline(deadline)
		var ev streamEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return turnSample{}, fmt.Errorf("read: %w", err)
		}
		switch ev.Type {
		case "chunk":
			if sample.chunks == 0 {
				sample.firstChunk = time.Since(start)
			}
			sample.chunks++
		case "done":
			sample.total = time.Since(start)
			sample.intent = ev.Intent
			return sample, nil
		case "error":
			return turnSample{}, fmt.Errorf("server error (blocked=%v): %s", ev.Blocked, ev.Message)
		}
	}
}

func report(samples []turnSample) {
	if len(samples) == 0 {
		fmt.Println("no samples")
		return
	}
	firsts := make([]time.Duration, 0, len(samples))
	totals := make([]time.Duration, 0, len(samples))
	for _, s := range samples {
		firsts = append(firsts, s.firstChunk)
		totals = append(totals, s.total)
	}
	fmt.Printf("turns: %d\n", len(samples))
	fmt.Printf("first chunk  p50=%s p95=%s max=%s\n",
		quantile(firsts, 0.50), quantile(firsts, 0.95), quantile(firsts, 1))
	fmt.Printf("turn total   p50=%s p95=%s max=%s\n",
		quantile(totals, 0.50), quantile(totals, 0.95), quantile(totals, 1))
}

func quantile(ds []time.Duration, q float64) time.Duration {
	sorted := make([]time.Duration, len(ds))
	copy(sorted, ds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}
