package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"NewsSentinel/internal/logging"
	"NewsSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTelegram struct {
	mu       sync.Mutex
	sent     []string
	failures int
	updates  []string
	polls    int
	onSend   func()
}

func (f *fakeTelegram) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
			if f.failures > 0 {
				f.failures--
				http.Error(w, `{"ok":false}`, http.StatusBadGateway)
				return
			}
			var p struct {
				ChatID string `json:"chat_id"`
				Text   string `json:"text"`
				Mode   string `json:"parse_mode"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			assert.Equal(t, "42", p.ChatID)
			assert.Equal(t, "HTML", p.Mode)
			f.sent = append(f.sent, p.Text)
			fmt.Fprint(w, `{"ok":true}`)
			if f.onSend != nil {
				f.onSend()
			}
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			f.polls++
			var results []string
			for i, text := range f.updates {
				results = append(results, fmt.Sprintf(`{"update_id":%d,"message":{"text":%q,"chat":{"id":%d}}}`, i+1, text, chatFor(text)))
			}
			f.updates = nil
			fmt.Fprintf(w, `{"ok":true,"result":[%s]}`, strings.Join(results, ","))
		default:
			http.NotFound(w, r)
		}
	})
}

// chatFor routes "intruder" messages from a foreign chat.
func chatFor(text string) int {
	if strings.Contains(text, "intruder") {
		return 7
	}
	return 42
}

func newTestNotifier(srv *httptest.Server) *TelegramNotifier {
	n := NewTelegramNotifier("TOKEN", "42", "", logging.Discard())
	n.APIURL = srv.URL
	n.retryBase = time.Millisecond
	return n
}

func TestSend(t *testing.T) {
	fake := &fakeTelegram{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	n := newTestNotifier(srv)
	require.NoError(t, n.Send(context.Background(), "hello"))
	assert.Equal(t, []string{"hello"}, fake.sent)

	long := strings.Repeat("x", maxMessageRunes+10)
	require.NoError(t, n.Send(context.Background(), long))
	assert.Len(t, []rune(fake.sent[1]), maxMessageRunes)
}

func TestSendWithRetry(t *testing.T) {
	fake := &fakeTelegram{failures: 2}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	n := newTestNotifier(srv)
	require.NoError(t, n.SendWithRetry(context.Background(), "retry me", 3))
	assert.Equal(t, []string{"retry me"}, fake.sent)

	fake.failures = 5
	err := n.SendWithRetry(context.Background(), "give up", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 retries exhausted")
}

func TestStartPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &fakeTelegram{updates: []string{"intruder /run", "/status", "/quiet"}}
	fake.onSend = cancel
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	var handled []string
	done := make(chan struct{})
	go func() {
		newTestNotifier(srv).StartPolling(ctx, func(cmd string) string {
			handled = append(handled, cmd)
			if cmd == "/quiet" {
				return ""
			}
			return "reply to " + cmd
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
	assert.Equal(t, []string{"/status"}, handled[:1])
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{"reply to /status"}, fake.sent)
}

func TestFormatSignals(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	msg := FormatSignals([]model.Signal{{
		ID: "abc", Symbol: "HPG", Type: model.SignalDividend, Priority: model.PriorityHigh,
		Title: "HPG: Dividend Announcement", Description: "Cổ tức 20% <tiền mặt>", DetectedAt: now.Add(-2 * time.Hour),
	}}, now)
	assert.Contains(t, msg, "🔴 💰 <b>HPG: Dividend Announcement</b>")
	assert.Contains(t, msg, "&lt;tiền mặt&gt;")
	assert.Contains(t, msg, "2 hours trước")
	assert.Contains(t, msg, "<code>abc</code>")

	assert.Contains(t, FormatSignals(nil, now), "Không có tín hiệu")
}

func TestFormatRunReport(t *testing.T) {
	start := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	r := &model.RunReport{StartedAt: start, FinishedAt: start.Add(95 * time.Second), Symbols: 3, Inserted: 4,
		FetchFails: []string{"AAA"}, Signals: make([]model.Signal, 2)}
	msg := FormatRunReport(r)
	assert.Contains(t, msg, "✅")
	assert.Contains(t, msg, "Bài mới: 4")
	assert.Contains(t, msg, "Tín hiệu: 2")
	assert.Contains(t, msg, "AAA")
	assert.Contains(t, msg, "1m35s")

	r.Err = "load watchlist: disk I/O"
	assert.Contains(t, FormatRunReport(r), "❌")
}

func TestFormatStatusAndSummary(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	st := model.Status{
		RateLimit: model.GateSnapshot{CallsInWindow: 18, Quota: 20, Window: time.Minute, Remaining: 2, Health: model.GateNearLimit},
		Cache:     model.CacheStats{Items: 3, TTL: time.Hour},
	}
	msg := FormatStatus(st, now)
	assert.Contains(t, msg, "18/20")
	assert.Contains(t, msg, "near_limit")
	assert.Contains(t, msg, "chưa có")

	st.LastRun = &model.RunReport{FinishedAt: now.Add(-time.Hour), Inserted: 1200}
	assert.Contains(t, FormatStatus(st, now), "1,200 bài mới")

	sum := &model.WeeklySummary{
		Symbol: "HPG", WeekStart: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), WeekEnd: time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		TotalArticles: 3, BullishCount: 3, AvgScore: 8, Trend: model.TrendImproving,
		Themes: []string{"thép"}, Outlook: "tích cực",
	}
	out := FormatWeeklySummary(sum)
	assert.Contains(t, out, "02/03 → 08/03/2026")
	assert.Contains(t, out, "📈 Improving")
	assert.Contains(t, out, "• thép")
	assert.NotContains(t, out, "Động lượng")
}
