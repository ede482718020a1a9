package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"NewsSentinel/internal/logging"
	"NewsSentinel/internal/model"
	"NewsSentinel/internal/pipeline"
	"NewsSentinel/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

type fakePipeline struct {
	invalidated []string
	cached      int
	resets      int
	calls       int
}

func (f *fakePipeline) Status() model.Status {
	return model.Status{
		RateLimit: model.GateSnapshot{CallsInWindow: f.calls, Quota: 20, Window: time.Minute, Remaining: 20 - f.calls, Health: model.GateHealthy},
		Cache:     model.CacheStats{Items: 2, TTL: time.Hour},
	}
}

func (f *fakePipeline) Invalidate(symbol, title string) bool {
	f.invalidated = append(f.invalidated, symbol+"|"+title)
	return title == "cached"
}

func (f *fakePipeline) PurgeCache() int {
	n := f.cached
	f.cached = 0
	return n
}

func (f *fakePipeline) ResetRateLimit() {
	f.resets++
	f.calls = 0
}

type fakeTrigger struct{ err error }

func (f fakeTrigger) RunNow() error { return f.err }

func setup(t *testing.T, trigger Trigger) (*Server, *store.MemoryStore, *fakePipeline) {
	t.Helper()
	st := store.NewMemoryStore()
	p := &fakePipeline{calls: 7}
	s := New(":0", st, p, trigger, time.UTC, logging.Discard())
	s.now = func() time.Time { return now }
	return s, st, p
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestStatusAndRateLimitReset(t *testing.T) {
	s, _, p := setup(t, fakeTrigger{})

	w := do(t, s, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st model.Status
	decode(t, w, &st)
	assert.Equal(t, 7, st.RateLimit.CallsInWindow)
	assert.Equal(t, 2, st.Cache.Items)

	w = do(t, s, http.MethodPost, "/api/v1/ratelimit/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap model.GateSnapshot
	decode(t, w, &snap)
	assert.Zero(t, snap.CallsInWindow)
	assert.Equal(t, 1, p.resets)
}

func TestArticles(t *testing.T) {
	s, st, _ := setup(t, fakeTrigger{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := st.InsertArticle(ctx, &model.AnalyzedArticle{
			Symbol: "HPG", Title: "t" + string(rune('a'+i)), PublishedAt: now.Add(time.Duration(i) * time.Hour), Score: 5,
		})
		require.NoError(t, err)
	}

	w := do(t, s, http.MethodGet, "/api/v1/articles/hpg?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Symbol   string                  `json:"symbol"`
		Articles []model.AnalyzedArticle `json:"articles"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "HPG", resp.Symbol)
	require.Len(t, resp.Articles, 2)
	assert.Equal(t, "tc", resp.Articles[0].Title)

	w = do(t, s, http.MethodGet, "/api/v1/articles/VNM", "")
	assert.JSONEq(t, `{"symbol":"VNM","articles":[]}`, w.Body.String())
}

func TestSignals(t *testing.T) {
	s, st, _ := setup(t, fakeTrigger{})
	ctx := context.Background()
	expired := now.Add(-time.Minute)
	for _, sig := range []*model.Signal{
		{ID: "a", Symbol: "HPG", Type: model.SignalDividend, Priority: model.PriorityHigh, DetectedAt: now.Add(-time.Hour), ArticleID: 1},
		{ID: "b", Symbol: "VNM", Type: model.SignalContract, Priority: model.PriorityMedium, DetectedAt: now.Add(-2 * time.Hour), ArticleID: 2},
		{ID: "c", Symbol: "HPG", Type: model.SignalEarnings, Priority: model.PriorityHigh, DetectedAt: now.Add(-3 * time.Hour), ExpiresAt: &expired, ArticleID: 3},
	} {
		_, err := st.InsertSignal(ctx, sig)
		require.NoError(t, err)
	}

	var resp struct {
		Signals []model.Signal `json:"signals"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/v1/signals", ""), &resp)
	require.Len(t, resp.Signals, 2)
	assert.Equal(t, "a", resp.Signals[0].ID)

	decode(t, do(t, s, http.MethodGet, "/api/v1/signals?symbol=vnm", ""), &resp)
	require.Len(t, resp.Signals, 1)
	assert.Equal(t, "b", resp.Signals[0].ID)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/v1/signals/a/read", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/v1/signals/a/read", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/api/v1/signals/zzz/read", "").Code)

	decode(t, do(t, s, http.MethodGet, "/api/v1/signals", ""), &resp)
	require.Len(t, resp.Signals, 1)
	assert.Equal(t, "b", resp.Signals[0].ID)
}

func TestSummaries(t *testing.T) {
	s, st, _ := setup(t, fakeTrigger{})
	ctx := context.Background()
	for _, start := range []time.Time{
		time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	} {
		require.NoError(t, st.UpsertWeeklySummary(ctx, &model.WeeklySummary{
			Symbol: "HPG", WeekStart: start, WeekEnd: start.AddDate(0, 0, 6), TotalArticles: start.Day(), Trend: model.TrendStable,
		}))
	}

	var sum model.WeeklySummary
	w := do(t, s, http.MethodGet, "/api/v1/summaries/HPG", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &sum)
	assert.Equal(t, 2, sum.TotalArticles)

	w = do(t, s, http.MethodGet, "/api/v1/summaries/HPG?week=2026-02-26", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &sum)
	assert.Equal(t, 23, sum.TotalArticles)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/v1/summaries/HPG?week=last", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/summaries/FPT", "").Code)
}

func TestRun(t *testing.T) {
	s, _, _ := setup(t, fakeTrigger{})
	assert.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/api/v1/run", "").Code)

	busy, _, _ := setup(t, fakeTrigger{err: pipeline.ErrRunInProgress})
	w := do(t, busy, http.MethodPost, "/api/v1/run", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already in progress")
}

func TestInvalidateCache(t *testing.T) {
	s, _, p := setup(t, fakeTrigger{})

	w := do(t, s, http.MethodPost, "/api/v1/cache/invalidate", `{"symbol":"hpg","title":"cached"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":true}`, w.Body.String())
	assert.Equal(t, []string{"hpg|cached"}, p.invalidated)

	w = do(t, s, http.MethodPost, "/api/v1/cache/invalidate", `{"symbol":"hpg"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	p.cached = 3
	w = do(t, s, http.MethodPost, "/api/v1/cache/purge", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":3}`, w.Body.String())
	assert.JSONEq(t, `{"removed":0}`, do(t, s, http.MethodPost, "/api/v1/cache/purge", "").Body.String())
}

func TestWatchlist(t *testing.T) {
	s, _, _ := setup(t, fakeTrigger{})

	assert.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/v1/watchlist", `{"symbol":"hpg"}`).Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/v1/watchlist", `{"symbol":"HPG"}`).Code)
	assert.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/v1/watchlist", `{"symbol":"VNM"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/v1/watchlist", `{"symbol":"HP G!"}`).Code)

	w := do(t, s, http.MethodGet, "/api/v1/watchlist", "")
	assert.JSONEq(t, `{"symbols":["HPG","VNM"]}`, w.Body.String())

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodDelete, "/api/v1/watchlist/hpg", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodDelete, "/api/v1/watchlist/hpg", "").Code)

	w = do(t, s, http.MethodGet, "/api/v1/watchlist", "")
	assert.JSONEq(t, `{"symbols":["VNM"]}`, w.Body.String())
}
