package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"NewsSentinel/internal/model"

	"github.com/cespare/xxhash/v2"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// Records are stored with Unix-second timestamps so range queries compare integers.

type articleRecord struct {
	Key         string `badgerhold:"key"`
	ID          int64  `badgerhold:"index"`
	Symbol      string `badgerhold:"index"`
	Title       string
	Link        string
	PublishedAt int64
	AnalyzedAt  int64
	IsRelevant  bool
	Sentiment   string
	Summary     string
	Rationale   string
	KeyDrivers  []string
	Risks       []string
	Score       int
	Confidence  float64
}

type signalRecord struct {
	ID          string `badgerhold:"key"`
	Symbol      string `badgerhold:"index"`
	Type        string
	Priority    string
	Title       string
	Description string
	DetectedAt  int64
	ExpiresAt   int64
	Read        bool
	ArticleID   int64 `badgerhold:"index"`
}

type summaryRecord struct {
	Key           string `badgerhold:"key"`
	Symbol        string `badgerhold:"index"`
	WeekStart     int64
	WeekEnd       int64
	TotalArticles int
	BullishCount  int
	BearishCount  int
	NeutralCount  int
	AvgScore      float64
	Trend         string
	Themes        []string
	MomentumShift string
	Outlook       string
	GeneratedAt   int64
}

type watchRecord struct {
	Symbol string `badgerhold:"key"`
	Seq    int64
}

// BadgerStore is the embedded key-value backend.
type BadgerStore struct {
	store  *badgerhold.Store
	mu     sync.Mutex
	logger arbor.ILogger
}

// NewBadgerStore opens (or creates) a badgerhold store at dir.
func NewBadgerStore(dir string, logger arbor.ILogger) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create badger dir: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	st, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	logger.Info().Str("path", dir).Msg("Badger store opened")
	return &BadgerStore{store: st, logger: logger}, nil
}

func articleKey(symbol, title string, publishedAt int64) string {
	return symbol + "|" + strconv.FormatUint(xxhash.Sum64String(title+"|"+strconv.FormatInt(publishedAt, 10)), 16)
}

func summaryKey(symbol string, weekStart int64) string {
	return symbol + "|" + strconv.FormatInt(weekStart, 10)
}

func (s *BadgerStore) InsertArticle(_ context.Context, a *model.AnalyzedArticle) (bool, error) {
	normalizeArticle(a)

	s.mu.Lock()
	defer s.mu.Unlock()

	key := articleKey(a.Symbol, a.Title, toUnix(a.PublishedAt))
	var existing articleRecord
	err := s.store.Get(key, &existing)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, badgerhold.ErrNotFound) {
		return false, fmt.Errorf("get article: %w", err)
	}

	id, err := s.nextArticleID()
	if err != nil {
		return false, err
	}
	rec := articleRecord{
		Key:         key,
		ID:          id,
		Symbol:      a.Symbol,
		Title:       a.Title,
		Link:        a.Link,
		PublishedAt: toUnix(a.PublishedAt),
		AnalyzedAt:  toUnix(a.AnalyzedAt),
		IsRelevant:  a.IsRelevant,
		Sentiment:   string(a.Sentiment),
		Summary:     a.Summary,
		Rationale:   a.Rationale,
		KeyDrivers:  a.KeyDrivers,
		Risks:       a.Risks,
		Score:       a.Score,
		Confidence:  a.Confidence,
	}
	if err := s.store.Insert(key, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return false, nil
		}
		return false, fmt.Errorf("insert article: %w", err)
	}
	a.ID = id
	return true, nil
}

// nextArticleID returns max(ID)+1. Caller holds mu.
func (s *BadgerStore) nextArticleID() (int64, error) {
	var last []articleRecord
	err := s.store.Find(&last, badgerhold.Where("ID").Gt(int64(0)).SortBy("ID").Reverse().Limit(1))
	if err != nil {
		return 0, fmt.Errorf("find last article id: %w", err)
	}
	if len(last) == 0 {
		return 1, nil
	}
	return last[0].ID + 1, nil
}

func (s *BadgerStore) ArticleExists(_ context.Context, symbol, title string, publishedAt time.Time) (bool, error) {
	symbol = NormalizeSymbol(symbol)
	pub := toUnix(NormalizeTime(publishedAt))

	var rec articleRecord
	err := s.store.Get(articleKey(symbol, title, pub), &rec)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get article: %w", err)
	}
	return rec.Title == title && rec.PublishedAt == pub, nil
}

func (s *BadgerStore) ArticlesBetween(_ context.Context, symbol string, from, to time.Time) ([]model.AnalyzedArticle, error) {
	var recs []articleRecord
	q := badgerhold.Where("Symbol").Eq(NormalizeSymbol(symbol)).
		And("PublishedAt").Ge(toUnix(NormalizeTime(from))).
		And("PublishedAt").Lt(toUnix(NormalizeTime(to))).
		SortBy("PublishedAt", "ID")
	if err := s.store.Find(&recs, q); err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}
	return articlesFromRecords(recs), nil
}

func (s *BadgerStore) LatestArticles(_ context.Context, symbol string, limit int) ([]model.AnalyzedArticle, error) {
	var recs []articleRecord
	q := badgerhold.Where("Symbol").Eq(NormalizeSymbol(symbol)).SortBy("PublishedAt", "ID").Reverse()
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := s.store.Find(&recs, q); err != nil {
		return nil, fmt.Errorf("find latest articles: %w", err)
	}
	return articlesFromRecords(recs), nil
}

func articlesFromRecords(recs []articleRecord) []model.AnalyzedArticle {
	if len(recs) == 0 {
		return nil
	}
	out := make([]model.AnalyzedArticle, len(recs))
	for i, r := range recs {
		out[i] = model.AnalyzedArticle{
			ID:          r.ID,
			Symbol:      r.Symbol,
			Title:       r.Title,
			Link:        r.Link,
			PublishedAt: fromUnix(r.PublishedAt),
			AnalyzedAt:  fromUnix(r.AnalyzedAt),
			IsRelevant:  r.IsRelevant,
			Sentiment:   model.Sentiment(r.Sentiment),
			Summary:     r.Summary,
			Rationale:   r.Rationale,
			KeyDrivers:  emptyToNil(r.KeyDrivers),
			Risks:       emptyToNil(r.Risks),
			Score:       r.Score,
			Confidence:  r.Confidence,
		}
	}
	return out
}

func (s *BadgerStore) InsertSignal(_ context.Context, sig *model.Signal) (bool, error) {
	normalizeSignal(sig)

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.store.Count(&signalRecord{}, badgerhold.Where("ArticleID").Eq(sig.ArticleID))
	if err != nil {
		return false, fmt.Errorf("count signals: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	rec := signalRecord{
		ID:          sig.ID,
		Symbol:      sig.Symbol,
		Type:        string(sig.Type),
		Priority:    string(sig.Priority),
		Title:       sig.Title,
		Description: sig.Description,
		DetectedAt:  toUnix(sig.DetectedAt),
		Read:        sig.Read,
		ArticleID:   sig.ArticleID,
	}
	if sig.ExpiresAt != nil {
		rec.ExpiresAt = sig.ExpiresAt.Unix()
	}
	if err := s.store.Insert(rec.ID, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return false, nil
		}
		return false, fmt.Errorf("insert signal: %w", err)
	}
	return true, nil
}

func (s *BadgerStore) MarkSignalRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec signalRecord
	if err := s.store.Get(id, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("signal %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("get signal: %w", err)
	}
	if rec.Read {
		return nil
	}
	rec.Read = true
	if err := s.store.Update(id, &rec); err != nil {
		return fmt.Errorf("update signal: %w", err)
	}
	return nil
}

func (s *BadgerStore) UnreadSignals(_ context.Context, symbol string, now time.Time, limit int) ([]model.Signal, error) {
	q := badgerhold.Where("Read").Eq(false)
	if symbol != "" {
		q = q.And("Symbol").Eq(NormalizeSymbol(symbol))
	}
	var recs []signalRecord
	if err := s.store.Find(&recs, q.SortBy("DetectedAt", "ArticleID").Reverse()); err != nil {
		return nil, fmt.Errorf("find signals: %w", err)
	}

	nowUnix := now.Unix()
	var out []model.Signal
	for _, r := range recs {
		if r.ExpiresAt != 0 && r.ExpiresAt <= nowUnix {
			continue
		}
		sig := model.Signal{
			ID:          r.ID,
			Symbol:      r.Symbol,
			Type:        model.SignalType(r.Type),
			Priority:    model.Priority(r.Priority),
			Title:       r.Title,
			Description: r.Description,
			DetectedAt:  fromUnix(r.DetectedAt),
			Read:        r.Read,
			ArticleID:   r.ArticleID,
		}
		if r.ExpiresAt != 0 {
			t := fromUnix(r.ExpiresAt)
			sig.ExpiresAt = &t
		}
		out = append(out, sig)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *BadgerStore) UpsertWeeklySummary(_ context.Context, sum *model.WeeklySummary) error {
	normalizeSummary(sum)
	rec := summaryRecord{
		Key:           summaryKey(sum.Symbol, toUnix(sum.WeekStart)),
		Symbol:        sum.Symbol,
		WeekStart:     toUnix(sum.WeekStart),
		WeekEnd:       toUnix(sum.WeekEnd),
		TotalArticles: sum.TotalArticles,
		BullishCount:  sum.BullishCount,
		BearishCount:  sum.BearishCount,
		NeutralCount:  sum.NeutralCount,
		AvgScore:      sum.AvgScore,
		Trend:         string(sum.Trend),
		Themes:        sum.Themes,
		MomentumShift: sum.MomentumShift,
		Outlook:       sum.Outlook,
		GeneratedAt:   toUnix(sum.GeneratedAt),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Upsert(rec.Key, &rec); err != nil {
		return fmt.Errorf("upsert weekly summary: %w", err)
	}
	return nil
}

func (s *BadgerStore) WeeklySummary(_ context.Context, symbol string, weekStart time.Time) (*model.WeeklySummary, error) {
	var rec summaryRecord
	err := s.store.Get(summaryKey(NormalizeSymbol(symbol), toUnix(NormalizeTime(weekStart))), &rec)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get weekly summary: %w", err)
	}
	return summaryFromRecord(rec), nil
}

func (s *BadgerStore) LatestWeeklySummary(_ context.Context, symbol string) (*model.WeeklySummary, error) {
	var recs []summaryRecord
	q := badgerhold.Where("Symbol").Eq(NormalizeSymbol(symbol)).SortBy("WeekStart").Reverse().Limit(1)
	if err := s.store.Find(&recs, q); err != nil {
		return nil, fmt.Errorf("find weekly summary: %w", err)
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return summaryFromRecord(recs[0]), nil
}

func summaryFromRecord(r summaryRecord) *model.WeeklySummary {
	return &model.WeeklySummary{
		Symbol:        r.Symbol,
		WeekStart:     fromUnix(r.WeekStart),
		WeekEnd:       fromUnix(r.WeekEnd),
		TotalArticles: r.TotalArticles,
		BullishCount:  r.BullishCount,
		BearishCount:  r.BearishCount,
		NeutralCount:  r.NeutralCount,
		AvgScore:      r.AvgScore,
		Trend:         model.TrendDirection(r.Trend),
		Themes:        emptyToNil(r.Themes),
		MomentumShift: r.MomentumShift,
		Outlook:       r.Outlook,
		GeneratedAt:   fromUnix(r.GeneratedAt),
	}
}

func (s *BadgerStore) WatchlistSymbols(_ context.Context) ([]string, error) {
	var recs []watchRecord
	if err := s.store.Find(&recs, badgerhold.Where("Seq").Gt(int64(0)).SortBy("Seq")); err != nil {
		return nil, fmt.Errorf("find watchlist: %w", err)
	}
	var out []string
	for _, r := range recs {
		out = append(out, r.Symbol)
	}
	return out, nil
}

func (s *BadgerStore) AddWatch(_ context.Context, symbol string) (bool, error) {
	symbol = NormalizeSymbol(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	var last []watchRecord
	if err := s.store.Find(&last, badgerhold.Where("Seq").Gt(int64(0)).SortBy("Seq").Reverse().Limit(1)); err != nil {
		return false, fmt.Errorf("find watch seq: %w", err)
	}
	seq := int64(1)
	if len(last) > 0 {
		seq = last[0].Seq + 1
	}

	err := s.store.Insert(symbol, &watchRecord{Symbol: symbol, Seq: seq})
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("add watch: %w", err)
	}
	return true, nil
}

func (s *BadgerStore) RemoveWatch(_ context.Context, symbol string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Delete(NormalizeSymbol(symbol), &watchRecord{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove watch: %w", err)
	}
	return true, nil
}

func (s *BadgerStore) Close() error {
	s.logger.Info().Msg("Closing Badger store")
	return s.store.Close()
}

func emptyToNil(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	return list
}
