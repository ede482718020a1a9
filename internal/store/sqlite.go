package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"NewsSentinel/internal/model"

	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists articles, signals, weekly summaries and the watchlist to SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	logger arbor.ILogger
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(dbPath string, logger arbor.ILogger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so the read API does not block the pipeline's writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("SQLite store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol       TEXT NOT NULL,
			title        TEXT NOT NULL,
			link         TEXT,
			published_at INTEGER NOT NULL,
			analyzed_at  INTEGER NOT NULL,
			is_relevant  INTEGER NOT NULL DEFAULT 0,
			sentiment    TEXT,
			summary      TEXT,
			rationale    TEXT,
			key_drivers  TEXT,
			risks        TEXT,
			score        INTEGER,
			confidence   REAL,
			UNIQUE(symbol, title, published_at)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_symbol_pub ON articles(symbol, published_at)`,

		`CREATE TABLE IF NOT EXISTS signals (
			id          TEXT PRIMARY KEY,
			symbol      TEXT NOT NULL,
			signal_type TEXT NOT NULL,
			priority    TEXT NOT NULL,
			title       TEXT,
			description TEXT,
			detected_at INTEGER NOT NULL,
			expires_at  INTEGER,
			is_read     INTEGER NOT NULL DEFAULT 0,
			article_id  INTEGER NOT NULL UNIQUE REFERENCES articles(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_unread ON signals(is_read, detected_at)`,

		`CREATE TABLE IF NOT EXISTS weekly_summaries (
			symbol         TEXT NOT NULL,
			week_start     INTEGER NOT NULL,
			week_end       INTEGER NOT NULL,
			total_articles INTEGER,
			bullish_count  INTEGER,
			bearish_count  INTEGER,
			neutral_count  INTEGER,
			avg_score      REAL,
			trend          TEXT,
			key_themes     TEXT,
			momentum_shift TEXT,
			outlook        TEXT,
			generated_at   INTEGER,
			PRIMARY KEY (symbol, week_start)
		)`,

		`CREATE TABLE IF NOT EXISTS watchlist (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol   TEXT NOT NULL UNIQUE,
			added_at INTEGER NOT NULL
		)`,
	}

	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return fmt.Errorf("exec %q: %w", st[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) InsertArticle(ctx context.Context, a *model.AnalyzedArticle) (bool, error) {
	normalizeArticle(a)
	drivers, err := json.Marshal(nonNil(a.KeyDrivers))
	if err != nil {
		return false, err
	}
	risks, err := json.Marshal(nonNil(a.Risks))
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO articles
		(symbol, title, link, published_at, analyzed_at, is_relevant, sentiment,
		 summary, rationale, key_drivers, risks, score, confidence)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.Symbol, a.Title, a.Link, toUnix(a.PublishedAt), toUnix(a.AnalyzedAt), a.IsRelevant, string(a.Sentiment),
		a.Summary, a.Rationale, string(drivers), string(risks), a.Score, a.Confidence,
	)
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	a.ID = id
	return true, nil
}

func (s *SQLiteStore) ArticleExists(ctx context.Context, symbol, title string, publishedAt time.Time) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM articles WHERE symbol = ? AND title = ? AND published_at = ?`,
		NormalizeSymbol(symbol), title, toUnix(NormalizeTime(publishedAt)),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("article exists: %w", err)
	}
	return true, nil
}

const articleColumns = `id, symbol, title, link, published_at, analyzed_at, is_relevant, sentiment,
	summary, rationale, key_drivers, risks, score, confidence`

func (s *SQLiteStore) ArticlesBetween(ctx context.Context, symbol string, from, to time.Time) ([]model.AnalyzedArticle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles
		WHERE symbol = ? AND published_at >= ? AND published_at < ?
		ORDER BY published_at ASC, id ASC`,
		NormalizeSymbol(symbol), toUnix(NormalizeTime(from)), toUnix(NormalizeTime(to)),
	)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	return scanArticles(rows)
}

func (s *SQLiteStore) LatestArticles(ctx context.Context, symbol string, limit int) ([]model.AnalyzedArticle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles
		WHERE symbol = ?
		ORDER BY published_at DESC, id DESC
		LIMIT ?`,
		NormalizeSymbol(symbol), sqlLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query latest articles: %w", err)
	}
	return scanArticles(rows)
}

func scanArticles(rows *sql.Rows) ([]model.AnalyzedArticle, error) {
	defer rows.Close()

	var out []model.AnalyzedArticle
	for rows.Next() {
		var (
			a                  model.AnalyzedArticle
			pub, analyzed      int64
			sentiment          string
			drivers, risksJSON sql.NullString
			link, summary, rat sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Title, &link, &pub, &analyzed, &a.IsRelevant, &sentiment,
			&summary, &rat, &drivers, &risksJSON, &a.Score, &a.Confidence); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.Link = link.String
		a.Summary = summary.String
		a.Rationale = rat.String
		a.Sentiment = model.Sentiment(sentiment)
		a.PublishedAt = fromUnix(pub)
		a.AnalyzedAt = fromUnix(analyzed)
		a.KeyDrivers = decodeList(drivers)
		a.Risks = decodeList(risksJSON)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertSignal(ctx context.Context, sig *model.Signal) (bool, error) {
	normalizeSignal(sig)
	var expires sql.NullInt64
	if sig.ExpiresAt != nil {
		expires = sql.NullInt64{Int64: sig.ExpiresAt.Unix(), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO signals
		(id, symbol, signal_type, priority, title, description, detected_at, expires_at, is_read, article_id)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		sig.ID, sig.Symbol, string(sig.Type), string(sig.Priority), sig.Title, sig.Description,
		toUnix(sig.DetectedAt), expires, sig.Read, sig.ArticleID,
	)
	if err != nil {
		return false, fmt.Errorf("insert signal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) MarkSignalRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE signals SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark signal read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("signal %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) UnreadSignals(ctx context.Context, symbol string, now time.Time, limit int) ([]model.Signal, error) {
	query := `SELECT id, symbol, signal_type, priority, title, description, detected_at, expires_at, is_read, article_id
		FROM signals
		WHERE is_read = 0 AND (expires_at IS NULL OR expires_at > ?)`
	args := []any{now.Unix()}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, NormalizeSymbol(symbol))
	}
	query += ` ORDER BY detected_at DESC, rowid DESC LIMIT ?`
	args = append(args, sqlLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var (
			sig         model.Signal
			typ, prio   string
			title, desc sql.NullString
			detected    int64
			expires     sql.NullInt64
		)
		if err := rows.Scan(&sig.ID, &sig.Symbol, &typ, &prio, &title, &desc, &detected, &expires, &sig.Read, &sig.ArticleID); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Type = model.SignalType(typ)
		sig.Priority = model.Priority(prio)
		sig.Title = title.String
		sig.Description = desc.String
		sig.DetectedAt = fromUnix(detected)
		if expires.Valid {
			t := fromUnix(expires.Int64)
			sig.ExpiresAt = &t
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertWeeklySummary(ctx context.Context, sum *model.WeeklySummary) error {
	normalizeSummary(sum)
	themes, err := json.Marshal(nonNil(sum.Themes))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `INSERT INTO weekly_summaries
		(symbol, week_start, week_end, total_articles, bullish_count, bearish_count, neutral_count,
		 avg_score, trend, key_themes, momentum_shift, outlook, generated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(symbol, week_start) DO UPDATE SET
			week_end = excluded.week_end,
			total_articles = excluded.total_articles,
			bullish_count = excluded.bullish_count,
			bearish_count = excluded.bearish_count,
			neutral_count = excluded.neutral_count,
			avg_score = excluded.avg_score,
			trend = excluded.trend,
			key_themes = excluded.key_themes,
			momentum_shift = excluded.momentum_shift,
			outlook = excluded.outlook,
			generated_at = excluded.generated_at`,
		sum.Symbol, toUnix(sum.WeekStart), toUnix(sum.WeekEnd), sum.TotalArticles,
		sum.BullishCount, sum.BearishCount, sum.NeutralCount, sum.AvgScore, string(sum.Trend),
		string(themes), sum.MomentumShift, sum.Outlook, toUnix(sum.GeneratedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert weekly summary: %w", err)
	}
	return nil
}

const summaryColumns = `symbol, week_start, week_end, total_articles, bullish_count, bearish_count,
	neutral_count, avg_score, trend, key_themes, momentum_shift, outlook, generated_at`

func (s *SQLiteStore) WeeklySummary(ctx context.Context, symbol string, weekStart time.Time) (*model.WeeklySummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM weekly_summaries
		WHERE symbol = ? AND week_start = ?`,
		NormalizeSymbol(symbol), toUnix(NormalizeTime(weekStart)))
	return scanSummary(row)
}

func (s *SQLiteStore) LatestWeeklySummary(ctx context.Context, symbol string) (*model.WeeklySummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM weekly_summaries
		WHERE symbol = ? ORDER BY week_start DESC LIMIT 1`,
		NormalizeSymbol(symbol))
	return scanSummary(row)
}

func scanSummary(row *sql.Row) (*model.WeeklySummary, error) {
	var (
		sum                       model.WeeklySummary
		start, end, generated     int64
		trend                     string
		themes, momentum, outlook sql.NullString
	)
	err := row.Scan(&sum.Symbol, &start, &end, &sum.TotalArticles, &sum.BullishCount, &sum.BearishCount,
		&sum.NeutralCount, &sum.AvgScore, &trend, &themes, &momentum, &outlook, &generated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan weekly summary: %w", err)
	}
	sum.WeekStart = fromUnix(start)
	sum.WeekEnd = fromUnix(end)
	sum.GeneratedAt = fromUnix(generated)
	sum.Trend = model.TrendDirection(trend)
	sum.Themes = decodeList(themes)
	sum.MomentumShift = momentum.String
	sum.Outlook = outlook.String
	return &sum, nil
}

func (s *SQLiteStore) WatchlistSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol FROM watchlist ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddWatch(ctx context.Context, symbol string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO watchlist (symbol, added_at) VALUES (?, ?)`,
		NormalizeSymbol(symbol), time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("add watch: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *SQLiteStore) RemoveWatch(ctx context.Context, symbol string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM watchlist WHERE symbol = ?`, NormalizeSymbol(symbol))
	if err != nil {
		return false, fmt.Errorf("remove watch: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *SQLiteStore) Close() error {
	s.logger.Info().Msg("Closing SQLite store")
	return s.db.Close()
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func decodeList(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
