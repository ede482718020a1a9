package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"NewsSentinel/internal/aggregate"
	"NewsSentinel/internal/model"
	"NewsSentinel/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/ternarybob/arbor"
)

// Pipeline is the read-only view of the orchestrator plus its operator actions.
type Pipeline interface {
	Status() model.Status
	Invalidate(symbol, title string) bool
	PurgeCache() int
	ResetRateLimit()
}

// Trigger starts a pass without waiting for it.
type Trigger interface {
	RunNow() error
}

const (
	defaultLimit = 20
	maxLimit     = 200
)

// Server exposes pre-computed pipeline state over HTTP. Apart from the watchlist, the
// signal read flag and the operator actions it never writes.
type Server struct {
	store    store.Store
	pipeline Pipeline
	trigger  Trigger
	loc      *time.Location
	logger   arbor.ILogger
	now      func() time.Time

	engine *gin.Engine
	srv    *http.Server
}

// New builds the router. loc sets week boundaries for summary lookups.
func New(addr string, st store.Store, p Pipeline, trigger Trigger, loc *time.Location, logger arbor.ILogger) *Server {
	if loc == nil {
		loc = time.Local
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		store:    st,
		pipeline: p,
		trigger:  trigger,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/status", s.getStatus)
		v1.GET("/articles/:symbol", s.getArticles)
		v1.GET("/signals", s.getSignals)
		v1.POST("/signals/:id/read", s.markSignalRead)
		v1.GET("/summaries/:symbol", s.getSummary)
		v1.POST("/run", s.postRun)
		v1.POST("/cache/invalidate", s.invalidateCache)
		v1.POST("/cache/purge", s.purgeCache)
		v1.POST("/ratelimit/reset", s.resetRateLimit)
		v1.GET("/watchlist", s.getWatchlist)
		v1.POST("/watchlist", s.addWatch)
		v1.DELETE("/watchlist/:symbol", s.removeWatch)
	}
}

// Handler is the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe blocks until the server stops. http.ErrServerClosed is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("API server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	}
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.pipeline.Status())
}

func (s *Server) getArticles(c *gin.Context) {
	symbol := store.NormalizeSymbol(c.Param("symbol"))
	articles, err := s.store.LatestArticles(c.Request.Context(), symbol, queryLimit(c))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	if articles == nil {
		articles = []model.AnalyzedArticle{}
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "articles": articles})
}

func (s *Server) getSignals(c *gin.Context) {
	sigs, err := s.store.UnreadSignals(c.Request.Context(), c.Query("symbol"), s.now(), queryLimit(c))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	if sigs == nil {
		sigs = []model.Signal{}
	}
	c.JSON(http.StatusOK, gin.H{"signals": sigs})
}

func (s *Server) markSignalRead(c *gin.Context) {
	err := s.store.MarkSignalRead(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.fail(c, http.StatusNotFound, err)
	case err != nil:
		s.fail(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "is_read": true})
	}
}

// getSummary returns the latest summary, or the one for ?week=YYYY-MM-DD (any day of that week).
func (s *Server) getSummary(c *gin.Context) {
	symbol := store.NormalizeSymbol(c.Param("symbol"))
	var (
		sum *model.WeeklySummary
		err error
	)
	if day := c.Query("week"); day != "" {
		t, perr := time.ParseInLocation("2006-01-02", day, s.loc)
		if perr != nil {
			s.fail(c, http.StatusBadRequest, errors.New("week must be YYYY-MM-DD"))
			return
		}
		sum, err = s.store.WeeklySummary(c.Request.Context(), symbol, aggregate.WeekOf(t, s.loc).Start)
	} else {
		sum, err = s.store.LatestWeeklySummary(c.Request.Context(), symbol)
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.fail(c, http.StatusNotFound, err)
	case err != nil:
		s.fail(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, sum)
	}
}

func (s *Server) postRun(c *gin.Context) {
	if err := s.trigger.RunNow(); err != nil {
		s.fail(c, http.StatusConflict, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

type invalidateRequest struct {
	Symbol string `json:"symbol" binding:"required,max=16"`
	Title  string `json:"title" binding:"required"`
}

func (s *Server) invalidateCache(c *gin.Context) {
	var req invalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	removed := s.pipeline.Invalidate(req.Symbol, req.Title)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) purgeCache(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"removed": s.pipeline.PurgeCache()})
}

func (s *Server) resetRateLimit(c *gin.Context) {
	s.pipeline.ResetRateLimit()
	c.JSON(http.StatusOK, s.pipeline.Status().RateLimit)
}

func (s *Server) getWatchlist(c *gin.Context) {
	symbols, err := s.store.WatchlistSymbols(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols})
}

type watchRequest struct {
	Symbol string `json:"symbol" binding:"required,alphanum,max=16"`
}

func (s *Server) addWatch(c *gin.Context) {
	var req watchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	symbol := store.NormalizeSymbol(req.Symbol)
	added, err := s.store.AddWatch(c.Request.Context(), symbol)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
		s.logger.Info().Str("symbol", symbol).Msg("Symbol added to watchlist")
	}
	c.JSON(status, gin.H{"symbol": symbol, "added": added})
}

func (s *Server) removeWatch(c *gin.Context) {
	symbol := store.NormalizeSymbol(c.Param("symbol"))
	removed, err := s.store.RemoveWatch(c.Request.Context(), symbol)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	if !removed {
		s.fail(c, http.StatusNotFound, errors.New("symbol not in watchlist"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "removed": true})
}
