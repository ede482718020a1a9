package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"NewsSentinel/internal/model"
	"NewsSentinel/internal/notifier"
	"NewsSentinel/internal/pipeline"
	"NewsSentinel/internal/store"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// ErrRunInProgress is returned by RunNow while a pass is still running.
var ErrRunInProgress = pipeline.ErrRunInProgress

// Runner is the pipeline as seen by the scheduler.
type Runner interface {
	Run(ctx context.Context) (*model.RunReport, error)
	Running() bool
	Status() model.Status
}

// Notifier delivers messages to the operator. Telegram in production.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Config controls when passes run.
type Config struct {
	Interval     time.Duration
	Cron         string // standard 5-field expression or descriptor; overrides Interval
	StartupDelay time.Duration
	Location     *time.Location
}

// Scheduler triggers pipeline passes: once shortly after start, then on a fixed schedule.
type Scheduler struct {
	Cron     *cron.Cron
	Pipeline Runner
	Store    store.Store
	Notifier Notifier
	Ctx      context.Context

	cfg    Config
	pass   cron.Job // analysisTask behind the recover wrapper, for passes started outside cron
	logger arbor.ILogger
	now    func() time.Time
	wg     sync.WaitGroup
	stop   chan struct{}
	once   sync.Once
}

// New creates a Scheduler. notifier may be nil.
func New(ctx context.Context, p Runner, st store.Store, n Notifier, cfg Config, logger arbor.ILogger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	cl := cronLogger{logger}
	s := &Scheduler{
		Cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Pipeline: p,
		Store:    st,
		Notifier: n,
		Ctx:      ctx,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	s.pass = cron.NewChain(cron.Recover(cl)).Then(cron.FuncJob(s.analysisTask))
	return s
}

// Register adds the analysis job. The cron expression wins over the interval when both are set.
func (s *Scheduler) Register() error {
	spec := s.cfg.Cron
	if spec == "" {
		if s.cfg.Interval <= 0 {
			return fmt.Errorf("register analysis task: interval must be positive")
		}
		spec = "@every " + s.cfg.Interval.String()
	}
	if _, err := s.Cron.AddFunc(spec, s.analysisTask); err != nil {
		return fmt.Errorf("register analysis task: %w", err)
	}
	s.logger.Info().Str("schedule", spec).Dur("startup_delay", s.cfg.StartupDelay).Msg("Analysis task registered")
	return nil
}

// Start starts the cron scheduler and the delayed first pass.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(s.cfg.StartupDelay)
		defer timer.Stop()
		select {
		case <-s.Ctx.Done():
		case <-s.stop:
		case <-timer.C:
			s.pass.Run()
		}
	}()
	s.logger.Info().Msg("Scheduler started")
}

// Stop stops the cron scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.Cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// RunNow starts a pass in the background.
func (s *Scheduler) RunNow() error {
	if s.Pipeline.Running() {
		return ErrRunInProgress
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pass.Run()
	}()
	return nil
}

// analysisTask runs one pass. A failed pass is reported but never stops the schedule.
func (s *Scheduler) analysisTask() {
	report, err := s.Pipeline.Run(s.Ctx)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		s.logger.Info().Msg("Previous pass still running, skipping")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Analysis pass failed")
		if report != nil {
			s.trySend(notifier.FormatRunReport(report))
		}
		return
	}
	if alerts := alertable(report.Signals); len(alerts) > 0 {
		s.trySend(notifier.FormatSignals(alerts, s.now()))
	}
}

// alertable keeps the signals worth a push notification.
func alertable(signals []model.Signal) []model.Signal {
	var out []model.Signal
	for _, sig := range signals {
		if sig.Priority == model.PriorityHigh || sig.Priority == model.PriorityMedium {
			out = append(out, sig)
		}
	}
	return out
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.Help()
	}
	// "/cmd@BotName" in group chats
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	switch name {
	case "/run":
		if err := s.RunNow(); err != nil {
			return "⏳ Đang có phiên phân tích chạy, vui lòng đợi"
		}
		return "🚀 Đã bắt đầu phân tích"
	case "/status":
		return notifier.FormatStatus(s.Pipeline.Status(), s.now())
	case "/signals":
		symbol := ""
		if len(args) > 0 {
			symbol = store.NormalizeSymbol(args[0])
		}
		sigs, err := s.Store.UnreadSignals(s.Ctx, symbol, s.now(), 10)
		if err != nil {
			s.logger.Error().Err(err).Msg("Load unread signals failed")
			return "❌ Không đọc được tín hiệu"
		}
		return notifier.FormatSignals(sigs, s.now())
	case "/read":
		if len(args) == 0 {
			return "Cú pháp: /read &lt;id&gt;"
		}
		err := s.Store.MarkSignalRead(s.Ctx, args[0])
		switch {
		case errors.Is(err, store.ErrNotFound):
			return "❓ Không tìm thấy tín hiệu " + args[0]
		case err != nil:
			s.logger.Error().Err(err).Str("id", args[0]).Msg("Mark signal read failed")
			return "❌ Lỗi khi cập nhật tín hiệu"
		}
		return "✅ Đã đánh dấu đã đọc"
	case "/summary":
		if len(args) == 0 {
			return "Cú pháp: /summary &lt;MÃ&gt;"
		}
		symbol := store.NormalizeSymbol(args[0])
		sum, err := s.Store.LatestWeeklySummary(s.Ctx, symbol)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return "Chưa có tổng kết tuần cho " + symbol
		case err != nil:
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("Load weekly summary failed")
			return "❌ Không đọc được tổng kết tuần"
		}
		return notifier.FormatWeeklySummary(sum)
	default:
		return notifier.Help()
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.logger.Error().Err(err).Msg("Send notification failed")
	}
}

// cronLogger adapts arbor to cron.Logger.
type cronLogger struct{ l arbor.ILogger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Msgf("cron: %s %v", msg, keysAndValues)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Msgf("cron: %s %v", msg, keysAndValues)
}
