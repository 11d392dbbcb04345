package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/chaos-io/logoprep/batch"
	"github.com/chaos-io/logoprep/rembg"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

const (
	DefaultAddr     = ":8080"
	maxUploadMemory = 32 << 20
	maxUploadSize   = 32 << 20
	shutdownTimeout = 10 * time.Second
)

type Config struct {
	Addr string
	// Schedule 非空时按 cron 表达式定时重跑 logo 批处理，例如 "@every 1h"
	Schedule string
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func DefaultConfig() Config {
	return Config{Addr: DefaultAddr}
}

type Server struct {
	cfg    Config
	engine *gin.Engine
	logger *slog.Logger
	cron   *cron.Cron

	jobs       []batch.Job
	newRemover rembg.Factory
	// 批处理写同一批输出文件，同一时间只允许一个在跑
	batchMu sync.Mutex
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRemover 替换去背景实现，HTTP 接口和批处理共用
func WithRemover(f rembg.Factory) Option {
	return func(s *Server) { s.newRemover = f }
}

// WithJobs 替换内置的任务列表
func WithJobs(jobs []batch.Job) Option {
	return func(s *Server) { s.jobs = append([]batch.Job(nil), jobs...) }
}

func New(cfg Config, opts ...Option) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	s := &Server{
		cfg:        cfg,
		logger:     slog.Default(),
		jobs:       batch.DefaultJobs(),
		newRemover: rembg.DefaultFactory,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.MaxMultipartMemory = maxUploadMemory

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.POST("/remove-background", s.removeBackground)
	v1.POST("/batch", s.runBatch)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
			"request_id", c.Writer.Header().Get(requestIDHeader),
		)
	}
}

// RunBatch 运行一次 logo 批处理，状态行写进日志
func (s *Server) RunBatch(ctx context.Context) *batch.Report {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	w := &logWriter{logger: s.logger}
	d := batch.NewDriver(s.jobs,
		batch.WithOutput(w),
		batch.WithErrorOutput(w),
		batch.WithLogger(s.logger),
		batch.WithRemover(s.newRemover),
	)
	return d.Run(ctx)
}

// Start 注册定时任务（如果配置了 Schedule）
func (s *Server) Start() error {
	if s.cfg.Schedule == "" {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(s.cfg.Schedule, func() {
		report := s.RunBatch(context.Background())
		s.logger.Info("scheduled batch finished", "run_id", report.RunID, "results", len(report.Results))
	})
	if err != nil {
		return fmt.Errorf("add cron schedule %q: %w", s.cfg.Schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("batch schedule registered", "schedule", s.cfg.Schedule)
	return nil
}

// Stop 停止定时任务并等待正在执行的批处理结束
func (s *Server) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

// Run 监听 cfg.Addr，ctx 结束后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	defer s.Stop()

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// logWriter 把 Driver 的状态行转成日志
type logWriter struct {
	logger *slog.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	if line := trimNewline(p); line != "" {
		w.logger.Info(line)
	}
	return len(p), nil
}

func trimNewline(p []byte) string {
	for len(p) > 0 && (p[len(p)-1] == '\n' || p[len(p)-1] == '\r') {
		p = p[:len(p)-1]
	}
	return string(p)
}
