package backtesthttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"stratlab/internal/backtest"
	"stratlab/internal/logger"
	"stratlab/internal/market"
	"stratlab/internal/optimizer"
	"stratlab/internal/strategy"
)

// Server 提供回测与优化的 HTTP API。
type Server struct {
	addr   string
	svc    *backtest.Service
	engine *backtest.Engine
	opt    *optimizer.Optimizer
	runs   *backtest.RunStore
	router *gin.Engine

	mu       sync.Mutex
	progress map[string]float64

	baseCtx context.Context
}

// Config 描述 HTTP Server 的依赖。
type Config struct {
	Addr      string
	Svc       *backtest.Service
	Engine    *backtest.Engine
	Optimizer *optimizer.Optimizer
	Runs      *backtest.RunStore
}

// NewServer 构建 HTTP Server。
func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine 不能为空")
	}
	if cfg.Runs == nil {
		return nil, errors.New("run store 不能为空")
	}
	if cfg.Optimizer == nil {
		cfg.Optimizer = optimizer.New(cfg.Engine, optimizer.Grids{})
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:     cfg.Addr,
		svc:      cfg.Svc,
		engine:   cfg.Engine,
		opt:      cfg.Optimizer,
		runs:     cfg.Runs,
		router:   router,
		progress: make(map[string]float64),
		baseCtx:  context.Background(),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/api/presets", s.handlePresets)

	api := s.router.Group("/api/backtest")
	api.POST("/run", s.handleRun)
	api.POST("/optimize", s.handleOptimize)
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/report", s.handleRunReport)
	api.POST("/fetch", s.handleFetch)
	api.GET("/fetch/:id", s.handleFetchStatus)
	api.GET("/jobs", s.handleJobs)
	api.GET("/data", s.handleManifest)
	api.GET("/candles", s.handleCandles)
}

type runRequest struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	StartTS   int64           `json:"start_ts"`
	EndTS     int64           `json:"end_ts"`
	Limit     int             `json:"limit"`
	Synthetic bool            `json:"synthetic"`
	Seed      int64           `json:"seed"`
	Bars      int             `json:"bars"`
	Strategy  json.RawMessage `json:"strategy" binding:"required"`
}

// loadCandles 依请求选择数据来源：合成序列、指定区间或最近 N 根。
func (s *Server) loadCandles(ctx context.Context, req runRequest, cfg strategy.Config) ([]market.Candle, error) {
	if req.Synthetic {
		bars := req.Bars
		if bars <= 0 {
			bars = 500
		}
		seed := req.Seed
		if seed == 0 {
			seed = 1
		}
		interval := int64(0)
		if tf, err := backtest.ParseTimeframe(timeframeOf(req, cfg)); err == nil {
			interval = tf.Duration.Milliseconds()
		}
		return market.GenerateSeries(market.NewRand(seed), market.SyntheticOptions{
			StartTime: time.Now().Add(-time.Duration(bars) * time.Hour).UnixMilli(),
			Interval:  interval,
			Bars:      bars,
		}), nil
	}
	if s.svc == nil {
		return nil, errors.New("数据服务未启用，只支持 synthetic 模式")
	}
	if req.Symbol == "" {
		return nil, errors.New("symbol 必填")
	}
	tf := timeframeOf(req, cfg)
	if req.StartTS > 0 && req.EndTS > 0 {
		return s.svc.RangeCandles(ctx, req.Symbol, tf, req.StartTS, req.EndTS)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 500
	}
	return s.svc.LatestCandles(ctx, req.Symbol, tf, limit)
}

func timeframeOf(req runRequest, cfg strategy.Config) string {
	if req.Timeframe != "" {
		return req.Timeframe
	}
	if cfg.Timeframe != "" {
		return cfg.Timeframe
	}
	return "1h"
}

// handleRun 同步执行单次回测并落库。
func (s *Server) handleRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := strategy.DecodeConfig(req.Strategy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	candles, err := s.loadCandles(c.Request.Context(), req, cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run := backtest.RunRecord{
		ID:        uuid.NewString(),
		Kind:      backtest.RunKindBacktest,
		Status:    backtest.RunStatusRunning,
		Symbol:    req.Symbol,
		Timeframe: timeframeOf(req, cfg),
		Candles:   len(candles),
		Config:    cfg,
	}
	if err := s.runs.InsertRun(c.Request.Context(), run); err != nil {
		logger.Warnf("[http] 回测任务落库失败: %v", err)
	}
	stats := s.engine.Run(cfg, candles)
	if err := s.runs.SaveStats(c.Request.Context(), run.ID, stats); err != nil {
		logger.Warnf("[http] 回测结果落库失败: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"run_id": run.ID, "stats": stats})
}

// handleOptimize 异步执行网格搜索，立即返回 run id。
func (s *Server) handleOptimize(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := strategy.DecodeConfig(req.Strategy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	candles, err := s.loadCandles(c.Request.Context(), req, cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run := backtest.RunRecord{
		ID:        uuid.NewString(),
		Kind:      backtest.RunKindOptimize,
		Status:    backtest.RunStatusPending,
		Symbol:    req.Symbol,
		Timeframe: timeframeOf(req, cfg),
		Candles:   len(candles),
		Config:    cfg,
	}
	if err := s.runs.InsertRun(c.Request.Context(), run); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	go s.runOptimize(run.ID, cfg, candles)
	c.JSON(http.StatusAccepted, gin.H{"run_id": run.ID})
}

func (s *Server) runOptimize(runID string, cfg strategy.Config, candles []market.Candle) {
	ctx := s.ctx()
	_ = s.runs.UpdateRunStatus(ctx, runID, backtest.RunStatusRunning, "")
	s.setProgress(runID, 0)
	defer s.clearProgress(runID)

	shortlist, err := s.optimizer().Optimize(ctx, cfg, candles, func(percent float64) {
		s.setProgress(runID, percent)
	})
	if err != nil {
		_ = s.runs.UpdateRunStatus(ctx, runID, backtest.RunStatusFailed, err.Error())
		logger.Warnf("[http] 优化任务 %s 失败: %v", runID, err)
		return
	}
	items := make([]backtest.ShortlistItem, 0, len(shortlist))
	for _, r := range shortlist {
		items = append(items, backtest.ShortlistItem{
			Category: r.Category,
			Config:   r.Config,
			Stats:    r.Stats,
			Score:    r.Score,
		})
	}
	if err := s.runs.SaveShortlist(ctx, runID, items); err != nil {
		logger.Warnf("[http] 优化榜单落库失败: %v", err)
		return
	}
	logger.Infof("[http] 优化任务 %s 完成，榜单条目=%d", runID, len(items))
}

// UpdateOptimizer 热替换网格搜索参数（配置热加载时调用）。
// 进行中的任务继续用旧参数跑完，新任务使用新参数。
func (s *Server) UpdateOptimizer(opt *optimizer.Optimizer) {
	if opt == nil {
		return
	}
	s.mu.Lock()
	s.opt = opt
	s.mu.Unlock()
}

func (s *Server) optimizer() *optimizer.Optimizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opt
}

func (s *Server) ctx() context.Context {
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

func (s *Server) setProgress(id string, percent float64) {
	s.mu.Lock()
	s.progress[id] = percent
	s.mu.Unlock()
}

func (s *Server) clearProgress(id string) {
	s.mu.Lock()
	delete(s.progress, id)
	s.mu.Unlock()
}

func (s *Server) progressOf(id string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[id]
	return p, ok
}

func (s *Server) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.runs.ListRuns(c.Request.Context(), c.Query("kind"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, ok, err := s.runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	resp := gin.H{"run": run}
	if p, running := s.progressOf(run.ID); running {
		resp["progress"] = p
	}
	c.JSON(http.StatusOK, resp)
}

// handleRunReport 渲染资金曲线 HTML 报告（仅对已完成的单次回测有效）。
func (s *Server) handleRunReport(c *gin.Context) {
	run, ok, err := s.runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if run.Stats == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run 无回测结果可渲染"})
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := backtest.RenderReport(c.Writer, backtest.ReportInput{
		Title:  run.Config.Name,
		Symbol: run.Symbol,
		Stats:  *run.Stats,
	}); err != nil {
		logger.Warnf("[http] 报告渲染失败: %v", err)
	}
}

func (s *Server) handlePresets(c *gin.Context) {
	presets, err := strategy.Presets()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"presets": presets})
}

func (s *Server) handleFetch(c *gin.Context) {
	if s.svc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据服务未启用"})
		return
	}
	var req struct {
		Exchange  string `json:"exchange"`
		Symbol    string `json:"symbol" binding:"required"`
		Timeframe string `json:"timeframe" binding:"required"`
		StartTS   int64  `json:"start_ts" binding:"required"`
		EndTS     int64  `json:"end_ts" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := s.svc.SubmitFetch(backtest.FetchParams{
		Exchange:  req.Exchange,
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe,
		Start:     req.StartTS,
		End:       req.EndTS,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

func (s *Server) handleFetchStatus(c *gin.Context) {
	if s.svc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据服务未启用"})
		return
	}
	job, ok := s.svc.JobSnapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (s *Server) handleJobs(c *gin.Context) {
	if s.svc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据服务未启用"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": s.svc.JobsSnapshot()})
}

func (s *Server) handleManifest(c *gin.Context) {
	if s.svc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据服务未启用"})
		return
	}
	symbol := c.Query("symbol")
	tf := c.Query("timeframe")
	if symbol == "" || tf == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol/timeframe 必填"})
		return
	}
	info, err := s.svc.ManifestInfo(c.Request.Context(), symbol, tf)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"manifest": info})
}

func (s *Server) handleCandles(c *gin.Context) {
	if s.svc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据服务未启用"})
		return
	}
	symbol := c.Query("symbol")
	tf := c.Query("timeframe")
	if symbol == "" || tf == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol/timeframe 必填"})
		return
	}
	start, _ := strconv.ParseInt(c.Query("start_ts"), 10, 64)
	end, _ := strconv.ParseInt(c.Query("end_ts"), 10, 64)
	var (
		data []market.Candle
		err  error
	)
	if start > 0 && end > 0 {
		data, err = s.svc.RangeCandles(c.Request.Context(), symbol, tf, start, end)
	} else {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
		data, err = s.svc.LatestCandles(c.Request.Context(), symbol, tf, limit)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"candles": data})
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
