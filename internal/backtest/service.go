package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"stratlab/internal/logger"
	"stratlab/internal/market"
)

const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
	JobStatusPartial = "partial"
)

// FetchParams 描述一次补数请求。
type FetchParams struct {
	Exchange  string `json:"exchange"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Start     int64  `json:"start"`
	End       int64  `json:"end"`
}

// FetchJob 是补数任务的进度快照。
type FetchJob struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Params    FetchParams `json:"params"`
	Total     int64       `json:"total"`
	Completed int64       `json:"completed"`
	Message   string      `json:"message,omitempty"`
	Warnings  []string    `json:"warnings,omitempty"`
	Missing   []Gap       `json:"missing,omitempty"`
	StartedAt time.Time   `json:"started_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (j *FetchJob) copy() FetchJob {
	out := *j
	out.Warnings = append([]string(nil), j.Warnings...)
	out.Missing = append([]Gap(nil), j.Missing...)
	return out
}

// ServiceConfig 配置拉取服务。
type ServiceConfig struct {
	Store           *Store
	Sources         map[string]CandleSource
	DefaultExchange string
	RateLimitPerMin int
	MaxBatch        int
	MaxConcurrent   int
}

// Service 负责管理补数任务、协调拉取与写库。
type Service struct {
	store           *Store
	sources         map[string]CandleSource
	defaultExchange string
	maxBatch        int

	limiter *rate.Limiter
	sem     chan struct{}

	mu   sync.RWMutex
	jobs map[string]*FetchJob

	baseCtx context.Context
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store 不能为空")
	}
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("至少需要一个数据源")
	}
	ratePerSec := rate.Limit(float64(cfg.RateLimitPerMin) / 60.0)
	if cfg.RateLimitPerMin <= 0 {
		ratePerSec = 8
	}
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = binancePageLimit
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	svc := &Service{
		store:           cfg.Store,
		sources:         make(map[string]CandleSource),
		defaultExchange: strings.ToLower(cfg.DefaultExchange),
		maxBatch:        maxBatch,
		limiter:         rate.NewLimiter(ratePerSec, maxBatch),
		sem:             make(chan struct{}, maxConcurrent),
		jobs:            make(map[string]*FetchJob),
		baseCtx:         context.Background(),
	}
	for k, v := range cfg.Sources {
		svc.sources[strings.ToLower(k)] = v
	}
	if svc.defaultExchange == "" {
		for k := range svc.sources {
			svc.defaultExchange = k
			break
		}
	}
	return svc, nil
}

// SetContext 注入宿主 ctx，用于任务取消。
func (s *Service) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

func (s *Service) ctx() context.Context {
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

// SubmitFetch 提交补数任务；若区间已完整则直接标记完成。
func (s *Service) SubmitFetch(params FetchParams) (FetchJob, error) {
	if params.Symbol == "" {
		return FetchJob{}, fmt.Errorf("symbol 不能为空")
	}
	tf, err := ParseTimeframe(params.Timeframe)
	if err != nil {
		return FetchJob{}, err
	}
	exchange := params.Exchange
	if exchange == "" {
		exchange = s.defaultExchange
	}
	src := s.sources[strings.ToLower(exchange)]
	if src == nil {
		return FetchJob{}, fmt.Errorf("未知数据源: %s", exchange)
	}
	start, end := tf.AlignRange(params.Start, params.End)
	if start == end {
		return FetchJob{}, fmt.Errorf("start 与 end 需要构成区间")
	}
	params.Start = start
	params.End = end

	report, err := s.store.CheckIntegrity(s.ctx(), params.Symbol, params.Timeframe, tf, start, end)
	if err != nil {
		return FetchJob{}, err
	}
	job := &FetchJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Params:    params,
		Total:     report.Expected,
		Completed: report.Present,
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
		Missing:   append([]Gap{}, report.Gaps...),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	logger.Infof("[fetch] 任务 %s 提交：%s %s [%d,%d] 预计=%d 缺口=%d",
		job.ID, params.Symbol, params.Timeframe, start, end, report.Expected, len(report.Gaps))

	if report.Complete() {
		s.setJobStatus(job.ID, JobStatusDone, "数据已完整，无需重新拉取", nil)
		return s.mustSnapshot(job.ID), nil
	}

	go s.runJob(job.ID, tf, report, src)
	return s.mustSnapshot(job.ID), nil
}

func (s *Service) runJob(jobID string, tf Timeframe, report IntegrityReport, source CandleSource) {
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx().Done():
		s.setJobStatus(jobID, JobStatusFailed, "服务已关闭", nil)
		return
	}
	defer func() { <-s.sem }()

	job, ok := s.JobSnapshot(jobID)
	if !ok {
		return
	}
	s.updateJob(jobID, func(j *FetchJob) {
		j.Status = JobStatusRunning
		j.Message = ""
	})

	params := job.Params
	ctx := s.ctx()
	step := tf.durationMillis()
	var warnings []string

	for _, gap := range report.Gaps {
		cursor := gap.From
		for cursor <= gap.To {
			if err := ctx.Err(); err != nil {
				s.setJobStatus(jobID, JobStatusFailed, err.Error(), nil)
				return
			}
			if err := s.limiter.Wait(ctx); err != nil {
				s.setJobStatus(jobID, JobStatusFailed, err.Error(), nil)
				return
			}
			remaining := int((gap.To-cursor)/step) + 1
			if remaining > s.maxBatch {
				remaining = s.maxBatch
			}
			data, err := source.Fetch(ctx, FetchRequest{
				Symbol:   params.Symbol,
				Interval: tf.SourceInterval,
				Start:    cursor,
				End:      gap.To,
				Limit:    remaining,
			})
			if err != nil {
				s.setJobStatus(jobID, JobStatusFailed, fmt.Sprintf("%s 拉取失败: %v", source.Name(), err), nil)
				return
			}
			if len(data) == 0 {
				warnings = append(warnings, fmt.Sprintf("区间 [%d,%d] 拉取为空", cursor, gap.To))
				break
			}
			inserted, err := s.store.InsertCandles(ctx, params.Symbol, params.Timeframe, data)
			if err != nil {
				s.setJobStatus(jobID, JobStatusFailed, fmt.Sprintf("写入失败: %v", err), nil)
				return
			}
			cursor = data[len(data)-1].OpenTime + step
			s.updateJob(jobID, func(j *FetchJob) {
				j.Completed += int64(inserted)
				j.UpdatedAt = time.Now()
			})
			if inserted == 0 {
				break
			}
		}
	}

	finalReport, err := s.store.CheckIntegrity(ctx, params.Symbol, params.Timeframe, tf, params.Start, params.End)
	status := JobStatusDone
	message := "拉取完成"
	if err != nil {
		status = JobStatusFailed
		message = "完整性检查失败: " + err.Error()
	} else if !finalReport.Complete() {
		status = JobStatusPartial
		message = "已完成，但仍存在缺口"
	}
	s.updateJob(jobID, func(j *FetchJob) {
		j.Status = status
		j.Message = message
		j.Missing = append([]Gap{}, finalReport.Gaps...)
		j.Warnings = append([]string{}, warnings...)
		j.UpdatedAt = time.Now()
	})
	logger.Infof("[fetch] 任务 %s 结束，状态=%s，缺口=%d", jobID, status, len(finalReport.Gaps))
}

func (s *Service) setJobStatus(jobID, status, message string, gaps []Gap) {
	s.updateJob(jobID, func(j *FetchJob) {
		j.Status = status
		j.Message = message
		j.Missing = append([]Gap{}, gaps...)
		j.UpdatedAt = time.Now()
	})
}

func (s *Service) updateJob(id string, fn func(*FetchJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok && fn != nil {
		fn(job)
	}
}

func (s *Service) mustSnapshot(id string) FetchJob {
	job, _ := s.JobSnapshot(id)
	return job
}

// JobSnapshot 返回任务副本。
func (s *Service) JobSnapshot(id string) (FetchJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return FetchJob{}, false
	}
	return job.copy(), true
}

// JobsSnapshot 返回所有任务的拷贝列表。
func (s *Service) JobsSnapshot() []FetchJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FetchJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.copy())
	}
	return out
}

// ManifestInfo 读取本地 manifest。
func (s *Service) ManifestInfo(ctx context.Context, symbol, timeframe string) (Manifest, error) {
	if symbol == "" || timeframe == "" {
		return Manifest{}, errors.New("symbol/timeframe 不能为空")
	}
	return s.store.Manifest(ctx, symbol, timeframe)
}

// RangeCandles 读取指定区间 K 线。
func (s *Service) RangeCandles(ctx context.Context, symbol, timeframe string, start, end int64) ([]market.Candle, error) {
	if symbol == "" || timeframe == "" {
		return nil, errors.New("symbol/timeframe 不能为空")
	}
	return s.store.RangeCandles(ctx, symbol, timeframe, start, end)
}

// latestFetcher 是数据源的可选能力：按"最近 N 根"向历史翻页拉取。
type latestFetcher interface {
	FetchLatest(ctx context.Context, symbol, interval string, total int) ([]market.Candle, error)
}

// LatestCandles 读取最近 limit 根 K 线。本地不足时尝试从默认数据源
// 回填（尽力而为，拉取失败时返回本地已有部分）。
func (s *Service) LatestCandles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	if symbol == "" || timeframe == "" {
		return nil, errors.New("symbol/timeframe 不能为空")
	}
	if limit <= 0 {
		limit = 500
	}
	list, err := s.store.LatestCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}
	if len(list) >= limit {
		return list, nil
	}
	fetched, ok := s.fetchLatestFromSource(ctx, symbol, timeframe, limit)
	if !ok {
		return list, nil
	}
	if _, err := s.store.InsertCandles(ctx, symbol, timeframe, fetched); err != nil {
		logger.Warnf("[fetch] 最近 K 线回填写库失败: %v", err)
		return list, nil
	}
	return s.store.LatestCandles(ctx, symbol, timeframe, limit)
}

func (s *Service) fetchLatestFromSource(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, bool) {
	tf, err := ParseTimeframe(timeframe)
	if err != nil {
		return nil, false
	}
	lf, ok := s.sources[s.defaultExchange].(latestFetcher)
	if !ok {
		return nil, false
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, false
	}
	data, err := lf.FetchLatest(ctx, symbol, tf.SourceInterval, limit)
	if err != nil {
		logger.Warnf("[fetch] 最近 %d 根拉取失败: %v", limit, err)
		return nil, false
	}
	return data, len(data) > 0
}
