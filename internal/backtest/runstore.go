package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"stratlab/internal/strategy"
)

const (
	RunKindBacktest = "backtest"
	RunKindOptimize = "optimize"
)

const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// ShortlistItem 是优化榜单中的一个分类条目。
type ShortlistItem struct {
	Category string          `json:"category"`
	Config   strategy.Config `json:"config"`
	Stats    Result          `json:"stats"`
	Score    float64         `json:"score"`
}

// RunRecord 表示一次回测或优化任务的持久化记录。
type RunRecord struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Status    string          `json:"status"`
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Candles   int             `json:"candles"`
	Config    strategy.Config `json:"config"`
	Stats     *Result         `json:"stats,omitempty"`
	Shortlist []ShortlistItem `json:"shortlist,omitempty"`
	Message   string          `json:"message,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type runModel struct {
	ID            string         `gorm:"column:id;primaryKey"`
	Kind          string         `gorm:"column:kind;index"`
	Status        string         `gorm:"column:status;index"`
	Symbol        string         `gorm:"column:symbol"`
	Timeframe     string         `gorm:"column:timeframe"`
	Candles       int            `gorm:"column:candles"`
	ConfigJSON    datatypes.JSON `gorm:"column:config_json;type:TEXT"`
	StatsJSON     datatypes.JSON `gorm:"column:stats_json;type:TEXT"`
	ShortlistJSON datatypes.JSON `gorm:"column:shortlist_json;type:TEXT"`
	Message       string         `gorm:"column:message"`
	CreatedAtUnix int64          `gorm:"column:created_at;index"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (runModel) TableName() string { return "runs" }

// RunStore 用 Gorm + SQLite 持久化回测/优化历史。
type RunStore struct {
	db   *gorm.DB
	path string
}

func NewRunStore(root string) (*RunStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("run store root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(root, "runs.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP reads
	// while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &RunStore{db: db, path: path}, nil
}

func (s *RunStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Path 返回数据库文件位置。
func (s *RunStore) Path() string { return s.path }

// InsertRun 写入一条新记录，默认状态 pending。
func (s *RunStore) InsertRun(ctx context.Context, run RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run id 不能为空")
	}
	if run.Status == "" {
		run.Status = RunStatusPending
	}
	model, err := toRunModel(run)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	model.CreatedAtUnix = now
	model.UpdatedAtUnix = now
	return s.db.WithContext(ctx).Create(&model).Error
}

// UpdateRunStatus 更新状态与提示信息。
func (s *RunStore) UpdateRunStatus(ctx context.Context, id, status, message string) error {
	return s.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"message":    message,
		"updated_at": time.Now().UnixMilli(),
	}).Error
}

// SaveStats 保存单次回测结果并标记完成。
func (s *RunStore) SaveStats(ctx context.Context, id string, stats Result) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     RunStatusDone,
		"stats_json": datatypes.JSON(raw),
		"updated_at": time.Now().UnixMilli(),
	}).Error
}

// SaveShortlist 保存优化榜单并标记完成。
func (s *RunStore) SaveShortlist(ctx context.Context, id string, shortlist []ShortlistItem) error {
	raw, err := json.Marshal(shortlist)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":         RunStatusDone,
		"shortlist_json": datatypes.JSON(raw),
		"updated_at":     time.Now().UnixMilli(),
	}).Error
}

// ListRuns 按创建时间倒序返回最近的记录。
func (s *RunStore) ListRuns(ctx context.Context, kind string, limit int) ([]RunRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Model(&runModel{}).Order("created_at DESC").Limit(limit)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	var models []runModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, len(models))
	for _, m := range models {
		run, err := fromRunModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

// GetRun 按 ID 查询；不存在时返回 (Run{}, false, nil)。
func (s *RunStore) GetRun(ctx context.Context, id string) (RunRecord, bool, error) {
	var model runModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, err
	}
	run, err := fromRunModel(model)
	if err != nil {
		return RunRecord{}, false, err
	}
	return run, true, nil
}

func toRunModel(run RunRecord) (runModel, error) {
	cfgJSON, err := json.Marshal(run.Config)
	if err != nil {
		return runModel{}, err
	}
	model := runModel{
		ID:         run.ID,
		Kind:       run.Kind,
		Status:     run.Status,
		Symbol:     run.Symbol,
		Timeframe:  run.Timeframe,
		Candles:    run.Candles,
		ConfigJSON: datatypes.JSON(cfgJSON),
		Message:    run.Message,
	}
	if run.Stats != nil {
		raw, err := json.Marshal(run.Stats)
		if err != nil {
			return runModel{}, err
		}
		model.StatsJSON = datatypes.JSON(raw)
	}
	if len(run.Shortlist) > 0 {
		raw, err := json.Marshal(run.Shortlist)
		if err != nil {
			return runModel{}, err
		}
		model.ShortlistJSON = datatypes.JSON(raw)
	}
	return model, nil
}

func fromRunModel(m runModel) (RunRecord, error) {
	run := RunRecord{
		ID:        m.ID,
		Kind:      m.Kind,
		Status:    m.Status,
		Symbol:    m.Symbol,
		Timeframe: m.Timeframe,
		Candles:   m.Candles,
		Message:   m.Message,
		CreatedAt: timeFromMillis(m.CreatedAtUnix),
		UpdatedAt: timeFromMillis(m.UpdatedAtUnix),
	}
	if len(m.ConfigJSON) > 0 {
		if err := json.Unmarshal(m.ConfigJSON, &run.Config); err != nil {
			return RunRecord{}, err
		}
	}
	if len(m.StatsJSON) > 0 {
		var stats Result
		if err := json.Unmarshal(m.StatsJSON, &stats); err != nil {
			return RunRecord{}, err
		}
		run.Stats = &stats
	}
	if len(m.ShortlistJSON) > 0 {
		if err := json.Unmarshal(m.ShortlistJSON, &run.Shortlist); err != nil {
			return RunRecord{}, err
		}
	}
	return run, nil
}

func timeFromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond))
}
