// Package history 把每次分析的汇总保存到数据库，便于对比历次运行。
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"yqhp/perf-suite/internal/analysis"
	"yqhp/perf-suite/internal/config"
	"yqhp/perf-suite/internal/record"
)

// TableNameRun 运行历史表
const TableNameRun = "perf_run"

// DefaultLimit Recent 未指定数量时返回的条数
const DefaultLimit = 20

var (
	// ErrDisabled 未配置 DSN
	ErrDisabled = errors.New("未配置历史数据库")
	// ErrUnsupportedDriver 不支持的数据库驱动
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// Run 一次运行的汇总
type Run struct {
	ID                  string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	CreatedAt           time.Time `gorm:"column:created_at;index" json:"created_at"`
	Source              string    `gorm:"column:source;type:varchar(512);default:''" json:"source"`
	TestType            string    `gorm:"column:test_type;type:varchar(32);default:''" json:"test_type"`
	ChecksPassed        int       `gorm:"column:checks_passed;default:0" json:"checks_passed"`
	ChecksFailed        int       `gorm:"column:checks_failed;default:0" json:"checks_failed"`
	CheckRate           float64   `gorm:"column:check_rate;default:0" json:"check_rate"`
	TotalRequests       int       `gorm:"column:total_requests;default:0" json:"total_requests"`
	FailedRequests      int       `gorm:"column:failed_requests;default:0" json:"failed_requests"`
	FailureRate         float64   `gorm:"column:failure_rate;default:0" json:"failure_rate"`
	AdjustedFailureRate float64   `gorm:"column:adjusted_failure_rate;default:0" json:"adjusted_failure_rate"`
	P95DurationMs       float64   `gorm:"column:p95_duration_ms;default:0" json:"p95_duration_ms"`
	ThresholdsTotal     int       `gorm:"column:thresholds_total;default:0" json:"thresholds_total"`
	ThresholdsFailed    int       `gorm:"column:thresholds_failed;default:0" json:"thresholds_failed"`
	Passed              bool      `gorm:"column:passed" json:"passed"`
}

// TableName 表名
func (Run) TableName() string {
	return TableNameRun
}

// ThresholdsPassed 阈值是否全部通过
func (r Run) ThresholdsPassed() bool {
	return r.ThresholdsFailed == 0
}

// NewRun 根据分析结果生成运行记录。outcomes 为 nil 时使用 res.Thresholds。
func NewRun(res *analysis.Result, source, testType string, outcomes []analysis.Threshold) Run {
	if outcomes == nil {
		outcomes = res.Thresholds
	}
	checks := res.TotalChecks()

	run := Run{
		ID:                  uuid.New().String(),
		CreatedAt:           time.Now(),
		Source:              source,
		TestType:            testType,
		ChecksPassed:        checks.Passed,
		ChecksFailed:        checks.Failed,
		CheckRate:           checks.Rate(),
		TotalRequests:       res.TotalRequests(),
		FailedRequests:      res.FailedRequests(),
		FailureRate:         res.FailureRate(),
		AdjustedFailureRate: res.AdjustedFailureRate(),
		ThresholdsTotal:     len(outcomes),
	}
	if s, ok := res.Summary(record.MetricHTTPReqDuration); ok {
		run.P95DurationMs = s.P95
	}
	for _, t := range outcomes {
		if !t.Met {
			run.ThresholdsFailed++
		}
	}
	run.Passed = checks.Failed == 0 && run.ThresholdsFailed == 0
	return run
}

// Store 运行历史存储
type Store struct {
	db *gorm.DB
}

// Dialector 根据驱动名创建 gorm 方言
func Dialector(cfg config.HistoryConfig) (gorm.Dialector, error) {
	if cfg.DSN == "" {
		return nil, ErrDisabled
	}
	switch cfg.Driver {
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	case "postgres", "":
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}
}

// Open 打开数据库并迁移表结构
func Open(ctx context.Context, cfg config.HistoryConfig) (*Store, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	s, err := open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func open(dialector gorm.Dialector, gcfg *gorm.Config) (*Store, error) {
	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("连接历史数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池参数
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Store{db: db}, nil
}

// Migrate 创建或更新表结构
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Run{})
}

// Save 保存一次运行
func (s *Store) Save(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("保存运行记录失败: %w", err)
	}
	return nil
}

// Recent 按时间倒序返回最近的运行，limit <= 0 时使用 DefaultLimit
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var runs []Run
	err := s.recentQuery(s.db.WithContext(ctx), limit).Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	return runs, nil
}

func (s *Store) recentQuery(tx *gorm.DB, limit int) *gorm.DB {
	return tx.Model(&Run{}).Order("created_at DESC").Limit(limit)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
