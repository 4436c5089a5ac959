package history

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"yqhp/perf-suite/internal/analysis"
	"yqhp/perf-suite/internal/config"
)

const results = `{"type":"Point","metric":"checks","data":{"value":1,"tags":{"check":"status 200","group":"::Users"}}}
{"type":"Point","metric":"checks","data":{"value":1,"tags":{"check":"status 200","group":"::Users"}}}
{"type":"Point","metric":"checks","data":{"value":0,"tags":{"check":"status 200","group":"::Users"}}}
{"type":"Point","metric":"http_req_duration","data":{"value":100}}
{"type":"Point","metric":"http_req_duration","data":{"value":400}}
{"type":"Point","metric":"http_req_failed","data":{"value":1,"tags":{"status":"401"}}}
{"type":"Point","metric":"http_req_failed","data":{"value":0,"tags":{"status":"200"}}}
{"type":"ThresholdEvent","metric":"http_req_duration","data":{"name":"p(95)<500","met":true}}
`

func analyze(t *testing.T) *analysis.Result {
	t.Helper()
	res, err := analysis.Analyze(strings.NewReader(results))
	require.NoError(t, err)
	return res
}

func TestNewRun(t *testing.T) {
	run := NewRun(analyze(t), "results.json", "load", nil)

	_, err := uuid.Parse(run.ID)
	assert.NoError(t, err)
	assert.False(t, run.CreatedAt.IsZero())
	assert.Equal(t, "results.json", run.Source)
	assert.Equal(t, "load", run.TestType)
	assert.Equal(t, 2, run.ChecksPassed)
	assert.Equal(t, 1, run.ChecksFailed)
	assert.InDelta(t, 66.67, run.CheckRate, 0.01)
	assert.Equal(t, 2, run.TotalRequests)
	assert.Equal(t, 1, run.FailedRequests)
	assert.Equal(t, 50.0, run.FailureRate)
	assert.Equal(t, 0.0, run.AdjustedFailureRate)
	assert.Equal(t, 400.0, run.P95DurationMs)
	assert.Equal(t, 1, run.ThresholdsTotal)
	assert.True(t, run.ThresholdsPassed())
	assert.False(t, run.Passed)
}

func TestNewRun_ExplicitOutcomes(t *testing.T) {
	outcomes := []analysis.Threshold{
		{Metric: "http_req_duration", Expression: "p(95)<300", Met: false},
		{Metric: "checks", Expression: "rate>0.5", Met: true},
	}
	run := NewRun(analyze(t), "", "", outcomes)
	assert.Equal(t, 2, run.ThresholdsTotal)
	assert.Equal(t, 1, run.ThresholdsFailed)
	assert.False(t, run.ThresholdsPassed())

	other := NewRun(analysis.NewResult(), "", "", nil)
	assert.NotEqual(t, run.ID, other.ID)
	assert.Zero(t, other.P95DurationMs)
	assert.True(t, other.Passed)
}

func TestDialector(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.HistoryConfig
		dialect string
		err     error
	}{
		{"mysql", config.HistoryConfig{Driver: "mysql", DSN: "perf:perf@tcp(localhost:3306)/perf"}, "mysql", nil},
		{"postgres", config.HistoryConfig{Driver: "postgres", DSN: "host=localhost dbname=perf"}, "postgres", nil},
		{"default driver", config.HistoryConfig{DSN: "host=localhost dbname=perf"}, "postgres", nil},
		{"no dsn", config.HistoryConfig{Driver: "mysql"}, "", ErrDisabled},
		{"unsupported", config.HistoryConfig{Driver: "oracle", DSN: "x"}, "", ErrUnsupportedDriver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Dialector(tt.cfg)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, d.Name())
		})
	}
}

func TestOpen_Disabled(t *testing.T) {
	_, err := Open(context.Background(), config.HistoryConfig{Driver: "postgres"})
	assert.ErrorIs(t, err, ErrDisabled)
}

// dryRunStore builds statements without a database connection.
func dryRunStore(t *testing.T) *Store {
	t.Helper()
	s, err := open(postgres.Open("host=localhost user=perf dbname=perf sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Statements(t *testing.T) {
	s := dryRunStore(t)
	run := NewRun(analyze(t), "results.json", "smoke", nil)

	insert := s.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Create(&run)
	})
	assert.Contains(t, insert, `INSERT INTO "perf_run"`)
	assert.Contains(t, insert, run.ID)
	assert.Contains(t, insert, "results.json")

	query := s.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var runs []Run
		return s.recentQuery(tx, 5).Find(&runs)
	})
	assert.Contains(t, query, `FROM "perf_run"`)
	assert.Contains(t, query, "ORDER BY created_at DESC")
	assert.Contains(t, query, "LIMIT 5")
}

func TestStore_SaveAssignsID(t *testing.T) {
	s := dryRunStore(t)

	run := &Run{Source: "results.json"}
	require.NoError(t, s.Save(context.Background(), run))
	_, err := uuid.Parse(run.ID)
	assert.NoError(t, err)

	runs, err := s.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
