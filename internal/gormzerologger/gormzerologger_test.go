package gormzerologger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newBufferLogger(level logger.LogLevel) (*GormZerologger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := New("info")
	l.Logger = zerolog.New(buf).Level(zerolog.TraceLevel)
	l.LogLevel = level
	return l, buf
}

func TestParseGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, ParseGormLogLevel("silent"))
	assert.Equal(t, logger.Error, ParseGormLogLevel("error"))
	assert.Equal(t, logger.Warn, ParseGormLogLevel("warn"))
	assert.Equal(t, logger.Info, ParseGormLogLevel("trace"))
}

func TestTraceIgnoresRecordNotFound(t *testing.T) {
	l, buf := newBufferLogger(logger.Error)
	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())
}

func TestTraceLogsErrors(t *testing.T) {
	l, buf := newBufferLogger(logger.Error)
	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, errors.New("boom"))
	assert.Contains(t, buf.String(), "database query error")
	assert.Contains(t, buf.String(), "SELECT 1")
}

func TestTraceSlowQuery(t *testing.T) {
	l, buf := newBufferLogger(logger.Warn)
	l.SlowThreshold = time.Millisecond
	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 2", 1 }, nil)
	assert.Contains(t, buf.String(), "slow database query")
}

func TestLogModeReturnsCopy(t *testing.T) {
	l, _ := newBufferLogger(logger.Info)
	silent := l.LogMode(logger.Silent).(*GormZerologger)
	assert.Equal(t, logger.Silent, silent.LogLevel)
	assert.Equal(t, logger.Info, l.LogLevel)
}
