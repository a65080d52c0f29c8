package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"onboardbridge/internal/ctxkeys"
	"onboardbridge/internal/logger"
)

// defaultSlowThreshold 流水写入是单行插入，超过这个时间说明数据库文件有问题
const defaultSlowThreshold = 200 * time.Millisecond

// GormLogger 把 gorm 日志接到项目日志上，附带流水所属的会话与事件种类
type GormLogger struct {
	log           logger.Logger
	LogLevel      gormlogger.LogLevel
	SlowThreshold time.Duration
}

// NewGormLogger 创建 GormLogger，默认只记录慢语句与错误
func NewGormLogger(l logger.Logger) *GormLogger {
	if l == nil {
		l = logger.NewNop()
	}
	return &GormLogger{
		log:           l,
		LogLevel:      gormlogger.Warn,
		SlowThreshold: defaultSlowThreshold,
	}
}

// LogMode 设置日志级别
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	n := *l
	n.LogLevel = level
	return &n
}

// fields 从 ctx 取出会话与事件种类，缺失的字段不输出
func fields(ctx context.Context, kv ...any) []any {
	out := make([]any, 0, len(kv)+4)
	if id := ctxkeys.Session(ctx); id != "" {
		out = append(out, "session", string(id))
	}
	if kind := ctxkeys.OutcomeKind(ctx); kind != "" {
		out = append(out, "kind", string(kind))
	}
	return append(out, kv...)
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Info {
		l.log.Info(msg, fields(ctx, "data", data)...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Warn {
		l.log.Warn(msg, fields(ctx, "data", data)...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Error {
		l.log.Error(msg, fields(ctx, "data", data)...)
	}
}

// Trace 流水写入失败记为错误，查不到记录不算错误
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.LogLevel >= gormlogger.Error:
		sql, rows := fc()
		l.log.Err(err, "写入结果流水的语句失败", fields(ctx, "sql", sql, "rows", rows, "elapsed", elapsed)...)
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold && l.LogLevel >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warn("结果流水语句过慢", fields(ctx, "sql", sql, "rows", rows, "elapsed", elapsed, "threshold", l.SlowThreshold)...)
	case l.LogLevel >= gormlogger.Info:
		sql, rows := fc()
		l.log.Debug("结果流水语句", fields(ctx, "sql", sql, "rows", rows)...)
	}
}
