// Package storage 会话结果流水，只追加、只用于排查，不会被读回恢复会话
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"onboardbridge/internal/ctxkeys"
	"onboardbridge/internal/logger"
	"onboardbridge/pkg/model"
)

// OutcomeRecord 一条已投递的事件
type OutcomeRecord struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID string    `gorm:"index;size:64"`
	Kind      string    `gorm:"size:16"`
	Payload   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

// Journal 基于 sqlite 的结果流水
type Journal struct {
	db  *gorm.DB
	log logger.Logger
}

// Open 打开（必要时创建）流水库，dsn 为空时使用内存库
func Open(dsn, prefix string, l logger.Logger) (*Journal, error) {
	if l == nil {
		l = logger.NewNop()
	}
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.AutoMigrate(&OutcomeRecord{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db, log: l}, nil
}

// Record 追加一条记录
func (j *Journal) Record(ctx context.Context, o model.Outcome) error {
	ctx = ctxkeys.WithOutcome(ctx, o)
	rec := &OutcomeRecord{
		SessionID: string(o.Session),
		Kind:      string(o.Kind),
		Payload:   o.Payload,
	}
	if err := j.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// Observer 返回可挂到 registry 上的观察者，写入失败只记日志
func (j *Journal) Observer() func(o model.Outcome) {
	return func(o model.Outcome) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := j.Record(ctx, o); err != nil {
			j.log.Err(err, "写入结果流水失败", "session", string(o.Session), "kind", string(o.Kind))
		}
	}
}

// List 按写入顺序返回会话的全部记录
func (j *Journal) List(ctx context.Context, id model.SessionID) ([]model.Outcome, error) {
	var recs []OutcomeRecord
	err := j.db.WithContext(ctxkeys.WithSession(ctx, id)).
		Where("session_id = ?", string(id)).
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	out := make([]model.Outcome, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.Outcome{Session: model.SessionID(r.SessionID), Kind: model.OutcomeKind(r.Kind), Payload: r.Payload})
	}
	return out, nil
}

// Terminal 返回会话的终结结果，没有时 ok 为 false
func (j *Journal) Terminal(ctx context.Context, id model.SessionID) (model.Outcome, bool, error) {
	var rec OutcomeRecord
	res := j.db.WithContext(ctxkeys.WithSession(ctx, id)).
		Where("session_id = ? AND kind IN ?", string(id), []string{
			string(model.OutcomeSuccess), string(model.OutcomeClose), string(model.OutcomeError),
		}).
		Order("id").
		Limit(1).
		Find(&rec)
	if res.Error != nil {
		return model.Outcome{}, false, fmt.Errorf("terminal outcome: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.Outcome{}, false, nil
	}
	return model.Outcome{Session: id, Kind: model.OutcomeKind(rec.Kind), Payload: rec.Payload}, true, nil
}

// Close 关闭底层连接
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
