// Package ctxkeys 定义跨包使用的 context key
package ctxkeys

import (
	"context"

	"onboardbridge/pkg/model"
)

// SessionIDKey 会话 ID
type SessionIDKey struct{}

// WithSession 在 ctx 中附带会话 ID
func WithSession(ctx context.Context, id model.SessionID) context.Context {
	return context.WithValue(ctx, SessionIDKey{}, id)
}

// Session 取出会话 ID，不存在时返回空串
func Session(ctx context.Context) model.SessionID {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(SessionIDKey{}).(model.SessionID)
	return id
}

// OutcomeKindKey 正在写入的事件种类
type OutcomeKindKey struct{}

// WithOutcome 在 ctx 中附带会话 ID 与事件种类
func WithOutcome(ctx context.Context, o model.Outcome) context.Context {
	return context.WithValue(WithSession(ctx, o.Session), OutcomeKindKey{}, o.Kind)
}

// OutcomeKind 取出事件种类，不存在时返回空串
func OutcomeKind(ctx context.Context) model.OutcomeKind {
	if ctx == nil {
		return ""
	}
	k, _ := ctx.Value(OutcomeKindKey{}).(model.OutcomeKind)
	return k
}
