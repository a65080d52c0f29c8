// Package registry 保存当前回调登记并把会话结果路由给调用方。
//
// 只有一个槽位，后登记者覆盖先登记者。槽位按会话 ID 标记，旧会话
// 迟到的事件会被丢弃而不会串到新回调上。
package registry

import (
	"sync"

	"onboardbridge/internal/logger"
	"onboardbridge/pkg/model"
)

type registration struct {
	id model.SessionID
	cb model.Callback
}

// Observer 每次成功投递后被调用
type Observer func(o model.Outcome)

// Registry 进程级回调槽位
type Registry struct {
	mu        sync.RWMutex
	slot      *registration
	observers []Observer
	log       logger.Logger
}

// New 创建回调登记表
func New(l logger.Logger) *Registry {
	if l == nil {
		l = logger.NewNop()
	}
	return &Registry{log: l}
}

// Register 登记回调，覆盖已有登记
func (r *Registry) Register(id model.SessionID, cb model.Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slot != nil && r.slot.id != id {
		r.log.Warn("覆盖仍在登记的回调，旧会话的后续事件将被丢弃", "old", string(r.slot.id), "new", string(id))
	}
	r.slot = &registration{id: id, cb: cb}
}

// Release 清除属于 id 的登记
func (r *Registry) Release(id model.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slot != nil && r.slot.id == id {
		r.slot = nil
	}
}

// Current 返回当前登记的会话
func (r *Registry) Current() (model.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.slot == nil {
		return "", false
	}
	return r.slot.id, true
}

// Observe 添加投递观察者
func (r *Registry) Observe(fn Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

func (r *Registry) lookup(id model.SessionID) model.Callback {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.slot == nil || r.slot.cb == nil {
		return nil
	}
	if r.slot.id != id {
		r.log.Warn("丢弃过期会话的事件", "session", string(id), "current", string(r.slot.id))
		return nil
	}
	return r.slot.cb
}

func (r *Registry) notify(id model.SessionID, kind model.OutcomeKind, payload string) {
	r.mu.RLock()
	obs := make([]Observer, len(r.observers))
	copy(obs, r.observers)
	r.mu.RUnlock()
	for _, fn := range obs {
		fn(model.Outcome{Session: id, Kind: kind, Payload: payload})
	}
}

// Bind 在调用时刻解析 id 的回调，返回稍后执行的投递函数；没有可投递的回调时返回 nil。
// 返回的函数不再依赖槽位，之后的 Release 或覆盖不影响它
func (r *Registry) Bind(id model.SessionID, kind model.OutcomeKind, payload string) func() {
	cb := r.lookup(id)
	if cb == nil {
		return nil
	}
	return func() { r.deliver(id, cb, kind, payload) }
}

// Reject 不经过槽位直接向 cb 投递错误，用于尚未登记就失败的启动
func (r *Registry) Reject(id model.SessionID, cb model.Callback, message string) {
	if cb == nil {
		return
	}
	r.deliver(id, cb, model.OutcomeError, message)
}

func (r *Registry) deliver(id model.SessionID, cb model.Callback, kind model.OutcomeKind, payload string) {
	switch kind {
	case model.OutcomeSuccess:
		cb.OnSuccess(payload)
	case model.OutcomeClose:
		// 先调用旧版 OnExit（忽略其 panic），再调用 OnClose
		if ex, ok := cb.(model.Exiter); ok {
			r.callExit(ex, payload)
		}
		if c, ok := cb.(model.Closer); ok {
			c.OnClose(payload)
		}
	case model.OutcomeError:
		cb.OnError(payload)
	case model.OutcomeEvent:
		if er, ok := cb.(model.EventReceiver); ok {
			er.OnEvent(payload)
		}
	case model.OutcomeLoad:
		if lr, ok := cb.(model.LoadReceiver); ok {
			lr.OnLoad(payload)
		}
	}
	r.notify(id, kind, payload)
}

func (r *Registry) handle(id model.SessionID, kind model.OutcomeKind, payload string) {
	if fn := r.Bind(id, kind, payload); fn != nil {
		fn()
	}
}

// HandleSuccess 投递成功结果
func (r *Registry) HandleSuccess(id model.SessionID, data string) {
	r.handle(id, model.OutcomeSuccess, data)
}

// HandleClose 投递关闭结果；先调用旧版 OnExit（忽略其 panic），再调用 OnClose
func (r *Registry) HandleClose(id model.SessionID, reason string) {
	r.handle(id, model.OutcomeClose, reason)
}

func (r *Registry) callExit(ex model.Exiter, reason string) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Warn("OnExit 回调异常，已忽略", "panic", p)
		}
	}()
	ex.OnExit(reason)
}

// HandleExit 旧名称
//
// Deprecated: 使用 HandleClose.
func (r *Registry) HandleExit(id model.SessionID, reason string) {
	r.HandleClose(id, reason)
}

// HandleError 投递错误结果
func (r *Registry) HandleError(id model.SessionID, message string) {
	r.handle(id, model.OutcomeError, message)
}

// HandleEvent 转发非终结性事件
func (r *Registry) HandleEvent(id model.SessionID, event string) {
	r.handle(id, model.OutcomeEvent, event)
}

// HandleLoad 转发加载完成通知
func (r *Registry) HandleLoad(id model.SessionID, data string) {
	r.handle(id, model.OutcomeLoad, data)
}
