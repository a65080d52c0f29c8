// Package hostedlink 协调托管链接子流程：打开外部浏览面，等待深链回跳或回前台超时，
// 最后把结果通知给网页。
package hostedlink

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"onboardbridge/internal/logger"
	"onboardbridge/internal/surface"
	"onboardbridge/pkg/model"
)

// State 子会话状态
type State int

const (
	StateIdle State = iota
	StatePending
)

func (s State) String() string {
	if s == StatePending {
		return "pending"
	}
	return "idle"
}

// Status 子会话结果
type Status string

const (
	StatusSuccess Status = "success"
	StatusCancel  Status = "cancel"
)

var errNoBrowser = errors.New("no external browser configured")

// DefaultGraceDelay 回前台后等待深链的时间，属于经验值
const DefaultGraceDelay = 1500 * time.Millisecond

// Scheduler 延迟执行 fn，返回的函数用于取消
type Scheduler func(d time.Duration, fn func()) (cancel func() bool)

// TimeScheduler 基于 time.AfterFunc
func TimeScheduler(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, fn)
	return t.Stop
}

// NotifyFunc 子会话结束时调用
type NotifyFunc func(status Status, callbackURL string)

// Config 协调器配置
type Config struct {
	Browser     surface.Browser
	RedirectURI string
	GraceDelay  time.Duration
	Notify      NotifyFunc
	// Post 把定时器回调投递回会话的执行上下文
	Post      func(fn func()) bool
	Scheduler Scheduler
	Logger    logger.Logger
}

// Coordinator 托管链接子会话状态机，除定时器外所有方法须在会话执行上下文中调用
type Coordinator struct {
	browser     surface.Browser
	redirectURI string
	grace       time.Duration
	notify      NotifyFunc
	post        func(fn func()) bool
	schedule    Scheduler
	log         logger.Logger

	state       State
	cancelTimer func() bool
	// gen 在每次状态变化时递增，用于识别过期的定时器
	gen uint64
}

// New 创建协调器
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		browser:     cfg.Browser,
		redirectURI: strings.TrimSpace(cfg.RedirectURI),
		grace:       cfg.GraceDelay,
		notify:      cfg.Notify,
		post:        cfg.Post,
		schedule:    cfg.Scheduler,
		log:         cfg.Logger,
	}
	if c.redirectURI == "" {
		c.redirectURI = model.DefaultHostedLinkRedirectURI
	}
	if c.grace <= 0 {
		c.grace = DefaultGraceDelay
	}
	if c.schedule == nil {
		c.schedule = TimeScheduler
	}
	if c.post == nil {
		c.post = func(fn func()) bool { fn(); return true }
	}
	if c.notify == nil {
		c.notify = func(Status, string) {}
	}
	if c.log == nil {
		c.log = logger.NewNop()
	}
	return c
}

// State 当前状态
func (c *Coordinator) State() State { return c.state }

// Pending 是否在等待外部浏览面返回
func (c *Coordinator) Pending() bool { return c.state == StatePending }

// RedirectURI 本会话的回跳地址
func (c *Coordinator) RedirectURI() string { return c.redirectURI }

// Validate 检查托管链接地址，只接受 https；路径启发式仅记录日志
func Validate(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", model.NewError(model.KindExternalSurface, "open hosted link", model.ErrEmptyURL)
	}
	if !strings.HasPrefix(u, "https://") {
		return "", model.NewError(model.KindExternalSurface, "open hosted link", model.ErrInsecureURL)
	}
	return u, nil
}

// Open 打开外部浏览面并进入 Pending；启动失败时保持原状态
func (c *Coordinator) Open(ctx context.Context, raw string) error {
	u, err := Validate(raw)
	if err != nil {
		c.log.Warn("拒绝打开托管链接", "url", raw, "error", err)
		return err
	}
	if !strings.Contains(u, "/link/") {
		c.log.Warn("托管链接地址不像常见的 Hosted Link 路径，仍然打开", "url", u)
	}
	if _, err := url.Parse(u); err != nil {
		return model.NewError(model.KindExternalSurface, "parse hosted link", err)
	}
	if c.browser == nil {
		return model.NewError(model.KindExternalSurface, "open hosted link", errNoBrowser)
	}
	if err := c.browser.Open(ctx, u); err != nil {
		c.log.Err(err, "启动外部浏览面失败", "url", u)
		return model.NewError(model.KindExternalSurface, "launch browser", err)
	}

	c.disarm()
	c.state = StatePending
	c.gen++
	c.log.Info("托管链接已打开，等待返回", "url", u)
	return nil
}

// HandleActivation 处理外部唤起；匹配回跳地址时结束子会话并返回 true
func (c *Coordinator) HandleActivation(a surface.Activation) bool {
	if c.state != StatePending {
		return false
	}
	if a.HostedLinkSuccess {
		c.resolve(StatusSuccess, a.CallbackURL)
		return true
	}
	if a.URI == "" || !c.Matches(a.URI) {
		return false
	}
	c.resolve(StatusFromURI(a.URI), a.URI)
	return true
}

// HandleResume 宿主回到前台；若仍在等待则(重新)启动宽限定时器，超时按取消处理
func (c *Coordinator) HandleResume() {
	if c.state != StatePending {
		return
	}
	c.disarm()
	c.gen++
	gen := c.gen
	c.cancelTimer = c.schedule(c.grace, func() {
		c.post(func() { c.expire(gen) })
	})
	c.log.Debug("回到前台，启动托管链接宽限定时器", "delay", c.grace.String())
}

func (c *Coordinator) expire(gen uint64) {
	if c.state != StatePending || c.gen != gen {
		return
	}
	c.cancelTimer = nil
	c.log.Info("宽限期内未收到回跳，按取消处理")
	c.resolve(StatusCancel, "")
}

func (c *Coordinator) resolve(status Status, callbackURL string) {
	c.disarm()
	c.state = StateIdle
	c.gen++
	c.log.Info("托管链接子会话结束", "status", string(status), "callbackUrl", callbackURL)
	c.notify(status, callbackURL)
}

func (c *Coordinator) disarm() {
	if c.cancelTimer != nil {
		c.cancelTimer()
		c.cancelTimer = nil
	}
}

// Shutdown 随宿主销毁，取消定时器且不再通知
func (c *Coordinator) Shutdown() {
	c.disarm()
	c.state = StateIdle
	c.gen++
}

// Matches 判断 uri 的 scheme+host 是否与默认或配置的回跳地址一致
func (c *Coordinator) Matches(uri string) bool {
	got, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return false
	}
	for _, candidate := range []string{model.DefaultHostedLinkRedirectURI, c.redirectURI} {
		want, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		if strings.EqualFold(got.Scheme, want.Scheme) && strings.EqualFold(got.Host, want.Host) {
			return true
		}
	}
	return false
}

// StatusFromURI 从 status/result 查询参数推断结果，缺省为成功
func StatusFromURI(uri string) Status {
	u, err := url.Parse(uri)
	if err != nil {
		return StatusSuccess
	}
	q := u.Query()
	v := q.Get("status")
	if v == "" {
		v = q.Get("result")
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "cancel", "canceled", "cancelled":
		return StatusCancel
	default:
		return StatusSuccess
	}
}
