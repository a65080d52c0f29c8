package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"onboardbridge/internal/bridge"
	"onboardbridge/internal/hostedlink"
	"onboardbridge/internal/logger"
	"onboardbridge/internal/registry"
	"onboardbridge/internal/surface"
	"onboardbridge/pkg/model"
)

// State 会话状态
type State int

const (
	StateLoading State = iota
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	default:
		return "terminated"
	}
}

// 关闭原因，网页端与调用方都按原文匹配
const (
	ReasonBack    = "User closed the onboarding via back button"
	ReasonDismiss = "User closed the onboarding manually"
)

const defaultScriptTimeout = 3 * time.Second

// Options 控制器构造参数
type Options struct {
	ID          model.SessionID
	URL         string
	Token       string
	FlowType    model.FlowType
	RedirectURI string

	InterfaceName string
	Platform      string

	Host     *surface.Host
	Registry *registry.Registry

	GraceDelay time.Duration
	Scheduler  hostedlink.Scheduler
	// ScriptTimeout 每次调用承载面的超时
	ScriptTimeout time.Duration
	// OnDestroy 销毁完成后调用一次
	OnDestroy func(id model.SessionID)
	Logger    logger.Logger
}

// Controller 一次流程的会话控制器：Loading → Active → Terminated。
// 会话状态只在自己的 Dispatcher 上读写，外部信号都先投递过去。
type Controller struct {
	id       model.SessionID
	url      string
	token    string
	flowType model.FlowType
	iface    string
	platform string
	timeout  time.Duration

	surface surface.Surface
	screen  surface.Screen
	host    *surface.Host
	reg     *registry.Registry
	disp    *Dispatcher
	channel *bridge.Channel
	links   *hostedlink.Coordinator
	log     logger.Logger

	// callbacks 调用方回调在单独的队列上执行，回调里可以再调用 Destroy、Back 等同步方法
	callbacks *Dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	state     State
	responded bool
	injected  bool
	finished  bool
	loadedURL string

	destroyOnce sync.Once
	onDestroy   func(id model.SessionID)
}

// NewController 创建控制器，Start 之前不会触碰承载面
func NewController(opts Options) *Controller {
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}
	l = l.With("session", string(opts.ID))
	timeout := opts.ScriptTimeout
	if timeout <= 0 {
		timeout = defaultScriptTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		id:        opts.ID,
		url:       opts.URL,
		token:     opts.Token,
		flowType:  opts.FlowType,
		iface:     opts.InterfaceName,
		platform:  opts.Platform,
		timeout:   timeout,
		host:      opts.Host,
		surface:   opts.Host.Surface,
		screen:    opts.Host.Screen,
		reg:       opts.Registry,
		disp:      NewDispatcher(0, l),
		callbacks: NewDispatcher(256, l),
		log:       l,
		ctx:       ctx,
		cancel:    cancel,
		onDestroy: opts.OnDestroy,
	}
	if c.iface == "" {
		c.iface = "WedgeSDKAndroid"
	}
	if c.platform == "" {
		c.platform = "android"
	}
	if c.screen == nil {
		c.screen = nopScreen{}
	}
	c.channel = bridge.NewChannel(c, c.disp, l)
	c.links = hostedlink.New(hostedlink.Config{
		Browser:     opts.Host.Browser,
		RedirectURI: opts.RedirectURI,
		GraceDelay:  opts.GraceDelay,
		Notify:      c.hostedLinkComplete,
		Post:        c.disp.Post,
		Scheduler:   opts.Scheduler,
		Logger:      l,
	})
	if n, ok := opts.Host.Browser.(surface.ReturnNotifier); ok {
		n.NotifyReturn(c)
	}
	return c
}

// ID 会话 ID
func (c *Controller) ID() model.SessionID { return c.id }

// Channel 桥接通道，供承载面适配器投递入站调用
func (c *Controller) Channel() *bridge.Channel { return c.channel }

// Start 注册桥接接口并开始加载；加载请求失败时会话以错误结束
func (c *Controller) Start(ctx context.Context) error {
	var err error
	ok := c.disp.Call(func() {
		if c.state != StateLoading || c.responded {
			err = fmt.Errorf("session %s already started", c.id)
			return
		}
		b := surface.Bridge{Name: c.iface, RedirectURI: c.links.RedirectURI(), Invoker: c.channel}
		if err = c.surface.Attach(ctx, b, c); err != nil {
			err = model.NewError(model.KindLoad, "attach surface", err)
			c.terminate(model.OutcomeError, err.Error())
			return
		}
		c.log.Info("开始加载托管流程", "url", c.url, "type", string(c.flowType))
		if err = c.surface.Load(ctx, c.url); err != nil {
			err = model.NewError(model.KindLoad, "load", err)
			c.terminate(model.OutcomeError, surface.LoadError{URL: c.url, Code: -1, Description: err.Error(), MainFrame: true}.Message())
		}
	})
	if !ok {
		return fmt.Errorf("session %s: %w", c.id, model.ErrSessionNotFound)
	}
	return err
}

// respond 终结锁存：检查并置位后投递结果，已响应返回 false
func (c *Controller) respond(kind model.OutcomeKind, payload string) bool {
	if c.responded || c.state == StateTerminated || c.screen.IsFinishing() {
		c.log.Debug("会话已结束，忽略终结信号", "kind", string(kind))
		return false
	}
	c.responded = true
	c.state = StateTerminated
	c.deliver(kind, payload)
	c.log.Info("会话结束", "kind", string(kind))
	return true
}

// deliver 立即绑定当前回调，交给回调队列执行。调用方代码不会在 Dispatcher 上运行，
// 回调 panic 也不会打断终结流程
func (c *Controller) deliver(kind model.OutcomeKind, payload string) {
	fn := c.reg.Bind(c.id, kind, payload)
	if fn == nil {
		return
	}
	if !c.callbacks.Post(fn) {
		c.log.Warn("回调队列已关闭，丢弃事件", "kind", string(kind))
	}
}

// terminate 投递结果并关闭宿主屏幕，屏幕关闭后随即销毁会话
func (c *Controller) terminate(kind model.OutcomeKind, payload string) {
	if c.respond(kind, payload) {
		c.finish()
		go c.Destroy()
	}
}

// finish 依次尝试 Finish、FinishAndRemoveTask、MoveTaskToBack，全部失败时放弃
func (c *Controller) finish() {
	if c.finished || c.screen.IsFinishing() {
		return
	}
	c.finished = true
	steps := []struct {
		name string
		fn   func() error
	}{
		{"finish", c.screen.Finish},
		{"finishAndRemoveTask", c.screen.FinishAndRemoveTask},
		{"moveTaskToBack", c.screen.MoveTaskToBack},
	}
	for _, s := range steps {
		err := safeCall(s.fn)
		if err == nil {
			return
		}
		c.log.Warn("关闭宿主屏幕失败，尝试下一种方式", "step", s.name, "error", err)
	}
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

func (c *Controller) evaluate(script string) {
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()
	if err := c.surface.Evaluate(ctx, script); err != nil {
		c.log.Err(err, "执行页面脚本失败")
	}
}

// bridge.Target，均在 Dispatcher 上执行

func (c *Controller) Success(data string) { c.terminate(model.OutcomeSuccess, data) }

func (c *Controller) Close(reason string) { c.terminate(model.OutcomeClose, reason) }

func (c *Controller) Fail(message string) { c.terminate(model.OutcomeError, message) }

func (c *Controller) Event(data string) {
	if c.state == StateTerminated {
		return
	}
	c.deliver(model.OutcomeEvent, data)
}

func (c *Controller) Load(data string) {
	if c.state == StateTerminated {
		return
	}
	c.deliver(model.OutcomeLoad, data)
}

func (c *Controller) OpenHostedLink(url string) bool {
	if c.state == StateTerminated {
		return false
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()
	return c.links.Open(ctx, url) == nil
}

func (c *Controller) RedirectURI() string { return c.links.RedirectURI() }

func (c *Controller) hostedLinkComplete(status hostedlink.Status, callbackURL string) {
	if c.state == StateTerminated {
		return
	}
	c.evaluate(bridge.CompleteScript(string(status), callbackURL))
}

// surface.Listener，可能来自任意 goroutine

func (c *Controller) PageFinished(url string) {
	c.disp.Post(func() {
		if c.state == StateTerminated {
			return
		}
		c.state = StateActive
		c.loadedURL = url
		if !c.injected {
			c.injected = true
			c.evaluate(bridge.ConfigScript(c.platform, true, c.links.RedirectURI()))
			c.evaluate(bridge.TokenScript(c.token))
		}
		c.deliver(model.OutcomeLoad, url)
	})
}

func (c *Controller) LoadFailed(e surface.LoadError) {
	c.disp.Post(func() {
		if !e.MainFrame {
			c.log.Warn("子资源加载失败", "url", e.URL, "code", e.Code, "description", e.Description)
			return
		}
		c.terminate(model.OutcomeError, e.Message())
	})
}

func (c *Controller) HTTPFailed(e surface.HTTPError) {
	c.disp.Post(func() {
		if !e.MainFrame || e.Status < 400 {
			c.log.Warn("子资源 HTTP 错误", "url", e.URL, "status", e.Status)
			return
		}
		c.terminate(model.OutcomeError, e.Message())
	})
}

func (c *Controller) Navigating(url string) bool {
	return c.channel.HandleNavigation(url)
}

// surface.ReturnHandler

// Activate 宿主收到外部唤起
func (c *Controller) Activate(a surface.Activation) {
	c.disp.Post(func() {
		if c.links.HandleActivation(a) {
			return
		}
		c.log.Debug("外部唤起与托管链接无关", "uri", a.URI)
	})
}

// Resume 宿主回到前台
func (c *Controller) Resume() {
	c.disp.Post(c.links.HandleResume)
}

// Back 系统返回键：未响应时以关闭结束会话，不主动关闭屏幕，由宿主随后销毁
func (c *Controller) Back() {
	c.disp.Call(func() {
		c.respond(model.OutcomeClose, ReasonBack)
	})
}

// Dismiss 调用方主动关闭：未响应时以关闭结束会话并关闭屏幕
func (c *Controller) Dismiss() {
	c.disp.Call(func() {
		c.terminate(model.OutcomeClose, ReasonDismiss)
	})
}

// Info 会话快照
func (c *Controller) Info() model.SessionInfo {
	info := model.SessionInfo{ID: c.id, URL: c.url, State: StateTerminated.String(), FlowType: c.flowType}
	c.disp.Call(func() {
		info.State = c.state.String()
		info.Pending = c.links.Pending()
	})
	return info
}

// Terminated 是否已投递终结结果
func (c *Controller) Terminated() bool {
	done := true
	c.disp.Call(func() { done = c.state == StateTerminated })
	return done
}

// Destroy 宿主屏幕销毁：取消托管链接定时器、注销桥接接口、停止加载。可重复调用
func (c *Controller) Destroy() {
	c.destroyOnce.Do(func() {
		c.disp.Call(c.teardown)
		c.disp.Close()
		c.cancel()
		c.reg.Release(c.id)
		if c.host != nil && c.host.Close != nil {
			if err := c.host.Close(); err != nil {
				c.log.Err(err, "释放宿主失败")
			}
		}
		// 已排队的回调照常执行完
		c.callbacks.Drain()
		c.log.Info("会话已销毁")
		if c.onDestroy != nil {
			c.onDestroy(c.id)
		}
	})
}

func (c *Controller) teardown() {
	c.links.Shutdown()
	if c.state != StateTerminated {
		c.state = StateTerminated
	}
	if err := c.surface.Detach(c.iface); err != nil {
		c.log.Err(err, "注销桥接接口失败")
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()
	if err := c.surface.StopLoading(ctx); err != nil {
		c.log.Debug("停止加载失败", "error", err)
	}
}

type nopScreen struct{}

func (nopScreen) Finish() error { return nil }
func (nopScreen) FinishAndRemoveTask() error { return nil }
func (nopScreen) MoveTaskToBack() error { return nil }
func (nopScreen) IsFinishing() bool { return false }
