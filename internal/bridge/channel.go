// Package bridge 实现网页内容与原生代码之间的双向消息通道
package bridge

import (
	"fmt"
	"strconv"
	"strings"

	"onboardbridge/internal/logger"
	"onboardbridge/pkg/model"
)

// Target 通道背后的会话，所有方法只会在执行器上下文中被调用
type Target interface {
	Success(data string)
	Close(reason string)
	Fail(message string)
	Event(data string)
	Load(data string)
	OpenHostedLink(url string) bool
	RedirectURI() string
}

// Executor 串行执行上下文
type Executor interface {
	// Post 异步投递，执行器已关闭时返回 false
	Post(fn func()) bool
	// Call 投递并等待执行完成
	Call(fn func()) bool
}

// Channel 入站调用表，每次调用都重新投递到执行器上，互不并发
type Channel struct {
	target Target
	exec   Executor
	log    logger.Logger
}

// NewChannel 创建桥接通道
func NewChannel(t Target, exec Executor, l logger.Logger) *Channel {
	if l == nil {
		l = logger.NewNop()
	}
	return &Channel{target: t, exec: exec, log: l}
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// Invoke 按名称分发入站调用
func (c *Channel) Invoke(method string, args []string) (string, error) {
	switch method {
	case "onSuccess":
		c.OnSuccess(arg(args, 0))
	case "onClose":
		c.OnClose(arg(args, 0))
	case "onExit":
		c.OnExit(arg(args, 0))
	case "onError":
		c.OnError(arg(args, 0))
	case "postMessage":
		c.PostMessage(arg(args, 0))
	case "openHostedLink":
		return strconv.FormatBool(c.OpenHostedLink(arg(args, 0))), nil
	case "getHostedLinkRedirectUri":
		return c.GetHostedLinkRedirectURI(), nil
	default:
		return "", fmt.Errorf("unknown bridge method %q", method)
	}
	return "", nil
}

// guard 任何意外都降级为 Invalid message format 错误
func (c *Channel) guard(op string, fn func()) func() {
	return func() {
		defer func() {
			if p := recover(); p != nil {
				c.log.Error("入站调用异常", "op", op, "panic", p)
				c.target.Fail(model.ErrInvalidMessage.Error())
			}
		}()
		fn()
	}
}

func (c *Channel) post(op string, fn func()) {
	if !c.exec.Post(c.guard(op, fn)) {
		c.log.Debug("会话已关闭，忽略入站调用", "op", op)
	}
}

func (c *Channel) OnSuccess(data string) {
	c.post("onSuccess", func() { c.target.Success(data) })
}

func (c *Channel) OnClose(reason string) {
	c.post("onClose", func() { c.target.Close(reason) })
}

// OnExit 旧名称，与 OnClose 相同
func (c *Channel) OnExit(reason string) {
	c.post("onExit", func() { c.target.Close(reason) })
}

func (c *Channel) OnError(message string) {
	c.post("onError", func() { c.target.Fail(message) })
}

// OpenHostedLink 校验并打开托管链接，返回是否已接受
func (c *Channel) OpenHostedLink(url string) bool {
	var ok bool
	c.exec.Call(c.guard("openHostedLink", func() { ok = c.target.OpenHostedLink(url) }))
	return ok
}

// GetHostedLinkRedirectURI 返回本会话的回跳地址
func (c *Channel) GetHostedLinkRedirectURI() string {
	var uri string
	c.exec.Call(func() { uri = c.target.RedirectURI() })
	return uri
}

// PostMessage 解析 JSON 信封并路由
func (c *Channel) PostMessage(raw string) {
	c.post("postMessage", func() { c.route(raw) })
}

func (c *Channel) route(raw string) {
	env, err := ParseEnvelope(raw)
	if err != nil {
		c.log.Warn("入站消息格式错误", "error", err)
		c.target.Fail(model.ErrInvalidMessage.Error())
		return
	}
	c.log.Debug("收到入站消息", "tag", env.Tag, "kind", env.Kind.String())

	switch env.Kind {
	case KindOpenHostedLink:
		if u := strings.TrimSpace(env.URL); u != "" {
			c.target.OpenHostedLink(u)
		}
	case KindSuccess:
		c.target.Success(env.Data)
	case KindClose:
		c.target.Close(env.Data)
	case KindError:
		c.target.Fail(env.Data)
	case KindEvent:
		c.target.Event(env.Data)
	case KindLoad:
		c.target.Load(env.Data)
	default:
		c.log.Debug("忽略未知入站消息", "tag", env.Tag)
	}
}

// HandleNavigation 处理旧版 sdk:// 导航，返回 true 表示已拦截
func (c *Channel) HandleNavigation(url string) bool {
	kind, payload, ok := ParseLegacyURL(url)
	if !ok {
		return false
	}
	c.post("navigation", func() {
		switch kind {
		case KindSuccess:
			c.target.Success(payload)
		case KindClose:
			c.target.Close(payload)
		case KindError:
			c.target.Fail(payload)
		}
	})
	return true
}
