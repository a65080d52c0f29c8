// Package surface 描述会话控制器依赖的宿主能力：内容承载面、宿主屏幕与外部浏览器
package surface

import (
	"context"
	"fmt"

	"onboardbridge/pkg/model"
)

// LoadError 加载失败信号
type LoadError struct {
	URL         string
	Code        int
	Description string
	MainFrame   bool
}

func (e LoadError) Message() string {
	return fmt.Sprintf("Failed to load %s (code %d): %s", e.URL, e.Code, e.Description)
}

// HTTPError HTTP 状态错误信号（status >= 400）
type HTTPError struct {
	URL       string
	Status    int
	Reason    string
	MainFrame bool
}

func (e HTTPError) Message() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.Status, e.Reason, e.URL)
}

// Listener 接收内容承载面的导航与加载信号，可能在任意 goroutine 调用
type Listener interface {
	PageFinished(url string)
	LoadFailed(e LoadError)
	HTTPFailed(e HTTPError)
	// Navigating 顶层文档即将跳转到 url，返回 true 表示已拦截、不再加载
	Navigating(url string) bool
}

// Invoker 网页调用原生方法的统一入口
type Invoker interface {
	Invoke(method string, args []string) (string, error)
}

// Bridge 注册到页面的桥接接口
type Bridge struct {
	Name string
	// RedirectURI 页面注入配置之前就能同步读到的回跳地址
	RedirectURI string
	Invoker     Invoker
}

// Surface 内容承载面
type Surface interface {
	// Attach 注册桥接接口与信号监听
	Attach(ctx context.Context, b Bridge, l Listener) error
	Load(ctx context.Context, url string) error
	Evaluate(ctx context.Context, script string) error
	StopLoading(ctx context.Context) error
	Detach(name string) error
}

// Screen 承载会话的宿主屏幕，按顺序尝试关闭
type Screen interface {
	Finish() error
	FinishAndRemoveTask() error
	MoveTaskToBack() error
	IsFinishing() bool
}

// Browser 外部浏览面
type Browser interface {
	Open(ctx context.Context, url string) error
}

// Activation 外部唤起事件（深链回跳）
type Activation struct {
	URI string
	// HostedLinkSuccess 宿主显式标记的成功回跳
	HostedLinkSuccess bool
	CallbackURL       string
}

// ReturnHandler 接收外部浏览面返回信号
type ReturnHandler interface {
	Activate(a Activation)
	Resume()
}

// ReturnNotifier 能观察外部浏览面生命周期的 Browser 实现
type ReturnNotifier interface {
	NotifyReturn(h ReturnHandler)
}

// Host 一次会话独占的宿主能力
type Host struct {
	Surface Surface
	Screen  Screen
	Browser Browser
	// Close 释放底层连接，可为空
	Close func() error
}

// Factory 为每个会话创建独立的宿主
type Factory interface {
	Open(ctx context.Context, id model.SessionID) (*Host, error)
}
