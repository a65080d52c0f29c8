package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/mafredri/cdp/rpcc"

	"onboardbridge/internal/bridge"
	"onboardbridge/internal/logger"
	"onboardbridge/internal/surface"
)

const closeTimeout = 3 * time.Second

// Page 一个浏览器页面，同时充当内容承载面与宿主屏幕
type Page struct {
	dt      *devtool.DevTools
	target  *devtool.Target
	conn    *rpcc.Conn
	client  *cdp.Client
	binding string
	log     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	finishing atomic.Bool
	closeOnce sync.Once

	mu        sync.Mutex
	mainFrame page.FrameID
	mainURL   string
	requests  map[network.RequestID]request
	scriptID  page.ScriptIdentifier
	iface     string
	attached  bool
}

type request struct {
	url  string
	main bool
}

func newPage(dt *devtool.DevTools, t *devtool.Target, conn *rpcc.Conn, client *cdp.Client, binding string, l logger.Logger) *Page {
	ctx, cancel := context.WithCancel(context.Background())
	return &Page{
		dt:       dt,
		target:   t,
		conn:     conn,
		client:   client,
		binding:  binding,
		log:      l,
		ctx:      ctx,
		cancel:   cancel,
		requests: make(map[network.RequestID]request),
	}
}

// Attach 启用所需域、注册绑定函数与页面垫片脚本，并开始消费事件
func (p *Page) Attach(ctx context.Context, b surface.Bridge, l surface.Listener) error {
	if err := p.client.Page.Enable(ctx); err != nil {
		return fmt.Errorf("enable page: %w", err)
	}
	if err := p.client.Network.Enable(ctx, nil); err != nil {
		return fmt.Errorf("enable network: %w", err)
	}
	if err := p.client.Runtime.Enable(ctx); err != nil {
		return fmt.Errorf("enable runtime: %w", err)
	}
	tree, err := p.client.Page.GetFrameTree(ctx)
	if err != nil {
		return fmt.Errorf("get frame tree: %w", err)
	}
	p.mu.Lock()
	p.mainFrame = tree.FrameTree.Frame.ID
	p.mu.Unlock()

	// 事件流使用页面自身的生命周期，而不是调用方的 ctx
	ev, err := p.openEventStreams()
	if err != nil {
		return err
	}
	calls, err := p.client.Runtime.BindingCalled(p.ctx)
	if err != nil {
		ev.close()
		return fmt.Errorf("subscribe binding: %w", err)
	}

	if err := p.client.Runtime.AddBinding(ctx, runtime.NewAddBindingArgs(p.binding)); err != nil {
		ev.close()
		calls.Close()
		return fmt.Errorf("add binding: %w", err)
	}
	reply, err := p.client.Page.AddScriptToEvaluateOnNewDocument(ctx,
		page.NewAddScriptToEvaluateOnNewDocumentArgs(bridge.Shim(b.Name, p.binding, b.RedirectURI)))
	if err != nil {
		ev.close()
		calls.Close()
		return fmt.Errorf("add bridge script: %w", err)
	}
	p.mu.Lock()
	p.scriptID = reply.Identifier
	p.iface = b.Name
	p.attached = true
	p.mu.Unlock()

	go p.consume(ev, l)
	go p.consumeCalls(calls, b.Invoker)
	p.log.Debug("桥接接口已注册", "interface", b.Name, "binding", p.binding)
	return nil
}

// Detach 注销绑定函数与垫片脚本
func (p *Page) Detach(name string) error {
	p.mu.Lock()
	attached, scriptID := p.attached, p.scriptID
	p.attached = false
	p.mu.Unlock()
	if !attached {
		return nil
	}

	ctx, cancel := context.WithTimeout(p.ctx, closeTimeout)
	defer cancel()
	var errs []error
	if err := p.client.Runtime.RemoveBinding(ctx, runtime.NewRemoveBindingArgs(p.binding)); err != nil {
		errs = append(errs, fmt.Errorf("remove binding: %w", err))
	}
	if err := p.client.Page.RemoveScriptToEvaluateOnNewDocument(ctx,
		page.NewRemoveScriptToEvaluateOnNewDocumentArgs(scriptID)); err != nil {
		errs = append(errs, fmt.Errorf("remove bridge script: %w", err))
	}
	if err := p.Evaluate(ctx, fmt.Sprintf("delete window[%q];", name)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Load 导航顶层文档
func (p *Page) Load(ctx context.Context, url string) error {
	reply, err := p.client.Page.Navigate(ctx, page.NewNavigateArgs(url))
	if err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if reply.ErrorText != nil && *reply.ErrorText != "" {
		return errors.New(*reply.ErrorText)
	}
	return nil
}

// Evaluate 在页面中执行脚本，脚本抛出异常时返回错误
func (p *Page) Evaluate(ctx context.Context, script string) error {
	reply, err := p.client.Runtime.Evaluate(ctx, runtime.NewEvaluateArgs(script))
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if reply.ExceptionDetails != nil {
		return fmt.Errorf("script exception: %s", reply.ExceptionDetails.Text)
	}
	return nil
}

// StopLoading 停止页面加载
func (p *Page) StopLoading(ctx context.Context) error {
	return p.client.Page.StopLoading(ctx)
}

// Finish 关闭页面目标
func (p *Page) Finish() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := p.dt.Close(ctx, p.target); err != nil {
		return err
	}
	p.finishing.Store(true)
	return nil
}

// FinishAndRemoveTask 通过协议关闭页面
func (p *Page) FinishAndRemoveTask() error {
	ctx, cancel := context.WithTimeout(p.ctx, closeTimeout)
	defer cancel()
	if err := p.client.Page.Close(ctx); err != nil {
		return err
	}
	p.finishing.Store(true)
	return nil
}

// MoveTaskToBack 无法关闭时把页面切到空白页
func (p *Page) MoveTaskToBack() error {
	ctx, cancel := context.WithTimeout(p.ctx, closeTimeout)
	defer cancel()
	_, err := p.client.Page.Navigate(ctx, page.NewNavigateArgs("about:blank"))
	return err
}

// IsFinishing 页面是否已关闭
func (p *Page) IsFinishing() bool { return p.finishing.Load() }

func (p *Page) close() error {
	var err error
	p.closeOnce.Do(func() {
		p.cancel()
		err = p.conn.Close()
	})
	return err
}
