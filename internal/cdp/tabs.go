package cdp

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/target"

	"onboardbridge/internal/logger"
	"onboardbridge/internal/surface"
)

// TabBrowser 在同一浏览器中打开新标签页作为外部浏览面。
// 标签页跳转到非 http(s) 地址视为深链回跳，标签页关闭视为回到前台。
type TabBrowser struct {
	client *cdp.Client
	log    logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	start  sync.Once

	mu      sync.Mutex
	handler surface.ReturnHandler
	tabs    map[target.ID]struct{}
}

func newTabBrowser(client *cdp.Client, l logger.Logger) *TabBrowser {
	ctx, cancel := context.WithCancel(context.Background())
	return &TabBrowser{
		client: client,
		log:    l,
		ctx:    ctx,
		cancel: cancel,
		tabs:   make(map[target.ID]struct{}),
	}
}

// NotifyReturn 设置返回信号的接收方
func (b *TabBrowser) NotifyReturn(h surface.ReturnHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

// Open 新建标签页打开 url
func (b *TabBrowser) Open(ctx context.Context, u string) error {
	var err error
	b.start.Do(func() { err = b.watch(ctx) })
	if err != nil {
		return err
	}
	reply, err := b.client.Target.CreateTarget(ctx, target.NewCreateTargetArgs(u))
	if err != nil {
		return fmt.Errorf("create tab: %w", err)
	}
	b.mu.Lock()
	b.tabs[reply.TargetID] = struct{}{}
	b.mu.Unlock()
	b.log.Debug("已打开外部标签页", "tab", string(reply.TargetID))
	return nil
}

func (b *TabBrowser) watch(ctx context.Context) error {
	if err := b.client.Target.SetDiscoverTargets(ctx, target.NewSetDiscoverTargetsArgs(true)); err != nil {
		return fmt.Errorf("discover targets: %w", err)
	}
	changed, err := b.client.Target.TargetInfoChanged(b.ctx)
	if err != nil {
		return fmt.Errorf("subscribe target changes: %w", err)
	}
	destroyed, err := b.client.Target.TargetDestroyed(b.ctx)
	if err != nil {
		changed.Close()
		return fmt.Errorf("subscribe target destroyed: %w", err)
	}

	go func() {
		defer changed.Close()
		defer destroyed.Close()
		for {
			select {
			case <-b.ctx.Done():
				return
			case <-changed.Ready():
				ev, err := changed.Recv()
				if err != nil {
					return
				}
				b.onChanged(ev.TargetInfo)
			case <-destroyed.Ready():
				ev, err := destroyed.Recv()
				if err != nil {
					return
				}
				b.onDestroyed(ev.TargetID)
			}
		}
	}()
	return nil
}

func (b *TabBrowser) tracked(id target.ID) (surface.ReturnHandler, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.tabs[id]
	return b.handler, ok
}

func (b *TabBrowser) onChanged(info target.Info) {
	h, ok := b.tracked(info.TargetID)
	if !ok || !isAppRedirect(info.URL) {
		return
	}
	b.log.Info("外部标签页跳转到应用地址", "uri", info.URL)
	if h != nil {
		h.Activate(surface.Activation{URI: info.URL})
	}
	ctx, cancel := context.WithTimeout(b.ctx, 3*time.Second)
	defer cancel()
	if _, err := b.client.Target.CloseTarget(ctx, target.NewCloseTargetArgs(info.TargetID)); err != nil {
		b.log.Debug("关闭外部标签页失败", "error", err)
	}
}

func (b *TabBrowser) onDestroyed(id target.ID) {
	h, ok := b.tracked(id)
	if !ok {
		return
	}
	b.mu.Lock()
	delete(b.tabs, id)
	b.mu.Unlock()
	if h != nil {
		h.Resume()
	}
}

func (b *TabBrowser) close() { b.cancel() }

// isAppRedirect 非网页地址交由应用处理
func isAppRedirect(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "about", "chrome", "chrome-error", "data", "blob":
		return false
	}
	return true
}
