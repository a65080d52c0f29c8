// Package cdp 通过 Chrome DevTools Protocol 提供内容承载面、宿主屏幕与外部浏览面
package cdp

import (
	"context"
	"fmt"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/rpcc"

	"onboardbridge/internal/logger"
	"onboardbridge/internal/surface"
	"onboardbridge/pkg/model"
)

// DefaultBinding 页面调用原生侧使用的绑定函数名
const DefaultBinding = "__wedgeBridge"

// Launcher 为每个会话新建一个浏览器页面
type Launcher struct {
	devtoolsURL string
	binding     string
	browser     surface.Browser
	log         logger.Logger
}

// NewLauncher 创建页面启动器
func NewLauncher(devtoolsURL string, l logger.Logger) *Launcher {
	if l == nil {
		l = logger.NewNop()
	}
	return &Launcher{devtoolsURL: devtoolsURL, binding: DefaultBinding, log: l}
}

// WithBrowser 使用指定的外部浏览面代替新标签页
func (m *Launcher) WithBrowser(b surface.Browser) *Launcher {
	m.browser = b
	return m
}

// Open 新建页面目标并建立连接
func (m *Launcher) Open(ctx context.Context, id model.SessionID) (*surface.Host, error) {
	dt := devtool.New(m.devtoolsURL)
	t, err := dt.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("create page target: %w", err)
	}
	conn, err := rpcc.DialContext(ctx, t.WebSocketDebuggerURL)
	if err != nil {
		_ = dt.Close(context.Background(), t)
		return nil, fmt.Errorf("dial page target: %w", err)
	}
	client := cdp.NewClient(conn)
	l := m.log.With("session", string(id), "target", t.ID)

	p := newPage(dt, t, conn, client, m.binding, l)
	var b surface.Browser = m.browser
	if b == nil {
		b = newTabBrowser(client, l)
	}
	l.Info("已创建页面目标")
	return &surface.Host{
		Surface: p,
		Screen:  p,
		Browser: b,
		Close: func() error {
			if tb, ok := b.(*TabBrowser); ok {
				tb.close()
			}
			return p.close()
		},
	}, nil
}
