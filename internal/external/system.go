// Package external 使用操作系统默认浏览器作为外部浏览面
package external

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/browser"

	"onboardbridge/internal/logger"
)

func init() {
	// 浏览器进程的输出不应混进宿主的终端
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// System 调用系统浏览器打开链接。无法观察浏览器何时关闭，
// 回跳依赖系统把深链转交给 hostctl。
type System struct {
	open func(url string) error
	log  logger.Logger
}

// NewSystem 创建系统浏览器外部浏览面
func NewSystem(l logger.Logger) *System {
	if l == nil {
		l = logger.NewNop()
	}
	return &System{open: browser.OpenURL, log: l}
}

// Open 打开 url
func (s *System) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.open(url); err != nil {
		return fmt.Errorf("open system browser: %w", err)
	}
	s.log.Info("已在系统浏览器中打开托管链接", "url", url)
	return nil
}
