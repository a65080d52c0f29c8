// onboarding 演示宿主：打开托管流程，打印回调事件，并通过 hostctl 接收深链与生命周期信号
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"onboardbridge/internal/cdp"
	"onboardbridge/internal/config"
	"onboardbridge/internal/external"
	"onboardbridge/internal/hostctl"
	"onboardbridge/internal/logger"
	"onboardbridge/internal/registry"
	"onboardbridge/internal/service"
	"onboardbridge/internal/storage"
	"onboardbridge/pkg/api"
	"onboardbridge/pkg/model"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "yaml 配置文件路径")
	token := flag.String("token", "", "onboarding token")
	env := flag.String("env", "", "integration / sandbox / production")
	flowType := flag.String("type", string(model.FlowOnboarding), "onboarding / funding")
	baseURL := flag.String("base-url", "", "自定义基础地址，优先于 -env")
	redirect := flag.String("redirect-uri", "", "托管链接回跳地址")
	listen := flag.String("listen", "127.0.0.1:8765", "hostctl 监听地址，为空则不启动")
	flag.Parse()

	cfg := config.NewConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	log := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Writers: cfg.Log.Writer,
		File:    cfg.Log.File,
	})

	var observers []registry.Observer
	if cfg.Sqlite.Dsn != "" {
		journal, err := storage.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, log)
		if err != nil {
			return err
		}
		defer journal.Close()
		observers = append(observers, journal.Observer())
	}

	launcher := cdp.NewLauncher(cfg.CDP.DevToolsURL, log)
	if cfg.HostedLink.ExternalBrowser == "system" {
		launcher.WithBrowser(external.NewSystem(log))
	}

	svc := api.NewService(api.Options{
		Config:    cfg,
		Factory:   launcher,
		Observers: observers,
		Logger:    log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *listen != "" {
		srv := &http.Server{Addr: *listen, Handler: hostctl.NewRouter(svc, log), ReadHeaderTimeout: 5 * time.Second}
		ln, err := net.Listen("tcp", *listen)
		if err != nil {
			return fmt.Errorf("listen hostctl: %w", err)
		}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Err(err, "hostctl 服务异常退出")
			}
		}()
		defer srv.Close()
		log.Info("hostctl 已启动", "addr", ln.Addr().String())
	}

	done := make(chan struct{}, 1)
	finish := func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}
	cb := model.CallbackFuncs{
		Success: func(data string) { fmt.Println("onSuccess:", data); finish() },
		Close:   func(reason string) { fmt.Println("onClose:", reason); finish() },
		Error:   func(msg string) { fmt.Println("onError:", msg); finish() },
		Event:   func(ev string) { fmt.Println("onEvent:", ev) },
		Load:    func(data string) { fmt.Println("onLoad:", data) },
	}

	id, err := svc.StartOnboarding(ctx, model.SessionConfig{
		Token:                 *token,
		Environment:           model.Environment(*env),
		FlowType:              model.FlowType(*flowType),
		CustomBaseURL:         *baseURL,
		HostedLinkRedirectURI: *redirect,
	}, cb)
	if err != nil {
		return err
	}
	fmt.Println("session:", id)

	select {
	case <-done:
	case <-ctx.Done():
		log.Info("收到退出信号，按返回键处理")
		_ = svc.Back(id)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), service.DefaultCloseTimeout)
	defer cancel()
	return svc.Close(closeCtx)
}
