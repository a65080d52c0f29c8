// Package service 组装回调登记、URL 构造与会话控制器，对外提供启动与宿主信号入口
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"onboardbridge/internal/config"
	"onboardbridge/internal/hostedlink"
	"onboardbridge/internal/logger"
	"onboardbridge/internal/registry"
	"onboardbridge/internal/session"
	"onboardbridge/internal/surface"
	"onboardbridge/internal/urlbuilder"
	"onboardbridge/pkg/model"
)

// Options 服务构造参数
type Options struct {
	Config  *config.Config
	Factory surface.Factory
	// Observers 每次投递后调用，例如结果流水
	Observers []registry.Observer
	Scheduler hostedlink.Scheduler
	Logger    logger.Logger
}

// Service 服务实现
type Service struct {
	cfg      *config.Config
	factory  surface.Factory
	reg      *registry.Registry
	sessions *session.Manager
	schedule hostedlink.Scheduler
	log      logger.Logger
}

// New 创建服务
func New(opts Options) *Service {
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	reg := registry.New(l)
	for _, o := range opts.Observers {
		reg.Observe(o)
	}
	return &Service{
		cfg:      cfg,
		factory:  opts.Factory,
		reg:      reg,
		sessions: session.NewManager(l),
		schedule: opts.Scheduler,
		log:      l,
	}
}

// StartOnboarding 登记回调并打开新会话。令牌为空时立即以 OnError 结束，不打开承载面，
// 也不登记回调。
// 登记是后写者覆盖：上一个会话未结束时，它之后的事件会被丢弃。缺少令牌的启动在登记之前
// 就被拒绝，不会抢走仍在进行的会话的槽位。
func (s *Service) StartOnboarding(ctx context.Context, cfg model.SessionConfig, cb model.Callback) (model.SessionID, error) {
	id := model.SessionID(uuid.NewString())
	if strings.TrimSpace(cfg.Token) == "" {
		s.log.Warn("缺少令牌，流程未启动", "session", string(id))
		s.reg.Reject(id, cb, model.ErrMissingToken.Error())
		return id, model.NewError(model.KindConfiguration, "start onboarding", model.ErrMissingToken)
	}
	s.reg.Register(id, cb)

	cfg = s.normalize(cfg)
	base := urlbuilder.ResolveBaseURL(s.cfg.Onboarding.Environments, cfg.Environment, cfg.CustomBaseURL)
	url := urlbuilder.Build(base, cfg.Token, cfg.FlowType, cfg.HostedLinkRedirectURI)
	s.log.Debug("构造流程地址", "session", string(id), "env", string(cfg.Environment), "baseUrl", base)

	if s.factory == nil {
		return id, s.failStart(id, fmt.Errorf("no surface factory configured"))
	}
	host, err := s.factory.Open(ctx, id)
	if err != nil {
		return id, s.failStart(id, err)
	}

	c := session.NewController(session.Options{
		ID:            id,
		URL:           url,
		Token:         cfg.Token,
		FlowType:      cfg.FlowType,
		RedirectURI:   cfg.HostedLinkRedirectURI,
		InterfaceName: s.cfg.Bridge.InterfaceName,
		Platform:      s.cfg.Bridge.Platform,
		Host:          host,
		Registry:      s.reg,
		GraceDelay:    s.cfg.GraceDelay(),
		Scheduler:     s.schedule,
		OnDestroy:     s.sessions.Delete,
		Logger:        s.log,
	})
	s.sessions.Add(c)
	if err := c.Start(ctx); err != nil {
		return id, err
	}
	return id, nil
}

func (s *Service) normalize(cfg model.SessionConfig) model.SessionConfig {
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Environment == "" {
		cfg.Environment = model.Environment(s.cfg.Onboarding.DefaultEnv)
	}
	if cfg.FlowType == "" {
		cfg.FlowType = model.FlowOnboarding
	}
	cfg.HostedLinkRedirectURI = strings.TrimSpace(cfg.HostedLinkRedirectURI)
	if cfg.HostedLinkRedirectURI == "" {
		cfg.HostedLinkRedirectURI = s.cfg.HostedLink.RedirectURI
	}
	return cfg
}

func (s *Service) failStart(id model.SessionID, err error) error {
	s.log.Err(err, "打开承载面失败", "session", string(id))
	s.reg.HandleError(id, err.Error())
	s.reg.Release(id)
	return model.NewError(model.KindLoad, "open surface", err)
}

func (s *Service) get(id model.SessionID) (*session.Controller, error) {
	c, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, model.ErrSessionNotFound)
	}
	return c, nil
}

// Activate 把外部唤起（深链）交给会话
func (s *Service) Activate(id model.SessionID, a surface.Activation) error {
	c, err := s.get(id)
	if err != nil {
		return err
	}
	c.Activate(a)
	return nil
}

// ActivateCurrent 把外部唤起交给当前登记的会话，系统 URL 处理器不知道会话 ID
func (s *Service) ActivateCurrent(a surface.Activation) (model.SessionID, error) {
	id, ok := s.reg.Current()
	if !ok {
		return "", model.ErrSessionNotFound
	}
	return id, s.Activate(id, a)
}

// Resume 宿主回到前台
func (s *Service) Resume(id model.SessionID) error {
	c, err := s.get(id)
	if err != nil {
		return err
	}
	c.Resume()
	return nil
}

// Back 系统返回：先投递关闭结果，再销毁会话
func (s *Service) Back(id model.SessionID) error {
	c, err := s.get(id)
	if err != nil {
		return err
	}
	c.Back()
	c.Destroy()
	return nil
}

// Dismiss 调用方主动关闭
func (s *Service) Dismiss(id model.SessionID) error {
	c, err := s.get(id)
	if err != nil {
		return err
	}
	c.Dismiss()
	return nil
}

// Stop 销毁会话，不投递任何结果
func (s *Service) Stop(id model.SessionID) error {
	c, err := s.get(id)
	if err != nil {
		return err
	}
	c.Destroy()
	return nil
}

// Sessions 活动会话快照
func (s *Service) Sessions() []model.SessionInfo {
	list := s.sessions.List()
	out := make([]model.SessionInfo, 0, len(list))
	for _, c := range list {
		out = append(out, c.Info())
	}
	return out
}

// Close 销毁所有会话
func (s *Service) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, c := range s.sessions.List() {
			c.Destroy()
		}
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DefaultCloseTimeout 关闭服务时的默认等待时间
const DefaultCloseTimeout = 5 * time.Second
