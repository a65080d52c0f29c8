package api

import (
	"context"

	"onboardbridge/internal/service"
	"onboardbridge/internal/surface"
	"onboardbridge/pkg/model"
)

// Activation 外部唤起事件
type Activation = surface.Activation

// Service 服务接口
type Service interface {
	// StartOnboarding 启动一次托管流程，结果通过 cb 回调
	StartOnboarding(ctx context.Context, cfg model.SessionConfig, cb model.Callback) (model.SessionID, error)

	// Activate 投递外部唤起（深链回跳）
	Activate(id model.SessionID, a Activation) error

	// ActivateCurrent 投递外部唤起到当前登记的会话
	ActivateCurrent(a Activation) (model.SessionID, error)

	// Resume 宿主回到前台
	Resume(id model.SessionID) error

	// Back 系统返回
	Back(id model.SessionID) error

	// Dismiss 调用方主动关闭
	Dismiss(id model.SessionID) error

	// Stop 销毁会话
	Stop(id model.SessionID) error

	// Sessions 列出活动会话
	Sessions() []model.SessionInfo

	// Close 销毁所有会话
	Close(ctx context.Context) error
}

// Options 服务构造参数
type Options = service.Options

// NewService 创建并返回服务接口实现
func NewService(opts Options) Service {
	return service.New(opts)
}
