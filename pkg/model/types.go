package model

type SessionID string

// Environment 托管流程的部署环境
type Environment string

const (
	EnvIntegration Environment = "integration"
	EnvSandbox     Environment = "sandbox"
	EnvProduction  Environment = "production"
)

// FlowType 流程类型
type FlowType string

const (
	FlowOnboarding FlowType = "onboarding"
	FlowFunding    FlowType = "funding"
)

// DefaultHostedLinkRedirectURI 托管链接默认回跳地址（保留的 scheme + host）
const DefaultHostedLinkRedirectURI = "wedgehostedlink://complete"

// SessionConfig 调用方启动一次流程时提供的不可变配置
type SessionConfig struct {
	Token                 string      `json:"token"`
	Environment           Environment `json:"environment"`
	FlowType              FlowType    `json:"type"`
	CustomBaseURL         string      `json:"customBaseUrl,omitempty"`
	HostedLinkRedirectURI string      `json:"hostedLinkRedirectUri,omitempty"`
}

// OutcomeKind 投递给回调的事件种类
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeClose   OutcomeKind = "close"
	OutcomeError   OutcomeKind = "error"
	OutcomeEvent   OutcomeKind = "event"
	OutcomeLoad    OutcomeKind = "load"
)

// Terminal 是否为终结性结果
func (k OutcomeKind) Terminal() bool {
	return k == OutcomeSuccess || k == OutcomeClose || k == OutcomeError
}

// Outcome 一次已投递的事件
type Outcome struct {
	Session SessionID   `json:"session"`
	Kind    OutcomeKind `json:"kind"`
	Payload string      `json:"payload"`
}

// SessionInfo 活动会话的快照
type SessionInfo struct {
	ID       SessionID `json:"id"`
	URL      string    `json:"url"`
	State    string    `json:"state"`
	Pending  bool      `json:"hostedLinkPending"`
	FlowType FlowType  `json:"type"`
}
