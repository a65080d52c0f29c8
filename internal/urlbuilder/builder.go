// Package urlbuilder 根据环境、令牌与流程类型构造托管流程地址
package urlbuilder

import (
	"net/url"
	"strings"

	"onboardbridge/pkg/model"
)

// ResolveBaseURL 选择生效的基础地址：非空的自定义地址优先，其次为环境映射，
// 未知环境回落到 integration
func ResolveBaseURL(envs map[string]string, env model.Environment, customBaseURL string) string {
	base := strings.TrimSpace(customBaseURL)
	if base == "" {
		var ok bool
		base, ok = envs[string(env)]
		if !ok {
			base = envs[string(model.EnvIntegration)]
		}
	}
	return strings.TrimRight(strings.TrimSpace(base), "/")
}

// Build 拼接请求地址，参数顺序固定：onboardingToken、type、hostedLinkRedirectUri。
// type 总是携带，即使为默认的 onboarding
func Build(baseURL, token string, flowType model.FlowType, redirectURI string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if flowType == "" {
		flowType = model.FlowOnboarding
	}
	if strings.TrimSpace(redirectURI) == "" {
		redirectURI = model.DefaultHostedLinkRedirectURI
	}

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString(sep)
	b.WriteString("onboardingToken=")
	b.WriteString(Encode(token))
	b.WriteString("&type=")
	b.WriteString(Encode(string(flowType)))
	b.WriteString("&hostedLinkRedirectUri=")
	b.WriteString(Encode(strings.TrimSpace(redirectURI)))
	return b.String()
}

// Encode 按 URI 组件规则编码，空格编码为 %20
func Encode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
