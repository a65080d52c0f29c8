package urlbuilder

import (
	"testing"

	"onboardbridge/pkg/model"
)

func TestBuild(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		base     string
		token    string
		flow     model.FlowType
		redirect string
		want     string
	}{
		{
			name:     "funding with custom redirect",
			base:     "https://x.example",
			token:    "TOK",
			flow:     model.FlowFunding,
			redirect: "scheme://host",
			want:     "https://x.example?onboardingToken=TOK&type=funding&hostedLinkRedirectUri=scheme%3A%2F%2Fhost",
		},
		{
			name:     "existing query uses ampersand",
			base:     "https://x.example/start?lang=en",
			token:    "TOK",
			flow:     model.FlowOnboarding,
			redirect: "scheme://host",
			want:     "https://x.example/start?lang=en&onboardingToken=TOK&type=onboarding&hostedLinkRedirectUri=scheme%3A%2F%2Fhost",
		},
		{
			name:  "trailing slash trimmed and defaults applied",
			base:  "https://x.example/",
			token: "a b&c=d",
			want:  "https://x.example?onboardingToken=a%20b%26c%3Dd&type=onboarding&hostedLinkRedirectUri=wedgehostedlink%3A%2F%2Fcomplete",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Build(tt.base, tt.token, tt.flow, tt.redirect)
			if got != tt.want {
				t.Errorf("Build() = %q, want %q", got, tt.want)
			}
			if again := Build(tt.base, tt.token, tt.flow, tt.redirect); again != got {
				t.Errorf("Build() not deterministic: %q vs %q", again, got)
			}
		})
	}
}

func TestResolveBaseURL(t *testing.T) {
	t.Parallel()
	envs := map[string]string{
		"integration": "https://onboarding-integration.wedge-can.com",
		"sandbox":     "https://onboarding-sandbox.wedge-can.com/",
	}

	if got := ResolveBaseURL(envs, model.EnvSandbox, ""); got != "https://onboarding-sandbox.wedge-can.com" {
		t.Errorf("sandbox = %q", got)
	}
	if got := ResolveBaseURL(envs, "staging", "  "); got != "https://onboarding-integration.wedge-can.com" {
		t.Errorf("unknown env = %q", got)
	}
	if got := ResolveBaseURL(envs, model.EnvSandbox, " https://custom.example/path/ "); got != "https://custom.example/path" {
		t.Errorf("override = %q", got)
	}
}
