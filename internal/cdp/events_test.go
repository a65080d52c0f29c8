package cdp

import (
	"errors"
	"testing"
)

func TestParseCall(t *testing.T) {
	tests := []struct {
		payload string
		method  string
		args    []string
		id      int64
		wantErr bool
	}{
		{`{"method":"onSuccess","args":["{\"a\":1}"]}`, "onSuccess", []string{`{"a":1}`}, 0, false},
		{`{"method":"getHostedLinkRedirectUri","args":[]}`, "getHostedLinkRedirectUri", nil, 0, false},
		{`{"method":"postMessage","args":[{"type":"SUCCESS"}]}`, "postMessage", []string{`{"type":"SUCCESS"}`}, 0, false},
		{`{"method":"openHostedLink","args":["https://x/link"],"id":3}`, "openHostedLink", []string{"https://x/link"}, 3, false},
		{`{"args":["x"]}`, "", nil, 0, true},
		{`not json`, "", nil, 0, true},
	}
	for _, tt := range tests {
		call, err := parseCall(tt.payload)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCall(%s) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			continue
		}
		if call.method != tt.method || call.id != tt.id || len(call.args) != len(tt.args) {
			t.Errorf("parseCall(%s) = %+v, want %q %v id %d", tt.payload, call, tt.method, tt.args, tt.id)
			continue
		}
		for i := range call.args {
			if call.args[i] != tt.args[i] {
				t.Errorf("parseCall(%s) args[%d] = %q, want %q", tt.payload, i, call.args[i], tt.args[i])
			}
		}
	}
}

func TestIsAppRedirect(t *testing.T) {
	tests := map[string]bool{
		"wedgehostedlink://complete?status=success": true,
		"myapp://done":                              true,
		"https://x.example/link/return":             false,
		"about:blank":                               false,
		"chrome-error://chromewebdata/":             false,
		"":                                          false,
	}
	for raw, want := range tests {
		if got := isAppRedirect(raw); got != want {
			t.Errorf("isAppRedirect(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestReasonPhrase(t *testing.T) {
	if got := reasonPhrase(404, ""); got != "Not Found" {
		t.Errorf("reasonPhrase(404) = %q", got)
	}
	if got := reasonPhrase(500, "Oops"); got != "Oops" {
		t.Errorf("reasonPhrase(500, Oops) = %q", got)
	}
}

func TestReplyValue(t *testing.T) {
	if got := replyValue("openHostedLink", "true", nil); got != true {
		t.Errorf("accepted = %v, want true", got)
	}
	if got := replyValue("openHostedLink", "false", nil); got != false {
		t.Errorf("rejected = %v, want false", got)
	}
	if got := replyValue("openHostedLink", "true", errors.New("closed")); got != false {
		t.Errorf("failed invoke = %v, want false", got)
	}
	if got := replyValue("getHostedLinkRedirectUri", "myapp://done", nil); got != "myapp://done" {
		t.Errorf("redirect = %v", got)
	}
	if got := replyValue("unknown", "", errors.New("unknown bridge method")); got != nil {
		t.Errorf("unknown = %v, want nil", got)
	}
}
