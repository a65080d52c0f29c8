package bridge

import (
	"errors"
	"testing"

	"onboardbridge/pkg/model"
)

func TestParseEnvelope(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		kind Kind
		tag  string
		data string
		url  string
	}{
		{"type success object data", `{"type":"SUCCESS","data":{"a":1}}`, KindSuccess, "SUCCESS", `{"a":1}`, ""},
		{"event key wins", `{"event":"onEvent","type":"SUCCESS","data":"x"}`, KindEvent, "onEvent", "x", ""},
		{"null event falls back to type", `{"event":null,"type":"EXIT","data":"bye"}`, KindClose, "EXIT", "bye", ""},
		{"missing data uses envelope", `{ "type": "onClose" }`, KindClose, "onClose", `{"type":"onClose"}`, ""},
		{"array data", `{"type":"onError","data":[1, 2]}`, KindError, "onError", `[1,2]`, ""},
		{"number data", `{"type":"onLoad","data":42}`, KindLoad, "onLoad", "42", ""},
		{"open hosted link", `{"type":"OPEN_HOSTED_LINK","url":"https://x/link/y"}`, KindOpenHostedLink, "OPEN_HOSTED_LINK", `{"type":"OPEN_HOSTED_LINK","url":"https://x/link/y"}`, "https://x/link/y"},
		{"legacy exit", `{"event":"onExit","data":"r"}`, KindClose, "onExit", "r", ""},
		{"unknown tag", `{"type":"PING"}`, KindUnknown, "PING", `{"type":"PING"}`, ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env, err := ParseEnvelope(tt.raw)
			if err != nil {
				t.Fatalf("ParseEnvelope() error = %v", err)
			}
			if env.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", env.Kind, tt.kind)
			}
			if env.Tag != tt.tag {
				t.Errorf("Tag = %q, want %q", env.Tag, tt.tag)
			}
			if env.Data != tt.data {
				t.Errorf("Data = %q, want %q", env.Data, tt.data)
			}
			if env.URL != tt.url {
				t.Errorf("URL = %q, want %q", env.URL, tt.url)
			}
		})
	}
}

func TestParseEnvelope_Invalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not json", `{"type":`, `["SUCCESS"]`, `"SUCCESS"`} {
		_, err := ParseEnvelope(raw)
		if !errors.Is(err, model.ErrInvalidMessage) {
			t.Errorf("ParseEnvelope(%q) error = %v, want ErrInvalidMessage", raw, err)
		}
		if !model.IsKind(err, model.KindProtocol) {
			t.Errorf("ParseEnvelope(%q) kind is not protocol", raw)
		}
	}
}

func TestParseLegacyURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		kind    Kind
		payload string
		ok      bool
	}{
		{"sdk://success?data=%7B%22a%22%3A1%7D", KindSuccess, `{"a":1}`, true},
		{"sdk://exit", KindClose, "", true},
		{"sdk://error?message=boom", KindError, "boom", true},
		{"sdk://unknown", KindUnknown, "", false},
		{"https://x.example", KindUnknown, "", false},
	}
	for _, tt := range tests {
		kind, payload, ok := ParseLegacyURL(tt.raw)
		if kind != tt.kind || payload != tt.payload || ok != tt.ok {
			t.Errorf("ParseLegacyURL(%q) = %v, %q, %v; want %v, %q, %v", tt.raw, kind, payload, ok, tt.kind, tt.payload, tt.ok)
		}
	}
}
