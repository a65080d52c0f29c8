package bridge

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"onboardbridge/pkg/model"
)

// Kind 归一化后的入站消息类型
type Kind int

const (
	KindUnknown Kind = iota
	KindOpenHostedLink
	KindSuccess
	KindClose
	KindError
	KindEvent
	KindLoad
)

func (k Kind) String() string {
	switch k {
	case KindOpenHostedLink:
		return "open_hosted_link"
	case KindSuccess:
		return "success"
	case KindClose:
		return "close"
	case KindError:
		return "error"
	case KindEvent:
		return "event"
	case KindLoad:
		return "load"
	default:
		return "unknown"
	}
}

// Terminal 是否为终结性消息
func (k Kind) Terminal() bool {
	return k == KindSuccess || k == KindClose || k == KindError
}

// 历史上 event 与 type 两个字段、多种取值都在使用
var tagKinds = map[string]Kind{
	"OPEN_HOSTED_LINK": KindOpenHostedLink,
	"SUCCESS":          KindSuccess,
	"onSuccess":        KindSuccess,
	"EXIT":             KindClose,
	"onClose":          KindClose,
	"onExit":           KindClose,
	"ERROR":            KindError,
	"onError":          KindError,
	"onEvent":          KindEvent,
	"onLoad":           KindLoad,
}

// Envelope 入站 JSON 信封 {event|type, url?, data?}
type Envelope struct {
	Tag  string
	Kind Kind
	URL  string
	// Data 为 data 字段：字符串取原值，其他取紧凑 JSON；缺省时为整个信封
	Data string
}

// ParseEnvelope 解析并归一化入站信封，非 JSON 对象返回 ErrInvalidMessage
func ParseEnvelope(raw string) (Envelope, error) {
	if !gjson.Valid(raw) {
		return Envelope{}, model.NewError(model.KindProtocol, "parse envelope", model.ErrInvalidMessage)
	}
	root := gjson.Parse(raw)
	if !root.IsObject() {
		return Envelope{}, model.NewError(model.KindProtocol, "parse envelope", model.ErrInvalidMessage)
	}

	tag := optString(root, "event", "")
	if tag == "" && !present(root.Get("event")) {
		tag = optString(root, "type", "")
	}

	env := Envelope{
		Tag:  tag,
		Kind: tagKinds[tag],
		URL:  optString(root, "url", ""),
	}

	data := root.Get("data")
	switch {
	case !data.Exists():
		env.Data = compact(raw)
	case data.Type == gjson.String:
		env.Data = data.Str
	default:
		env.Data = compact(data.Raw)
	}
	return env, nil
}

func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}

func optString(root gjson.Result, key, fallback string) string {
	r := root.Get(key)
	if !present(r) {
		return fallback
	}
	if r.Type == gjson.String {
		return r.Str
	}
	return r.Raw
}

func compact(raw string) string {
	return string(pretty.Ugly([]byte(raw)))
}
