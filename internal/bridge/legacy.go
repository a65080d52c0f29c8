package bridge

import (
	"net/url"
	"strings"
)

// 早期版本通过 sdk:// 导航传递结果
const legacyScheme = "sdk://"

// ParseLegacyURL 解析 sdk://success?data=…、sdk://exit、sdk://error?message=…
func ParseLegacyURL(raw string) (Kind, string, bool) {
	if !strings.HasPrefix(raw, legacyScheme) {
		return KindUnknown, "", false
	}
	switch {
	case strings.HasPrefix(raw, "sdk://success"):
		return KindSuccess, legacyParam(raw, "sdk://success?data="), true
	case strings.HasPrefix(raw, "sdk://exit"):
		return KindClose, "", true
	case strings.HasPrefix(raw, "sdk://error"):
		return KindError, legacyParam(raw, "sdk://error?message="), true
	}
	return KindUnknown, "", false
}

func legacyParam(raw, prefix string) string {
	v, ok := strings.CutPrefix(raw, prefix)
	if !ok {
		return ""
	}
	if dec, err := url.QueryUnescape(v); err == nil {
		return dec
	}
	return v
}
