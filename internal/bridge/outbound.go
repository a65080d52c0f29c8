package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"
)

// 网页端约定的全局名
const (
	ConfigGlobal       = "WedgeSDKConfig"
	TokenGlobal        = "__ONBOARDING_TOKEN__"
	CompletionCallback = "__hostedLinkComplete"
)

// ConfigScript 注入 window.WedgeSDKConfig
func ConfigScript(platform string, supportsHostedLink bool, redirectURI string) string {
	obj := "{}"
	obj, _ = sjson.Set(obj, "platform", platform)
	obj, _ = sjson.Set(obj, "supportsHostedLink", supportsHostedLink)
	obj, _ = sjson.Set(obj, "hostedLinkRedirectUri", redirectURI)
	return fmt.Sprintf("window.%s = %s;", ConfigGlobal, obj)
}

// TokenScript 注入一次性令牌变量
func TokenScript(token string) string {
	return fmt.Sprintf("window.%s = %s;", TokenGlobal, jsString(token))
}

// CompleteScript 调用网页端 __hostedLinkComplete；callbackURL 为空时该字段为 undefined
func CompleteScript(status, callbackURL string) string {
	arg := "{}"
	arg, _ = sjson.Set(arg, "status", status)
	if callbackURL != "" {
		arg, _ = sjson.Set(arg, "callbackUrl", callbackURL)
	}
	return fmt.Sprintf("if (window.%[1]s) { window.%[1]s(%[2]s); }", CompletionCallback, arg)
}

// Shim 在页面中定义 window[name]，把具名调用经由单一绑定函数转发到原生侧。
// 绑定调用是异步的：openHostedLink 返回 Promise，由原生侧执行 ReplyScript 兑现为
// 是否已接受；getHostedLinkRedirectUri 同步返回注册时确定的回跳地址。
func Shim(name, binding, redirectURI string) string {
	return fmt.Sprintf(`(function () {
  if (window[%[1]s]) { return; }
  var seq = 0, pending = {};
  var send = function (method, args, id) {
    var call = { method: method, args: args };
    if (id) { call.id = id; }
    window[%[2]s](JSON.stringify(call));
  };
  window[%[1]s] = {
    onSuccess: function (data) { send("onSuccess", [String(data)]); },
    onClose: function (reason) { send("onClose", [String(reason)]); },
    onExit: function (reason) { send("onExit", [String(reason)]); },
    onError: function (error) { send("onError", [String(error)]); },
    postMessage: function (json) { send("postMessage", [String(json)]); },
    openHostedLink: function (url) {
      var u = String(url || "").trim();
      if (u === "" || u.indexOf("https://") !== 0) { return Promise.resolve(false); }
      var id = ++seq;
      return new Promise(function (resolve) {
        pending[id] = resolve;
        send("openHostedLink", [u], id);
      });
    },
    getHostedLinkRedirectUri: function () {
      return (window.%[3]s && window.%[3]s.hostedLinkRedirectUri) || %[4]s;
    },
    %[5]s: function (id, value) {
      var resolve = pending[id];
      if (resolve) { delete pending[id]; resolve(value); }
    }
  };
})();`, jsString(name), jsString(binding), ConfigGlobal, jsString(redirectURI), ReplyMethod)
}

// ReplyMethod 垫片上接收原生返回值的方法名
const ReplyMethod = "__reply"

// ReplyScript 兑现垫片中编号为 id 的调用，result 按 JSON 编码，nil 为 null
func ReplyScript(name string, id int64, result any) string {
	value, err := json.Marshal(result)
	if err != nil {
		value = []byte("null")
	}
	return fmt.Sprintf("if (window[%[1]s]) { window[%[1]s].%[2]s(%[3]d, %[4]s); }", jsString(name), ReplyMethod, id, value)
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
