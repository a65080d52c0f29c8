package cdp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/mafredri/cdp/rpcc"
	"github.com/tidwall/gjson"

	"onboardbridge/internal/bridge"
	"onboardbridge/internal/surface"
)

// 网络层失败没有数字错误码时使用
const codeUnknown = -1

type eventStreams struct {
	frameNav   page.FrameNavigatedClient
	navRequest page.FrameRequestedNavigationClient
	loaded     page.LoadEventFiredClient
	reqSent    network.RequestWillBeSentClient
	response   network.ResponseReceivedClient
	failed     network.LoadingFailedClient
	finished   network.LoadingFinishedClient
}

func (s *eventStreams) all() []rpcc.Stream {
	return []rpcc.Stream{s.frameNav, s.navRequest, s.loaded, s.reqSent, s.response, s.failed, s.finished}
}

func (s *eventStreams) close() {
	for _, st := range s.all() {
		if st != nil {
			st.Close()
		}
	}
}

// openEventStreams 订阅页面与网络事件，并保证它们按到达顺序被消费
func (p *Page) openEventStreams() (*eventStreams, error) {
	s := &eventStreams{}
	var err error
	if s.frameNav, err = p.client.Page.FrameNavigated(p.ctx); err != nil {
		return nil, fmt.Errorf("subscribe frame navigated: %w", err)
	}
	if s.navRequest, err = p.client.Page.FrameRequestedNavigation(p.ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("subscribe navigation request: %w", err)
	}
	if s.loaded, err = p.client.Page.LoadEventFired(p.ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("subscribe load event: %w", err)
	}
	if s.reqSent, err = p.client.Network.RequestWillBeSent(p.ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("subscribe request: %w", err)
	}
	if s.response, err = p.client.Network.ResponseReceived(p.ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("subscribe response: %w", err)
	}
	if s.failed, err = p.client.Network.LoadingFailed(p.ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("subscribe loading failed: %w", err)
	}
	if s.finished, err = p.client.Network.LoadingFinished(p.ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("subscribe loading finished: %w", err)
	}
	if err := rpcc.Sync(s.all()...); err != nil {
		s.close()
		return nil, fmt.Errorf("sync event streams: %w", err)
	}
	return s, nil
}

// consume 单 goroutine 顺序处理页面与网络事件，直到页面关闭
func (p *Page) consume(s *eventStreams, l surface.Listener) {
	defer s.close()
	for {
		var err error
		select {
		case <-p.ctx.Done():
			return
		case <-s.frameNav.Ready():
			var ev *page.FrameNavigatedReply
			if ev, err = s.frameNav.Recv(); err == nil {
				p.onFrameNavigated(ev)
			}
		case <-s.navRequest.Ready():
			var ev *page.FrameRequestedNavigationReply
			if ev, err = s.navRequest.Recv(); err == nil {
				p.onNavigationRequested(ev, l)
			}
		case <-s.loaded.Ready():
			if _, err = s.loaded.Recv(); err == nil {
				p.mu.Lock()
				u := p.mainURL
				p.mu.Unlock()
				l.PageFinished(u)
			}
		case <-s.reqSent.Ready():
			var ev *network.RequestWillBeSentReply
			if ev, err = s.reqSent.Recv(); err == nil {
				p.onRequest(ev)
			}
		case <-s.response.Ready():
			var ev *network.ResponseReceivedReply
			if ev, err = s.response.Recv(); err == nil {
				p.onResponse(ev, l)
			}
		case <-s.failed.Ready():
			var ev *network.LoadingFailedReply
			if ev, err = s.failed.Recv(); err == nil {
				p.onFailed(ev, l)
			}
		case <-s.finished.Ready():
			var ev *network.LoadingFinishedReply
			if ev, err = s.finished.Recv(); err == nil {
				p.mu.Lock()
				delete(p.requests, ev.RequestID)
				p.mu.Unlock()
			}
		}
		if err != nil {
			if !errors.Is(err, rpcc.ErrConnClosing) {
				p.log.Debug("页面事件流结束", "error", err)
			}
			return
		}
	}
}

func (p *Page) isMain(frameID *page.FrameID, typ *network.ResourceType) bool {
	if typ == nil || *typ != network.ResourceTypeDocument || frameID == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return *frameID == p.mainFrame
}

func (p *Page) onFrameNavigated(ev *page.FrameNavigatedReply) {
	if ev.Frame.ParentID != nil {
		return
	}
	p.mu.Lock()
	p.mainFrame = ev.Frame.ID
	p.mainURL = ev.Frame.URL
	p.mu.Unlock()
}

func (p *Page) onNavigationRequested(ev *page.FrameRequestedNavigationReply, l surface.Listener) {
	p.mu.Lock()
	main := ev.FrameID == p.mainFrame
	p.mu.Unlock()
	if !main || !l.Navigating(ev.URL) {
		return
	}
	if err := p.client.Page.StopLoading(p.ctx); err != nil {
		p.log.Debug("拦截导航后停止加载失败", "error", err)
	}
}

func (p *Page) onRequest(ev *network.RequestWillBeSentReply) {
	typ := ev.Type
	main := p.isMain(ev.FrameID, &typ)
	p.mu.Lock()
	p.requests[ev.RequestID] = request{url: ev.Request.URL, main: main}
	p.mu.Unlock()
}

func (p *Page) onResponse(ev *network.ResponseReceivedReply, l surface.Listener) {
	if ev.Response.Status < http.StatusBadRequest {
		return
	}
	typ := ev.Type
	l.HTTPFailed(surface.HTTPError{
		URL:       ev.Response.URL,
		Status:    ev.Response.Status,
		Reason:    reasonPhrase(ev.Response.Status, ev.Response.StatusText),
		MainFrame: p.isMain(ev.FrameID, &typ),
	})
}

func (p *Page) onFailed(ev *network.LoadingFailedReply, l surface.Listener) {
	p.mu.Lock()
	req, ok := p.requests[ev.RequestID]
	delete(p.requests, ev.RequestID)
	p.mu.Unlock()
	if ev.Canceled != nil && *ev.Canceled {
		// 被拦截的导航或页面主动取消
		return
	}
	if !ok {
		req = request{}
	}
	l.LoadFailed(surface.LoadError{
		URL:         req.url,
		Code:        codeUnknown,
		Description: ev.ErrorText,
		MainFrame:   req.main,
	})
}

func reasonPhrase(status int, text string) string {
	if text != "" {
		return text
	}
	return http.StatusText(status)
}

// consumeCalls 把绑定函数的调用交给桥接通道，带编号的调用把返回值回送给页面
func (p *Page) consumeCalls(calls runtime.BindingCalledClient, inv surface.Invoker) {
	defer calls.Close()
	for {
		ev, err := calls.Recv()
		if err != nil {
			return
		}
		if ev.Name != p.binding {
			continue
		}
		call, err := parseCall(ev.Payload)
		if err != nil {
			p.log.Warn("无法解析绑定调用", "error", err)
			// 仍然交给通道，由其按格式错误处理
			call = bindingCall{method: "postMessage", args: []string{ev.Payload}}
		}
		result, err := inv.Invoke(call.method, call.args)
		if err != nil {
			p.log.Warn("绑定调用失败", "method", call.method, "error", err)
		}
		if call.id > 0 {
			p.reply(call, result, err)
		}
	}
}

func (p *Page) reply(call bindingCall, result string, err error) {
	p.mu.Lock()
	iface := p.iface
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(p.ctx, closeTimeout)
	defer cancel()
	if err := p.Evaluate(ctx, bridge.ReplyScript(iface, call.id, replyValue(call.method, result, err))); err != nil {
		p.log.Debug("回送绑定调用结果失败", "method", call.method, "error", err)
	}
}

// replyValue 原生返回值在页面侧的形态
func replyValue(method, result string, err error) any {
	switch method {
	case "openHostedLink":
		// 拒绝或启动失败都兑现为 false
		return err == nil && result == "true"
	default:
		if err != nil {
			return nil
		}
		return result
	}
}

type bindingCall struct {
	method string
	args   []string
	id     int64
}

// parseCall 解析页面垫片发来的 {"method": "...", "args": [...], "id": n}
func parseCall(payload string) (bindingCall, error) {
	if !gjson.Valid(payload) {
		return bindingCall{}, errors.New("binding payload is not json")
	}
	root := gjson.Parse(payload)
	method := root.Get("method")
	if method.Type != gjson.String || method.Str == "" {
		return bindingCall{}, errors.New("binding payload has no method")
	}
	call := bindingCall{method: method.Str, id: root.Get("id").Int()}
	for _, a := range root.Get("args").Array() {
		if a.Type == gjson.String {
			call.args = append(call.args, a.Str)
		} else {
			call.args = append(call.args, a.Raw)
		}
	}
	return call, nil
}
