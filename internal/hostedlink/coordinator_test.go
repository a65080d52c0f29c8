package hostedlink

import (
	"context"
	"errors"
	"testing"
	"time"

	"onboardbridge/internal/surface"
	"onboardbridge/pkg/model"
)

type fakeBrowser struct {
	opened []string
	err    error
}

func (b *fakeBrowser) Open(_ context.Context, url string) error {
	if b.err != nil {
		return b.err
	}
	b.opened = append(b.opened, url)
	return nil
}

// manualTimers 测试用调度器，手动触发
type manualTimers struct {
	timers []*manualTimer
}

type manualTimer struct {
	delay    time.Duration
	fn       func()
	canceled bool
}

func (m *manualTimers) schedule(d time.Duration, fn func()) func() bool {
	t := &manualTimer{delay: d, fn: fn}
	m.timers = append(m.timers, t)
	return func() bool {
		was := !t.canceled
		t.canceled = true
		return was
	}
}

// fireAll 触发所有定时器，包括已取消的，模拟取消与触发的竞争
func (m *manualTimers) fireAll() {
	for _, t := range m.timers {
		t.fn()
	}
}

type completion struct {
	status Status
	url    string
}

func newTestCoordinator(redirect string) (*Coordinator, *fakeBrowser, *manualTimers, *[]completion) {
	b := &fakeBrowser{}
	timers := &manualTimers{}
	var done []completion
	c := New(Config{
		Browser:     b,
		RedirectURI: redirect,
		GraceDelay:  1500 * time.Millisecond,
		Notify:      func(s Status, u string) { done = append(done, completion{s, u}) },
		Scheduler:   timers.schedule,
	})
	return c, b, timers, &done
}

func TestOpen_Validation(t *testing.T) {
	c, b, _, _ := newTestCoordinator("")
	for _, raw := range []string{"", "   ", "http://insecure", "ftp://x"} {
		err := c.Open(context.Background(), raw)
		if err == nil {
			t.Errorf("Open(%q) expected error", raw)
		}
		if !model.IsKind(err, model.KindExternalSurface) {
			t.Errorf("Open(%q) kind = %v", raw, err)
		}
	}
	if len(b.opened) != 0 {
		t.Fatalf("opened = %v, want none", b.opened)
	}
	if c.Pending() {
		t.Fatal("Pending() after rejected open")
	}
}

func TestOpen_NonLinkPathStillOpens(t *testing.T) {
	c, b, _, _ := newTestCoordinator("")
	if err := c.Open(context.Background(), " https://example.com/other "); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(b.opened) != 1 || b.opened[0] != "https://example.com/other" {
		t.Fatalf("opened = %v", b.opened)
	}
	if !c.Pending() {
		t.Fatal("want Pending")
	}
}

func TestOpen_LaunchFailureStaysIdle(t *testing.T) {
	c, b, _, _ := newTestCoordinator("")
	b.err = errors.New("no browser")
	if err := c.Open(context.Background(), "https://x/link/1"); err == nil {
		t.Fatal("Open() expected launch error")
	}
	if c.Pending() {
		t.Fatal("Pending() after failed launch")
	}
}

func TestDeepLinkBeforeTimer(t *testing.T) {
	tests := []struct {
		uri  string
		want Status
	}{
		{"wedgehostedlink://complete", StatusSuccess},
		{"wedgehostedlink://complete?status=completed", StatusSuccess},
		{"wedgehostedlink://complete?result=cancelled", StatusCancel},
		{"myapp://done?status=canceled", StatusCancel},
		{"MYAPP://done?status=weird", StatusSuccess},
	}
	for _, tt := range tests {
		c, _, timers, done := newTestCoordinator("myapp://done")
		if err := c.Open(context.Background(), "https://x/link/1"); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		c.HandleResume()
		if !c.HandleActivation(surface.Activation{URI: tt.uri}) {
			t.Fatalf("HandleActivation(%q) = false", tt.uri)
		}
		timers.fireAll()

		if len(*done) != 1 {
			t.Fatalf("%s: completions = %v, want exactly one", tt.uri, *done)
		}
		if got := (*done)[0]; got.status != tt.want || got.url != tt.uri {
			t.Errorf("%s: completion = %+v, want status %s", tt.uri, got, tt.want)
		}
		if c.Pending() {
			t.Errorf("%s: still pending", tt.uri)
		}
	}
}

func TestResumeWithoutDeepLinkCancels(t *testing.T) {
	c, _, timers, done := newTestCoordinator("")
	if err := c.Open(context.Background(), "https://x/link/1"); err != nil {
		t.Fatal(err)
	}
	c.HandleResume()
	if len(timers.timers) != 1 || timers.timers[0].delay != 1500*time.Millisecond {
		t.Fatalf("timers = %+v", timers.timers)
	}
	if len(*done) != 0 {
		t.Fatal("completed before the grace timer fired")
	}

	timers.fireAll()
	timers.fireAll()

	if len(*done) != 1 || (*done)[0].status != StatusCancel || (*done)[0].url != "" {
		t.Fatalf("completions = %+v, want one cancel", *done)
	}
}

func TestResumeRearmsTimer(t *testing.T) {
	c, _, timers, done := newTestCoordinator("")
	_ = c.Open(context.Background(), "https://x/link/1")
	c.HandleResume()
	c.HandleResume()

	if len(timers.timers) != 2 || !timers.timers[0].canceled {
		t.Fatalf("first timer not canceled on re-arm: %+v", timers.timers)
	}
	timers.fireAll()
	if len(*done) != 1 {
		t.Fatalf("completions = %+v, want one", *done)
	}
}

func TestNonMatchingActivationIgnored(t *testing.T) {
	c, _, _, done := newTestCoordinator("myapp://done")
	_ = c.Open(context.Background(), "https://x/link/1")

	if c.HandleActivation(surface.Activation{URI: "otherapp://done"}) {
		t.Fatal("HandleActivation() matched a foreign scheme")
	}
	if c.HandleActivation(surface.Activation{URI: "myapp://elsewhere"}) {
		t.Fatal("HandleActivation() matched a foreign host")
	}
	if !c.Pending() || len(*done) != 0 {
		t.Fatal("non-matching activation resolved the sub-session")
	}
}

func TestExplicitSuccessFlag(t *testing.T) {
	c, _, _, done := newTestCoordinator("")
	_ = c.Open(context.Background(), "https://x/link/1")
	if !c.HandleActivation(surface.Activation{HostedLinkSuccess: true, CallbackURL: "https://cb"}) {
		t.Fatal("HandleActivation() = false")
	}
	if len(*done) != 1 || (*done)[0] != (completion{StatusSuccess, "https://cb"}) {
		t.Fatalf("completions = %+v", *done)
	}
}

func TestIdleIgnoresSignals(t *testing.T) {
	c, _, timers, done := newTestCoordinator("")
	c.HandleResume()
	if c.HandleActivation(surface.Activation{URI: "wedgehostedlink://complete"}) {
		t.Fatal("idle coordinator accepted activation")
	}
	if len(timers.timers) != 0 || len(*done) != 0 {
		t.Fatal("idle coordinator armed a timer or completed")
	}
}

func TestShutdownSuppressesTimer(t *testing.T) {
	c, _, timers, done := newTestCoordinator("")
	_ = c.Open(context.Background(), "https://x/link/1")
	c.HandleResume()
	c.Shutdown()
	timers.fireAll()
	if len(*done) != 0 {
		t.Fatalf("completions after Shutdown = %+v", *done)
	}
}

func TestRealTimerUsesPost(t *testing.T) {
	posted := make(chan func(), 1)
	var done []completion
	c := New(Config{
		Browser:    &fakeBrowser{},
		GraceDelay: 10 * time.Millisecond,
		Notify:     func(s Status, u string) { done = append(done, completion{s, u}) },
		Post: func(fn func()) bool {
			posted <- fn
			return true
		},
	})
	_ = c.Open(context.Background(), "https://x/link/1")
	c.HandleResume()

	select {
	case fn := <-posted:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("grace timer never fired")
	}
	if len(done) != 1 || done[0].status != StatusCancel {
		t.Fatalf("completions = %+v", done)
	}
}
