package hostctl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"onboardbridge/pkg/api"
	"onboardbridge/pkg/model"
)

type fakeService struct {
	activations []api.Activation
	calls       []string
	current     model.SessionID
}

func (f *fakeService) StartOnboarding(context.Context, model.SessionConfig, model.Callback) (model.SessionID, error) {
	return "", nil
}

func (f *fakeService) Activate(id model.SessionID, a api.Activation) error {
	if id != "s1" {
		return model.ErrSessionNotFound
	}
	f.activations = append(f.activations, a)
	return nil
}

func (f *fakeService) ActivateCurrent(a api.Activation) (model.SessionID, error) {
	if f.current == "" {
		return "", model.ErrSessionNotFound
	}
	f.activations = append(f.activations, a)
	return f.current, nil
}

func (f *fakeService) record(name string, id model.SessionID) error {
	if id != "s1" {
		return model.ErrSessionNotFound
	}
	f.calls = append(f.calls, name)
	return nil
}

func (f *fakeService) Resume(id model.SessionID) error { return f.record("resume", id) }
func (f *fakeService) Back(id model.SessionID) error { return f.record("back", id) }
func (f *fakeService) Dismiss(id model.SessionID) error { return f.record("dismiss", id) }
func (f *fakeService) Stop(id model.SessionID) error { return f.record("stop", id) }
func (f *fakeService) Close(context.Context) error { return nil }

func (f *fakeService) Sessions() []model.SessionInfo {
	return []model.SessionInfo{{ID: "s1", State: "active", Pending: true}}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLifecycleRoutes(t *testing.T) {
	svc := &fakeService{}
	r := NewRouter(svc, nil)

	for _, path := range []string{"/sessions/s1/resume", "/sessions/s1/back", "/sessions/s1/dismiss"} {
		if rec := do(t, r, http.MethodPost, path, ""); rec.Code != http.StatusNoContent {
			t.Errorf("POST %s = %d, want 204", path, rec.Code)
		}
	}
	if rec := do(t, r, http.MethodDelete, "/sessions/s1", ""); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE /sessions/s1 = %d, want 204", rec.Code)
	}
	want := []string{"resume", "back", "dismiss", "stop"}
	if strings.Join(svc.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", svc.calls, want)
	}

	if rec := do(t, r, http.MethodPost, "/sessions/nope/back", ""); rec.Code != http.StatusNotFound {
		t.Errorf("POST unknown session = %d, want 404", rec.Code)
	}
}

func TestActivate(t *testing.T) {
	svc := &fakeService{}
	r := NewRouter(svc, nil)

	rec := do(t, r, http.MethodPost, "/sessions/s1/activate?uri=myapp%3A%2F%2Fdone%3Fstatus%3Dcancel", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("activate = %d, want 202", rec.Code)
	}
	rec = do(t, r, http.MethodPost, "/sessions/s1/activate", `{"hostedLinkSuccess":true,"hostedLinkCallbackUrl":"https://x/cb"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("activate json = %d, want 202", rec.Code)
	}
	if len(svc.activations) != 2 {
		t.Fatalf("activations = %v", svc.activations)
	}
	if svc.activations[0].URI != "myapp://done?status=cancel" {
		t.Errorf("URI = %q", svc.activations[0].URI)
	}
	if !svc.activations[1].HostedLinkSuccess || svc.activations[1].CallbackURL != "https://x/cb" {
		t.Errorf("activation = %+v", svc.activations[1])
	}

	if rec := do(t, r, http.MethodPost, "/sessions/s1/activate", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("empty activate = %d, want 400", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/sessions/s1/activate", "{bad"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json activate = %d, want 400", rec.Code)
	}
}

func TestActivateCurrent(t *testing.T) {
	svc := &fakeService{}
	r := NewRouter(svc, nil)

	if rec := do(t, r, http.MethodGet, "/activate?uri=wedgehostedlink%3A%2F%2Fcomplete", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("activate without session = %d, want 404", rec.Code)
	}

	svc.current = "s1"
	rec := do(t, r, http.MethodGet, "/activate?uri=wedgehostedlink%3A%2F%2Fcomplete", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("activate = %d, want 202", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body error = %v", err)
	}
	if body["session"] != "s1" {
		t.Errorf("session = %q", body["session"])
	}
}

func TestListSessions(t *testing.T) {
	r := NewRouter(&fakeService{}, nil)
	rec := do(t, r, http.MethodGet, "/sessions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /sessions = %d", rec.Code)
	}
	var got []model.SessionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" || !got[0].Pending {
		t.Errorf("sessions = %+v", got)
	}

	if rec := do(t, r, http.MethodGet, "/health", ""); rec.Code != http.StatusOK || rec.Body.String() != "OK\n" {
		t.Errorf("GET /health = %d %q", rec.Code, rec.Body.String())
	}
}
