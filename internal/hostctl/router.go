// Package hostctl 本地 HTTP 入口，让操作系统的 URL 处理器或宿主外壳把深链、
// 回到前台、返回键等信号送进会话
package hostctl

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/tidwall/gjson"

	"onboardbridge/internal/logger"
	"onboardbridge/pkg/api"
	"onboardbridge/pkg/model"
)

const maxBody = 64 << 10

type handlers struct {
	svc api.Service
	log logger.Logger
}

// NewRouter 创建路由
func NewRouter(svc api.Service, l logger.Logger) *mux.Router {
	if l == nil {
		l = logger.NewNop()
	}
	h := &handlers{svc: svc, log: l}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "OK\n")
	}).Methods(http.MethodGet)
	r.HandleFunc("/sessions", h.listSessions).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", h.lifecycle(api.Service.Stop)).Methods(http.MethodDelete)
	// 系统 URL 处理器只知道回跳地址，转给当前会话
	r.HandleFunc("/activate", h.activateCurrent).Methods(http.MethodGet, http.MethodPost)

	s := r.PathPrefix("/sessions/{id}").Subrouter()
	s.HandleFunc("/activate", h.activate).Methods(http.MethodPost)
	s.HandleFunc("/resume", h.lifecycle(api.Service.Resume)).Methods(http.MethodPost)
	s.HandleFunc("/back", h.lifecycle(api.Service.Back)).Methods(http.MethodPost)
	s.HandleFunc("/dismiss", h.lifecycle(api.Service.Dismiss)).Methods(http.MethodPost)
	return r
}

func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Sessions())
}

func (h *handlers) lifecycle(fn func(api.Service, model.SessionID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := model.SessionID(mux.Vars(r)["id"])
		if err := fn(h.svc, id); err != nil {
			h.fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *handlers) activate(w http.ResponseWriter, r *http.Request) {
	a, err := readActivation(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := model.SessionID(mux.Vars(r)["id"])
	if err := h.svc.Activate(id, a); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) activateCurrent(w http.ResponseWriter, r *http.Request) {
	a, err := readActivation(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := h.svc.ActivateCurrent(a)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.log.Info("外部唤起已转交会话", "session", string(id), "uri", a.URI)
	writeJSON(w, http.StatusAccepted, map[string]string{"session": string(id)})
}

// readActivation 查询参数 uri / hostedLinkSuccess / hostedLinkCallbackUrl，
// 或同名字段的 JSON 请求体
func readActivation(r *http.Request) (api.Activation, error) {
	q := r.URL.Query()
	a := api.Activation{
		URI:               q.Get("uri"),
		HostedLinkSuccess: q.Get("hostedLinkSuccess") == "true",
		CallbackURL:       q.Get("hostedLinkCallbackUrl"),
	}
	if r.Body != nil && r.Method == http.MethodPost {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			return a, err
		}
		if body := strings.TrimSpace(string(raw)); body != "" {
			if !gjson.Valid(body) {
				return a, errors.New("request body is not json")
			}
			root := gjson.Parse(body)
			if v := root.Get("uri"); v.Exists() {
				a.URI = v.String()
			}
			if v := root.Get("hostedLinkSuccess"); v.Exists() {
				a.HostedLinkSuccess = v.Bool()
			}
			if v := root.Get("hostedLinkCallbackUrl"); v.Exists() {
				a.CallbackURL = v.String()
			}
		}
	}
	if a.URI == "" && !a.HostedLinkSuccess {
		return a, errors.New("uri or hostedLinkSuccess is required")
	}
	return a, nil
}

func (h *handlers) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	h.log.Err(err, "处理宿主信号失败")
	writeError(w, http.StatusInternalServerError, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
