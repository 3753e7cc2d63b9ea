package display

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// method 限制请求方法
func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != m {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterPPGRoutes 注册测量相关路由
func (r *Router) RegisterPPGRoutes(h *Handler) {
	r.Handle("/api/v1/ppg/start", method(http.MethodPost, h.Start))
	r.Handle("/api/v1/ppg/stop", method(http.MethodPost, h.Stop))
	r.Handle("/api/v1/ppg/reset", method(http.MethodPost, h.Reset))
	r.Handle("/api/v1/ppg/status", method(http.MethodGet, h.Status))
	r.Handle("/api/v1/ppg/chart", method(http.MethodGet, h.Chart))
	r.Handle("/api/v1/ppg/export", method(http.MethodGet, h.Export))
	r.Handle("/api/v1/ppg/history", method(http.MethodGet, h.History))
}

// RegisterHub 注册 websocket
func (r *Router) RegisterHub(hub *Hub) {
	r.Handle("/ws", hub.ServeWS)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
