// Package api serves leak reports and tracker metrics over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guileen/dbtrack/leak"
	"github.com/guileen/dbtrack/logger"
	"github.com/guileen/dbtrack/tracker"
)

type DebugHandler struct {
	registrar *tracker.Registrar
	detector  *leak.Detector
	gatherer  prometheus.Gatherer
}

// NewDebugHandler creates the handler. gatherer may be nil, in which case
// /metrics is not served.
func NewDebugHandler(registrar *tracker.Registrar, detector *leak.Detector, gatherer prometheus.Gatherer) *DebugHandler {
	return &DebugHandler{
		registrar: registrar,
		detector:  detector,
		gatherer:  gatherer,
	}
}

func (h *DebugHandler) RegisterRoutes(r chi.Router) {
	r.Get("/debug/leaks", h.Leaks)
	r.Get("/debug/roots", h.Roots)
	r.Delete("/debug/roots/{name}", h.DeregisterRoot)
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// RegisterPprof mounts the runtime profiles under /debug/pprof/. Named
// profiles such as allocs and mutex are served by the index handler.
func RegisterPprof(r chi.Router) {
	r.HandleFunc("/debug/pprof/*", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

// NewRouter returns a router serving h.
func NewRouter(h *DebugHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type RootInfo struct {
	Name          string               `json:"name"`
	OpenResources int                  `json:"open_resources"`
	ResourceStats map[tracker.Kind]int `json:"resource_stats"`
}

type RootsResponse struct {
	Roots []RootInfo `json:"roots"`
}

// Leaks serves a leak report. The threshold query parameter, a Go duration,
// overrides the detector's threshold for this request.
func (h *DebugHandler) Leaks(w http.ResponseWriter, r *http.Request) {
	threshold := h.detector.LeakThreshold()
	if s := r.URL.Query().Get("threshold"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid threshold " + s})
			return
		}
		threshold = d
	}
	writeJSON(w, http.StatusOK, h.detector.Check(threshold))
}

// Roots lists every registered root with its open resources by kind.
func (h *DebugHandler) Roots(w http.ResponseWriter, r *http.Request) {
	byRoot := make(map[string]*RootInfo)
	for _, root := range h.registrar.Roots() {
		byRoot[root.Name()] = &RootInfo{Name: root.Name(), ResourceStats: make(map[tracker.Kind]int)}
	}
	report := h.detector.Check(0)
	for _, res := range report.Resources {
		if info, ok := byRoot[res.Root]; ok {
			info.OpenResources++
			info.ResourceStats[res.ResourceType]++
		}
	}

	resp := RootsResponse{Roots: make([]RootInfo, 0, len(byRoot))}
	for _, info := range byRoot {
		resp.Roots = append(resp.Roots, *info)
	}
	sort.Slice(resp.Roots, func(i, j int) bool { return resp.Roots[i].Name < resp.Roots[j].Name })
	writeJSON(w, http.StatusOK, resp)
}

// DeregisterRoot forcibly deregisters a root, closing everything it tracks.
func (h *DebugHandler) DeregisterRoot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !h.registrar.Deregister(name) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "root not registered: " + name})
		return
	}
	logger.InfoContext(r.Context(), "root deregistered over http",
		logger.String("root", name), logger.String("request_id", middleware.GetReqID(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}
