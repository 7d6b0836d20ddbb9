package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/signadot/scenesync/render"
	"github.com/signadot/scenesync/scene"
	"github.com/signadot/scenesync/system/syncd/api"
	"golang.org/x/sync/errgroup"
)

// RenderFunc turns an accepted scene into the response artifact.
type RenderFunc func(ctx context.Context, c *scene.Canvas) ([]byte, error)

// Server represents the sync server.
type Server struct {
	Spec Spec

	// Store holds the per client state.
	Store *Store

	metrics     *metrics
	mux         *http.ServeMux
	contentType string
}

// New creates a new Server instance.
func New(spec *Spec) *Server {
	if spec.Log == nil {
		spec.Log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slogLevel(),
		}))
	}
	if spec.Config == nil {
		spec.Config = DefaultConfig()
	}
	if spec.Metrics == nil {
		spec.Metrics = prometheus.NewRegistry()
	}
	contentType := "application/octet-stream"
	if spec.Render == nil {
		spec.Render = render.PNG
		contentType = "image/png"
	}

	s := &Server{
		Spec:        *spec,
		Store:       NewStore(spec.Config, spec.Registry, spec.Now),
		contentType: contentType,
	}
	s.metrics = newMetrics(spec.Metrics, func() float64 { return float64(s.Store.Len()) })
	s.Store.OnEvict(func(id, reason string) {
		s.metrics.evictions.WithLabelValues(reason).Inc()
		s.Spec.Log.Debug("evicted client", "client", id, "reason", reason)
	})

	s.mux = http.NewServeMux()
	s.mux.HandleFunc(api.RenderPath, s.handleRender)
	s.mux.HandleFunc(api.HealthPath, s.handleHealth)
	if spec.Config.Metrics {
		s.mux.Handle(api.MetricsPath, promhttp.HandlerFor(spec.Metrics, promhttp.HandlerOpts{}))
	}
	return s
}

func slogLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Spec.Config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves HTTP on ln and runs the client expiry janitor until ctx is
// done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Store.RunJanitor(gctx, s.Spec.Config.sweepInterval())
	})
	g.Go(func() error {
		s.Spec.Log.Info("listening", "addr", ln.Addr().String())
		if err := hs.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(sctx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "clients": s.Store.Len()})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	reqID := ulid.Make().String()
	w.Header().Set("X-Request-Id", reqID)
	log := s.Spec.Log.With("request", reqID)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, api.Errorf(api.ErrCodeInvalidPayload, "method %s not allowed", r.Method))
		return
	}
	p, err := api.ParsePayload(r, s.Spec.Config.MaxBodyBytes)
	if err != nil {
		s.metrics.requests.WithLabelValues("unknown", api.ErrCodeInvalidPayload).Inc()
		log.Warn("invalid payload", "error", err)
		writeError(w, http.StatusBadRequest, toAPIError(err))
		return
	}
	typ := string(p.Type)
	log = log.With("client", p.ClientID, "type", typ)
	start := time.Now()
	defer func() {
		s.metrics.duration.WithLabelValues(typ).Observe(time.Since(start).Seconds())
	}()
	s.metrics.payloadBytes.WithLabelValues(typ).Observe(float64(len(p.Data)))

	res, err := s.Store.Handle(r.Context(), p)
	if err != nil {
		ae := toAPIError(err)
		status := api.StatusCode(ae)
		s.metrics.requests.WithLabelValues(typ, ae.Code).Inc()
		if status >= 500 {
			log.Error("payload failed", "error", err)
		} else {
			log.Info("payload rejected", "status", status, "error", err)
		}
		writeError(w, status, ae)
		return
	}

	out, err := s.Spec.Render(r.Context(), res.Canvas)
	if err != nil {
		s.metrics.requests.WithLabelValues(typ, api.ErrCodeRenderFailed).Inc()
		log.Error("render failed", "error", err)
		writeError(w, http.StatusInternalServerError, api.NewError(api.ErrCodeRenderFailed, err.Error()))
		return
	}
	s.metrics.requests.WithLabelValues(typ, "ok").Inc()
	log.Info("rendered", "payloadBytes", len(p.Data), "snapshotBytes", len(res.Snapshot), "artifactBytes", len(out), "duration", time.Since(start))

	w.Header().Set("Content-Type", s.contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func toAPIError(err error) *api.Error {
	var ae *api.Error
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, api.ErrPatchFailed):
		return api.NewError(api.ErrCodePatchFailed, err.Error())
	}
	return api.NewError(api.ErrCodeInternal, err.Error())
}

func writeError(w http.ResponseWriter, status int, e *api.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(e)
}
