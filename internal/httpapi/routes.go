package httpapi

import (
	"encoding/json"
	"net/http"
	"runtime"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"novarelay.dev/internal/context"
	"novarelay.dev/internal/fanout"
	"novarelay.dev/internal/log"
)

func (s *Server) routes() {
	s.mux.Get("/health", s.handleHealth)
	s.mux.Get("/status", s.handleStatus)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.Get("/api/metrics/summary", s.handleMetricsSummary)
	s.mux.Get("/api/metrics/memory", s.handleMetricsMemory)

	s.mux.Get("/api/relays", s.requireToken(s.handleRelaysList))
	s.mux.Post("/api/relays/add", s.requireToken(s.handleRelaysAdd))
	s.mux.Delete("/api/relays/remove", s.requireToken(s.handleRelaysRemove))

	s.mux.Get("/ws", s.handleWS)
	s.mux.Get("/fanout", s.requireToken(s.handleFanout))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	admitted, duplicates := s.deps.Store.Stats()
	writeJSON(w, map[string]any{
		"dedup": map[string]int64{
			"admitted":   admitted,
			"duplicates": duplicates,
		},
		"router_counters":    s.deps.Router.Counters(),
		"invalid_signatures": s.deps.Pool.InvalidSignatures(),
		"relays":             s.deps.Pool.List(),
		"fanout_sinks":       s.deps.Bus.LagStats(),
	})
}

func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	admitted, duplicates := s.deps.Store.Stats()
	writeJSON(w, map[string]any{
		"dedup_admitted":   admitted,
		"dedup_duplicates": duplicates,
		"router":           s.deps.Router.Counters(),
	})
}

func (s *Server) handleMetricsMemory(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	writeJSON(w, map[string]any{
		"alloc_bytes":       m.Alloc,
		"heap_alloc_bytes":  m.HeapAlloc,
		"heap_in_use_bytes": m.HeapInuse,
		"sys_bytes":         m.Sys,
		"num_goroutine":     runtime.NumGoroutine(),
	})
}

func (s *Server) handleRelaysList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.deps.Pool.List())
}

func (s *Server) handleRelaysAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" {
		http.Error(w, "invalid body, expected {\"url\": \"...\"}", http.StatusBadRequest)
		return
	}
	if err := s.deps.Pool.Add(body.URL); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRelaysRemove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" {
		http.Error(w, "invalid body, expected {\"url\": \"...\"}", http.StatusBadRequest)
		return
	}
	if err := s.deps.Pool.Remove(body.URL); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleWS upgrades to the public post-dedup event stream.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.D.F("httpapi: /ws accept: %v", err)
		return
	}
	sink := fanout.NewStreamSink(s.ctx, conn)
	s.deps.Bus.Attach(sink, 256)
	defer s.deps.Bus.Detach(sink.ID())
	s.drainUntilClosed(r.Context(), conn)
}

// handleFanout upgrades to the encrypted per-follower stream. The
// subscriber is identified by the "subscriber" query parameter, which
// must already be registered with the subscription registry.
func (s *Server) handleFanout(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		http.Error(w, "fanout registry not configured", http.StatusServiceUnavailable)
		return
	}
	subID := r.URL.Query().Get("subscriber")
	sub, ok := s.deps.Registry.Subscriber(subID)
	if !ok {
		http.Error(w, "unknown subscriber", http.StatusNotFound)
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.D.F("httpapi: /fanout accept: %v", err)
		return
	}
	sink, err := fanout.NewEncryptedSink(s.ctx, conn, sub.ID, sub.SharedSecret)
	if err != nil {
		log.W.F("httpapi: /fanout: derive key for %s: %v", sub.ID, err)
		_ = conn.Close(websocket.StatusInternalError, "key derivation failed")
		return
	}
	s.deps.Bus.Attach(sink, 256)
	defer s.deps.Bus.Detach(sink.ID())
	s.drainUntilClosed(r.Context(), conn)
}

// drainUntilClosed reads (and discards) frames until the client
// disconnects, the sink closes the connection out from under it (after a
// failed write), or the server itself shuts down. It has no per-read
// deadline: these are long-lived streams with no expectation the client
// sends anything back.
func (s *Server) drainUntilClosed(reqCtx context.T, conn *websocket.Conn) {
	go func() {
		<-s.ctx.Done()
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}()
	for {
		if _, _, err := conn.Read(reqCtx); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
