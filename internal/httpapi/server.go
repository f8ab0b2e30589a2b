// Package httpapi is the HTTP/WebSocket control surface: pool admin,
// status and metrics endpoints, and the /ws and /fanout streaming
// sockets. It is a sibling task to the ingestion pipeline, reaching the
// Relay Pool, Dedup Store, Event Router, and Fanout Bus only through
// their public operations. Grounded on the teacher relay's
// pkg/app/relay/server.go (net.Listen + cors.Default + http.Server with
// ReadHeaderTimeout/IdleTimeout, Shutdown-via-context-cancel shape).
package httpapi

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"novarelay.dev/internal/context"
	"novarelay.dev/internal/dedup"
	"novarelay.dev/internal/fanout"
	"novarelay.dev/internal/log"
	"novarelay.dev/internal/registry"
	"novarelay.dev/internal/relaypool"
	"novarelay.dev/internal/router"
	"novarelay.dev/internal/settlement"
)

// Deps is everything the control surface is allowed to reach, each
// through its already-public operations.
type Deps struct {
	Store      *dedup.Store
	Pool       *relaypool.Pool
	Router     *router.Router
	Bus        *fanout.Bus
	Registry   registry.Registry
	Settlement settlement.Worker

	// SettlementToken, if non-empty, is required in X-Settlement-Token
	// on admin routes. Left empty, admin routes are unauthenticated and
	// a warning is logged once at Server construction.
	SettlementToken string
}

// Server is the HTTP control surface.
type Server struct {
	ctx        context.T
	cancel     context.F
	deps       Deps
	mux        *chi.Mux
	httpServer *http.Server
}

// New builds a Server; it does not start listening until Start is
// called.
func New(ctx context.T, deps Deps) *Server {
	ctx, cancel := context.Cancel(ctx)
	if deps.SettlementToken == "" {
		log.W.Ln("httpapi: settlement token unset, admin routes are unauthenticated")
	}
	s := &Server{ctx: ctx, cancel: cancel, deps: deps, mux: chi.NewRouter()}
	s.routes()
	return s
}

// Start listens on host:port and serves until Shutdown is called or the
// listener fails.
func (s *Server) Start(host string, port int) (err error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	var ln net.Listener
	if ln, err = net.Listen("tcp", addr); err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Handler:           cors.Default().Handler(s.mux),
		Addr:              addr,
		ReadHeaderTimeout: 7 * time.Second,
		IdleTimeout:       28 * time.Second,
	}
	log.I.F("httpapi: listening on %s", addr)
	if err = s.httpServer.Serve(ln); errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server and cancels every
// connection it handed out context for (the /ws and /fanout streams).
func (s *Server) Shutdown() {
	s.cancel()
	if s.httpServer != nil {
		shCtx, shCancel := context.Timeout(context.Bg(), 5*time.Second)
		defer shCancel()
		log.W.Ln("httpapi: shutting down control surface")
		if err := s.httpServer.Shutdown(shCtx); err != nil {
			log.W.F("httpapi: shutdown: %v", err)
		}
	}
}
