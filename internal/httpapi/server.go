// Package httpapi exposes the identity engine over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/featherfeed/featherfeed-id/internal/observability/logger"
)

// Routable is implemented by handler bundles that know how to attach
// themselves to the router.
type Routable interface {
	Start(http.ResponseWriter, *http.Request)
	Callback(http.ResponseWriter, *http.Request)
	StartAuthz(http.ResponseWriter, *http.Request)
	AuthzCallback(http.ResponseWriter, *http.Request)
	CreateSession(http.ResponseWriter, *http.Request)
	Register(http.ResponseWriter, *http.Request)
	AuthMethods(http.ResponseWriter, *http.Request)
	WhoAmI(http.ResponseWriter, *http.Request)
}

// Middleware matches chi's middleware shape.
type Middleware func(http.Handler) http.Handler

// NewRouter assembles the route table over the handler bundle.
func NewRouter(h Routable, mws ...Middleware) http.Handler {
	r := chi.NewRouter()
	for _, mw := range mws {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", RegisterMetrics(prometheus.DefaultRegisterer))

	r.Route("/v2/oauth/{provider}", func(r chi.Router) {
		r.Get("/", WithMetrics("/v2/oauth/{provider}", http.HandlerFunc(h.Start)).ServeHTTP)
		r.Get("/callback", WithMetrics("/v2/oauth/{provider}/callback", http.HandlerFunc(h.Callback)).ServeHTTP)
		r.Get("/authz", WithMetrics("/v2/oauth/{provider}/authz", http.HandlerFunc(h.StartAuthz)).ServeHTTP)
		r.Get("/authz/callback", WithMetrics("/v2/oauth/{provider}/authz/callback", http.HandlerFunc(h.AuthzCallback)).ServeHTTP)
	})

	r.Post("/v2/session", WithMetrics("/v2/session", http.HandlerFunc(h.CreateSession)).ServeHTTP)
	r.Post("/v2/accounts", WithMetrics("/v2/accounts", http.HandlerFunc(h.Register)).ServeHTTP)
	r.Get("/v2/accounts/me", WithMetrics("/v2/accounts/me", http.HandlerFunc(h.WhoAmI)).ServeHTTP)
	r.Get("/v2/accounts/me/auth-methods", WithMetrics("/v2/accounts/me/auth-methods", http.HandlerFunc(h.AuthMethods)).ServeHTTP)

	return r
}

// Server wraps http.Server with lifecycle tied to a context.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
}

// Run serves until ctx is cancelled, then drains with a bounded shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("http server listening", logger.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return s.srv.Close()
	}
	return nil
}
