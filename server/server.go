// Package server exposes the face detector over HTTP.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/esimov/facefind"
	"github.com/esimov/facefind/config"
	"github.com/esimov/facefind/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

// Server answers detection requests with a shared, read-only detector.
type Server struct {
	Log    logs.Log
	Config config.Config

	// ShutdownComplete receives the result of Shutdown once the HTTP server has stopped.
	ShutdownComplete chan error

	processor  *facefind.Processor
	uploads    *UploadStore
	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router
}

// NewServer wires the routes for cfg around processor.
func NewServer(log logs.Log, cfg config.Config, processor *facefind.Processor) (*Server, error) {
	s := &Server{
		Log:              log,
		Config:           cfg,
		ShutdownComplete: make(chan error, 1),
		processor:        processor,
	}
	if cfg.UploadDir != "" {
		uploads, err := NewUploadStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		s.uploads = uploads
	}
	s.setupHttpRoutes()
	return s, nil
}

func (s *Server) setupHttpRoutes() {
	router := httprouter.New()

	// Every route gets its own limiter, keyed by client IP.
	limited := func(method, route string, handle httprouter.Handle) {
		if s.Config.RateLimit <= 0 {
			www.Handle(s.Log, router, method, route, handle)
			return
		}
		limiter := httprate.Limit(s.Config.RateLimit, s.Config.RateWindow, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	limited("POST", "/detect_faces", s.httpDetectFaces)
	limited("POST", "/annotate_faces", s.httpAnnotateFaces)
	www.Handle(s.Log, router, "GET", "/health", s.httpHealth)

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		www.SendError(w, "not found", http.StatusNotFound)
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		www.SendError(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	s.httpRouter = router
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// ListenHTTP serves until Shutdown is called. It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) ListenHTTP() error {
	s.Log.Infof("Listening on %v", s.Config.Addr)
	s.httpServer = &http.Server{
		Addr:              s.Config.Addr,
		Handler:           s.httpRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// ListenForKillSignals shuts the server down on SIGINT or SIGTERM.
func (s *Server) ListenForKillSignals() {
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. Shutting down", sig.String())
			s.Shutdown()
		}
	}()
}

// Shutdown stops accepting connections and waits up to 5 seconds for in-flight requests.
func (s *Server) Shutdown() {
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
		close(s.signalIn)
		s.signalIn = nil
	}
	var err error
	if s.httpServer != nil {
		s.Log.Infof("Closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.httpServer.Shutdown(ctx)
	}
	if err != nil {
		s.Log.Warnf("Shutdown complete, with error: %v", err)
	} else {
		s.Log.Infof("Shutdown complete")
	}
	select {
	case s.ShutdownComplete <- err:
	default:
	}
}
