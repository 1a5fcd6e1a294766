package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arenaevo/internal/platform"
)

const shutdownTimeout = 10 * time.Second

// Server exposes an Arena over HTTP and streams its generation reports over
// a websocket.
type Server struct {
	arena       *platform.Arena
	log         *zap.SugaredLogger
	hub         *Hub
	router      chi.Router
	unsubscribe func()
}

func New(arena *platform.Arena) *Server {
	log := arena.Logger().Named("server")
	s := &Server{
		arena: arena,
		log:   log,
		hub:   NewHub(log),
	}
	s.unsubscribe = arena.Subscribe(s.hub)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/games", s.handleGames)
	r.Route("/bots", func(r chi.Router) {
		r.Get("/", s.handleListBots)
		r.Get("/{id}", s.handleGetBot)
	})
	r.Post("/matches", s.handlePlayMatch)
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", s.handleStartRun)
		r.Get("/{id}", s.handleGetRun)
	})
	r.Get("/ws", s.hub.ServeHTTP)
	return r
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Hub() *Hub { return s.hub }

// Close detaches the server from the arena and disconnects stream clients.
func (s *Server) Close() {
	s.unsubscribe()
	s.hub.Close()
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Infow("server listening", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.log.Infow("server stopped")
		return nil
	})
	return g.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debugw("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleGames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.arena.Games())
}

func (s *Server) handleListBots(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	bots, err := s.arena.ListBots(r.Context(), r.URL.Query().Get("game"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bots)
}

func (s *Server) handleGetBot(w http.ResponseWriter, r *http.Request) {
	record, err := s.arena.GetBot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handlePlayMatch(w http.ResponseWriter, r *http.Request) {
	var req platform.MatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.arena.PlayMatch(r.Context(), req, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type startRunResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req platform.RunRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := s.arena.StartRun(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/runs/"+id)
	writeJSON(w, http.StatusAccepted, startRunResponse{ID: id})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.arena.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
