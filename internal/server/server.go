package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"textbook-rag/internal/models"
)

const (
	serviceName    = "Physical AI Textbook API"
	serviceVersion = "1.0.0"
)

// Pipeline is the question answering and ingestion surface the handlers use.
type Pipeline interface {
	Answer(ctx context.Context, question, explicitContext string) (models.AnswerResult, error)
	IndexDocument(ctx context.Context, text, source string, id uint64) error
}

// HistoryRecorder persists answered questions. It is optional.
type HistoryRecorder interface {
	Record(ctx context.Context, userID, question string, result models.AnswerResult) (string, error)
}

type Config struct {
	Addr           string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type Server struct {
	cfg        Config
	pipeline   Pipeline
	history    HistoryRecorder
	router     chi.Router
	httpServer *http.Server
}

// New builds the HTTP server. history may be nil.
func New(cfg Config, pipeline Pipeline, history HistoryRecorder) *Server {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	s := &Server{cfg: cfg, pipeline: pipeline, history: history}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", handleRoot)
	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/", s.handleChat)
		r.Post("/index-document", s.handleIndexDocument)
	})

	return r
}

func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", s.cfg.Addr).Msg("Server listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// requestLogger writes one zerolog line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("Request")
		}()
		next.ServeHTTP(ww, r)
	})
}
