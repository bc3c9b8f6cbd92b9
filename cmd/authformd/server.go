package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MrEthical07/authform"
	"github.com/MrEthical07/authform/directory"
	"github.com/MrEthical07/authform/internal/logging"
	"github.com/MrEthical07/authform/jwt"
	authmw "github.com/MrEthical07/authform/middleware"
	"github.com/MrEthical07/authform/metrics/export/prometheus"
)

type server struct {
	cfg       AppConfig
	engine    *authform.Engine
	directory *directory.Store
	sessions  *jwt.Manager
	forms     *formRegistry
	metrics   *prometheus.PrometheusExporter
	validate  *validator.Validate
	logger    *zap.Logger
}

func newServer(cfg AppConfig, engine *authform.Engine, dir *directory.Store, sessions *jwt.Manager, logger *zap.Logger) *server {
	s := &server{
		cfg:       cfg,
		engine:    engine,
		directory: dir,
		sessions:  sessions,
		forms:     newFormRegistry(cfg.Form.FormIdleTTL, cfg.Form.MaxForms, logger),
		metrics:   prometheus.NewPrometheusExporter(engine),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
	s.metrics.AddGauge("authform_active_forms", "Open form sessions.", s.forms.count)
	return s
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.cfg.HTTP.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(logging.RequestLogger(s.logger))
	r.Use(logging.Recoverer(s.logger))
	r.Use(middleware.Timeout(30 * time.Second))

	if s.cfg.CORS.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORS.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
			AllowCredentials: s.cfg.CORS.CORSAllowCredentials,
			MaxAge:           s.cfg.CORS.CORSMaxAge,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/forms", s.handleCreateForm)
		r.Route("/forms/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetForm)
			r.Delete("/", s.handleCloseForm)
			r.Put("/fields", s.handleSetFields)
			r.Post("/email/blur", s.handleBlur)
			r.Post("/submit", s.handleSubmit)
			r.Post("/mode", s.handleSwitchMode)
		})
		r.Post("/password-reset/confirm", s.handleConfirmReset)
		r.With(authmw.RequireSessionStrict(s.sessions, s.directory)).Get("/me", s.handleMe)
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

var errBadBody = errors.New("request body is invalid")

// decodeValidate reads a size-limited JSON body into dst and validates its tags.
func (s *server) decodeValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.HTTP.MaxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errBadBody
	}
	if err := s.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
