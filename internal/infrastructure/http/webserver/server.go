// Package webserver serves the browser frontend of the meal planner:
// the profile form, the rendered 7-day plan, the grocery list export
// and cached meal images. It drives the planning service in process
// and keeps per-visitor state in cookie-addressed cache sessions.
package webserver

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/mealsmith/v2/internal/infrastructure/cache"
	"github.com/mealsmith/v2/internal/infrastructure/config"
	"github.com/mealsmith/v2/internal/infrastructure/hotreload"
	custommw "github.com/mealsmith/v2/internal/infrastructure/http/middleware"
	"github.com/mealsmith/v2/internal/infrastructure/monitoring"
	"github.com/mealsmith/v2/internal/ports/inbound"
	"github.com/mealsmith/v2/internal/ports/outbound"
	"github.com/mealsmith/v2/pkg/healthcheck"
)

//go:embed templates/*
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// WebServer renders the HTML frontend.
type WebServer struct {
	config      *config.Config
	logger      *zap.Logger
	server      *http.Server
	router      chi.Router
	planner     inbound.PlannerService
	sessions    *cache.SessionStore
	imageCache  outbound.CacheRepository
	healthCheck *healthcheck.HealthCheck
	metrics     *monitoring.MetricsCollector
	reload      *hotreload.LiveReload
	templates   *template.Template
	validate    *validator.Validate
}

// NewWebServer wires the frontend against an in-process planner.
// metrics and reload may be nil; the corresponding middleware and
// routes are simply not installed.
func NewWebServer(
	cfg *config.Config,
	logger *zap.Logger,
	planner inbound.PlannerService,
	sessions *cache.SessionStore,
	imageCache outbound.CacheRepository,
	healthCheck *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
	reload *hotreload.LiveReload,
) (*WebServer, error) {
	s := &WebServer{
		config:      cfg,
		logger:      logger,
		planner:     planner,
		sessions:    sessions,
		imageCache:  imageCache,
		healthCheck: healthCheck,
		metrics:     metrics,
		reload:      reload,
		validate:    validator.New(),
	}

	// GeneratePlanCommand carries its validation rules in binding
	// tags shared with the API server.
	s.validate.SetTagName("binding")

	if err := s.parseTemplates(); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

// parseTemplates loads the embedded templates. Each file is addressed
// by its path relative to templates/ without the .html suffix, so
// "templates/partials/targets.html" becomes "partials/targets".
func (s *WebServer) parseTemplates() error {
	tmpl := template.New("").Funcs(s.templateFuncs())

	err := fs.WalkDir(templatesFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}

		content, err := templatesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", path, err)
		}

		name := strings.TrimSuffix(strings.TrimPrefix(path, "templates/"), ".html")
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", path, err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.templates = tmpl
	return nil
}

func (s *WebServer) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatGenerated": func(value string) string {
			t, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return value
			}
			return t.Format("January 2, 2006 at 3:04 PM")
		},
		"truncate": func(text string, length int) string {
			if len(text) <= length {
				return text
			}
			return text[:length] + "..."
		},
		"lower": strings.ToLower,
		"join": func(items []string, sep string) string {
			return strings.Join(items, sep)
		},
		"add": func(a, b int) int {
			return a + b
		},
		"seq": func(start, end int) []int {
			var result []int
			for i := start; i <= end; i++ {
				result = append(result, i)
			}
			return result
		},
	}
}

func (s *WebServer) setupRoutes() {
	r := chi.NewRouter()

	r.Use(custommw.WebRequestID)
	r.Use(custommw.WebLogger(s.logger))
	r.Use(custommw.WebRecoverer(s.logger))
	r.Use(custommw.WebSecurity)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	if s.config.RateLimit.Enable {
		r.Use(custommw.WebRateLimit(s.config.RateLimit))
	}
	if s.config.Server.EnableCompression {
		compression := custommw.NewCompressionMiddleware(custommw.DefaultCompressionConfig())
		r.Use(compression.Handler)
	}
	r.Use(s.withSession)

	staticContent, err := fs.Sub(staticFS, "static")
	if err == nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))
	}

	if s.reload != nil {
		r.Get("/livereload", s.reload.WebSocketHandler())
		r.Get("/livereload.js", s.reload.ScriptHandler())
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReadiness)
	r.Get("/live", s.handleLiveness)

	r.Get("/", s.handleHome)
	r.Post("/plan", s.handleGeneratePlan)
	r.Get("/plan", s.handlePlanPage)
	r.Get("/plan/grocery.csv", s.handleGroceryCSV)
	r.Post("/plan/clear", s.handleClearPlan)
	r.Post("/htmx/targets", s.handleTargetsPartial)
	r.Get("/images/{key}", s.handleImage)

	r.NotFound(s.handleNotFound)

	s.router = r
}

// renderTemplate executes the named template into a buffer first so a
// half-rendered page never reaches the client.
func (s *WebServer) renderTemplate(w http.ResponseWriter, status int, name string, data map[string]interface{}) {
	if data == nil {
		data = make(map[string]interface{})
	}
	if _, ok := data["Title"]; !ok {
		data["Title"] = s.config.App.Name
	}
	data["AppName"] = s.config.App.Name
	data["Version"] = s.config.App.Version
	data["LiveReload"] = s.reload != nil

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("Failed to execute template",
			zap.String("template", name),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// Start begins listening. It blocks until the server stops.
func (s *WebServer) Start() error {
	if err := http2.ConfigureServer(s.server, nil); err != nil {
		return fmt.Errorf("failed to configure http2: %w", err)
	}

	s.logger.Info("Starting web server",
		zap.String("address", s.server.Addr),
		zap.Bool("compression", s.config.Server.EnableCompression),
		zap.Bool("live_reload", s.reload != nil))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down web server")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree for tests.
func (s *WebServer) Router() http.Handler {
	return s.router
}
