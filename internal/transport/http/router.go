package http

import (
	"net/http"
	"strings"

	"github.com/linktally/linktally/internal/config"
	"github.com/linktally/linktally/internal/infrastructure/telemetry"
	"github.com/linktally/linktally/internal/processing/links"
	"github.com/linktally/linktally/internal/transport/http/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var spanNames = map[string]string{
	"GET /health":              "health",
	"GET /metrics":             "metrics",
	"POST /shorten":            "links.shorten",
	"GET /urls":                "links.list",
	"GET /analytics/{shortId}": "links.analytics",
	"GET /{shortId}":           "links.redirect",
}

type RouterOptions struct {
	EnableCORS    bool
	EnableLogging bool
	EnableMetrics bool

	LinksHandlerOptions LinksHandlerOptions
}

func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		EnableCORS:    true,
		EnableLogging: true,
		EnableMetrics: true,
	}
}

func NewRouter(cfg *config.Config, linkService *links.Service) http.Handler {
	return NewRouterWithOptions(cfg, linkService, DefaultRouterOptions())
}

func NewRouterWithOptions(cfg *config.Config, linkService *links.Service, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	healthHandler := NewHealthHandler()
	linksHandler := NewLinksHandlerWithOptions(cfg, linkService, opts.LinksHandlerOptions)

	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", healthHandler.Metrics())

	mux.HandleFunc("POST /shorten", linksHandler.Shorten)
	mux.HandleFunc("GET /urls", linksHandler.ListURLs)
	mux.HandleFunc("GET /analytics/{shortId}", linksHandler.Analytics)
	mux.HandleFunc("GET /{shortId}", linksHandler.Redirect)

	var innerHandler http.Handler = mux
	if opts.EnableCORS {
		innerHandler = middleware.CORSMiddleware(innerHandler)
	}
	if opts.EnableLogging {
		innerHandler = middleware.LoggingMiddleware(innerHandler)
	}
	if opts.EnableMetrics {
		innerHandler = middleware.MetricsMiddleware(innerHandler)
	}

	otelOptions := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			// r.Pattern carries the method prefix for method-qualified routes.
			if name, ok := spanNames[r.Pattern]; ok {
				return name
			}
			if r.Pattern != "" {
				return r.Pattern
			}
			path := strings.TrimSpace(r.URL.Path)
			if path == "" {
				path = "/"
			}
			return path
		}),
	}

	if telemetry.TracerProvider != nil {
		otelOptions = append(otelOptions, otelhttp.WithTracerProvider(telemetry.TracerProvider))
	}

	return otelhttp.NewHandler(innerHandler, cfg.App.Name, otelOptions...)
}
