package apiserver

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

//go:embed openapi.yaml
var openAPISpec embed.FS

// swaggerPage and redocPage take the spec URL as their only verb.
const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Mealsmith API Reference</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css">
  <style>
    body { margin: 0; background: #fafafa; }
    header { background: #14532d; color: #fff; padding: 14px 24px; font-family: sans-serif; }
    header h1 { margin: 0; font-size: 1.2em; }
  </style>
</head>
<body>
  <header><h1>Mealsmith API</h1></header>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function () {
      SwaggerUIBundle({
        url: %q,
        dom_id: "#swagger-ui",
        deepLinking: true,
        displayRequestDuration: true,
        presets: [SwaggerUIBundle.presets.apis],
        supportedSubmitMethods: ["get", "post"],
        validatorUrl: null
      });
    };
  </script>
</body>
</html>`

const redocPage = `<!DOCTYPE html>
<html>
<head>
  <title>Mealsmith API Reference</title>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <style>
    body { margin: 0; }
    header { background: #14532d; color: #fff; padding: 14px 24px; font-family: sans-serif; }
    header h1 { margin: 0; font-size: 1.2em; }
    header p { margin: 4px 0 0; opacity: 0.85; }
  </style>
</head>
<body>
  <header>
    <h1>Mealsmith API</h1>
    <p>Personalized 7-day meal plan generation</p>
  </header>
  <redoc spec-url=%q></redoc>
  <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
</body>
</html>`

// OpenAPIHandler serves the API contract and two documentation UIs.
type OpenAPIHandler struct {
	logger *zap.Logger
	spec   string
}

// NewOpenAPIHandler loads the embedded contract.
func NewOpenAPIHandler(logger *zap.Logger) *OpenAPIHandler {
	spec, err := openAPISpec.ReadFile("openapi.yaml")
	if err != nil {
		logger.Error("Failed to read OpenAPI spec", zap.Error(err))
		return &OpenAPIHandler{logger: logger, spec: "# OpenAPI spec not available"}
	}
	return &OpenAPIHandler{logger: logger, spec: string(spec)}
}

// ServeSpec returns the contract as YAML. CORS is open so hosted
// documentation viewers can load it.
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	fmt.Fprint(w, h.spec)
}

// ServeSpecMeta returns a small JSON pointer at the spec and docs URLs.
func (h *OpenAPIHandler) ServeSpecMeta(w http.ResponseWriter, r *http.Request) {
	base := baseURL(r)
	meta := map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]string{
			"title":       "Mealsmith API",
			"description": "Personalized 7-day meal plan generation API",
			"version":     "2.0.0",
		},
		"servers": []map[string]string{
			{"url": base + "/api/v1", "description": "Current server"},
		},
		"spec_url": base + "/api/v1/openapi.yaml",
		"docs_url": base + "/api/v1/docs",
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(meta); err != nil {
		h.logger.Warn("Failed to write OpenAPI meta", zap.Error(err))
	}
}

// ServeSwaggerUI renders the interactive Swagger UI.
func (h *OpenAPIHandler) ServeSwaggerUI(w http.ResponseWriter, r *http.Request) {
	servePage(w, swaggerPage, specURL(r))
}

// ServeRedocUI renders the Redoc reader.
func (h *OpenAPIHandler) ServeRedocUI(w http.ResponseWriter, r *http.Request) {
	servePage(w, redocPage, specURL(r))
}

func servePage(w http.ResponseWriter, page, specURL string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, page, specURL)
}

func specURL(r *http.Request) string {
	return baseURL(r) + "/api/v1/openapi.yaml"
}

// baseURL reconstructs the externally visible origin. TLS on the
// connection wins over a forwarded proto header.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
