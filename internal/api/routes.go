// Package api serves the HTTP surface: document and folder management,
// status queries, reprocessing, search and graph reads, plus the MCP
// endpoint.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/graph"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/library"
	mcpserver "github.com/Mekopa/AIHackathon-RAGLens/internal/mcp"
)

// DefaultBodyLimit caps request bodies, uploads included.
const DefaultBodyLimit = "100M"

// Dependencies holds all handler dependencies. Graph, Reprocessor, MCP and
// DiagnosticsDir are optional; their routes answer 503 when unset.
type Dependencies struct {
	Documents      *documents.Store
	Library        *library.Library
	Search         mcpserver.Searcher
	Graph          mcpserver.GraphReader
	Schema         graph.SchemaProvider
	Reprocessor    mcpserver.Reprocessor
	MCP            http.Handler
	Health         map[string]mcpserver.HealthChecker
	DiagnosticsDir string
	BodyLimit      string
	Logger         *slog.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Documents *DocumentHandler
	Folders   *FolderHandler
	Query     *QueryHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Documents: &DocumentHandler{
			docs:        deps.Documents,
			library:     deps.Library,
			reprocessor: deps.Reprocessor,
			diagDir:     deps.DiagnosticsDir,
		},
		Folders: &FolderHandler{docs: deps.Documents, library: deps.Library},
		Query:   &QueryHandler{search: deps.Search, graph: deps.Graph, schema: deps.Schema},
	}
}

// New builds the Echo instance with middleware and every route.
func New(deps *Dependencies) *echo.Echo {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	SetupMiddleware(e, deps)
	RegisterRoutes(e, deps, NewHandlers(deps))
	return e
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, deps *Dependencies, h *Handlers) {
	e.GET("/", echo.WrapHandler(mcpserver.NewLandingHandler()))
	e.GET("/health", echo.WrapHandler(mcpserver.NewHealthHandler(deps.Health)))
	if deps.MCP != nil {
		e.Any("/mcp", echo.WrapHandler(deps.MCP))
	}

	docs := e.Group("/api/documents")
	docs.GET("", h.Documents.HandleList)
	docs.POST("", h.Documents.HandleUpload)
	docs.GET("/status", h.Documents.HandleStatus)
	docs.GET("/:id", h.Documents.HandleGet)
	docs.PATCH("/:id", h.Documents.HandleUpdate)
	docs.DELETE("/:id", h.Documents.HandleDelete)
	docs.POST("/:id/reprocess", h.Documents.HandleReprocess)
	docs.GET("/:id/diagnostics", h.Documents.HandleDiagnostics)

	folders := e.Group("/api/folders")
	folders.GET("", h.Folders.HandleList)
	folders.POST("", h.Folders.HandleCreate)
	folders.PATCH("/:id", h.Folders.HandleUpdate)
	folders.DELETE("/:id", h.Folders.HandleDelete)

	e.GET("/api/search", h.Query.HandleSearch)
	g := e.Group("/api/graph")
	g.GET("/documents/:id", h.Query.HandleDocumentGraph)
	g.GET("/folders/:id", h.Query.HandleFolderGraph)
	g.GET("/entities", h.Query.HandleEntityGraph)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, deps *Dependencies) {
	e.HTTPErrorHandler = ErrorHandler(deps.Logger)

	logger := deps.Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/health" || path == "/api/documents/status"
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(context.Background(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency))
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	limit := deps.BodyLimit
	if limit == "" {
		limit = DefaultBodyLimit
	}
	e.Use(middleware.BodyLimit(limit))
}
