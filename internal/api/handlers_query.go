// handlers_query.go - Search and graph read handlers
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/graph"
	mcpserver "github.com/Mekopa/AIHackathon-RAGLens/internal/mcp"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/vectorindex"
)

const maxSearchLimit = 50

// QueryHandler serves /api/search and /api/graph.
type QueryHandler struct {
	search mcpserver.Searcher
	graph  mcpserver.GraphReader
	schema graph.SchemaProvider
}

// HandleSearch runs a chunk search. Parameters: q, document_id, folder_id,
// limit.
func (h *QueryHandler) HandleSearch(c echo.Context) error {
	if h.search == nil {
		return NewServiceUnavailableError("search is not configured")
	}
	limit := vectorindex.DefaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return NewValidationError("limit")
		}
		limit = min(n, maxSearchLimit)
	}

	filter := map[string]any{}
	if id := c.QueryParam("document_id"); id != "" {
		filter["document_id"] = id
	}
	if id := c.QueryParam("folder_id"); id != "" {
		filter["folder_id"] = id
	}
	if len(filter) == 0 {
		filter = nil
	}

	res, err := h.search.Search(c.Request().Context(), vectorindex.Query{
		Text:   strings.TrimSpace(c.QueryParam("q")),
		Filter: filter,
		Limit:  limit,
	})
	if err != nil {
		return fromDomain("search failed", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"mode":    res.Mode,
		"results": res.Matches,
	})
}

// HandleDocumentGraph returns the graph extracted from one document.
func (h *QueryHandler) HandleDocumentGraph(c echo.Context) error {
	if h.graph == nil {
		return NewServiceUnavailableError("graph store is not configured")
	}
	g, err := h.graph.DocumentGraph(c.Request().Context(), c.Param("id"))
	if err != nil {
		return NewServiceUnavailableError("graph store unavailable: " + err.Error())
	}
	return c.JSON(http.StatusOK, nonNil(g))
}

// HandleFolderGraph returns the combined graph of a folder's documents.
func (h *QueryHandler) HandleFolderGraph(c echo.Context) error {
	if h.graph == nil {
		return NewServiceUnavailableError("graph store is not configured")
	}
	g, err := h.graph.FolderGraph(c.Request().Context(), c.Param("id"))
	if err != nil {
		return NewServiceUnavailableError("graph store unavailable: " + err.Error())
	}
	return c.JSON(http.StatusOK, nonNil(g))
}

// HandleEntityGraph returns the relationships through ?name, optionally
// restricted to ?type.
func (h *QueryHandler) HandleEntityGraph(c echo.Context) error {
	if h.graph == nil {
		return NewServiceUnavailableError("graph store is not configured")
	}
	name := strings.TrimSpace(c.QueryParam("name"))
	if name == "" {
		return NewValidationError("name")
	}
	entityType := c.QueryParam("type")
	if entityType != "" && h.schema != nil {
		entityType = h.schema.NormalizeEntityType(entityType)
	}
	g, err := h.graph.EntityGraph(c.Request().Context(), name, entityType)
	if err != nil {
		return NewServiceUnavailableError("graph store unavailable: " + err.Error())
	}
	return c.JSON(http.StatusOK, nonNil(g))
}

func nonNil(g graph.Graph) graph.Graph {
	if g.Nodes == nil {
		g.Nodes = []graph.Node{}
	}
	if g.Edges == nil {
		g.Edges = []graph.Edge{}
	}
	return g
}
