package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewHTTPHandler serves the MCP server over Streamable HTTP. The api package
// mounts it at /mcp. Stateless mode skips session tracking; none of the
// tools call back into the client, so both modes serve every tool.
func NewHTTPHandler(server *Server, stateless bool) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server.server
	}, &mcp.StreamableHTTPOptions{Stateless: stateless})
}
