// handlers_documents.go - Document upload, status and reprocess handlers
package api

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/diagnostics"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/library"
	mcpserver "github.com/Mekopa/AIHackathon-RAGLens/internal/mcp"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/tasks"
)

// MIMEApplicationMsgpack selects the binary diagnostics encoding.
const MIMEApplicationMsgpack = "application/msgpack"

// maxStatusIDs bounds one status query.
const maxStatusIDs = 200

// DocumentHandler serves /api/documents.
type DocumentHandler struct {
	docs        *documents.Store
	library     *library.Library
	reprocessor mcpserver.Reprocessor
	diagDir     string
}

type updateDocumentRequest struct {
	Name     *string `json:"name"`
	FolderID *string `json:"folder_id"`
}

func (r updateDocumentRequest) validate() error {
	if r.Name == nil && r.FolderID == nil {
		return NewValidationError("name or folder_id")
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return NewValidationError("name")
	}
	return nil
}

// HandleList returns the documents and subfolders of ?folder_id (root when
// empty).
func (h *DocumentHandler) HandleList(c echo.Context) error {
	ctx := c.Request().Context()
	folderID := c.QueryParam("folder_id")
	docs, err := h.docs.ListDocuments(ctx, folderID)
	if err != nil {
		return fromDomain("failed to list documents", err)
	}
	folders, err := h.docs.ListFolders(ctx, folderID)
	if err != nil {
		return fromDomain("failed to list folders", err)
	}
	if docs == nil {
		docs = []documents.Document{}
	}
	if folders == nil {
		folders = []documents.Folder{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"documents": docs,
		"folders":   folders,
	})
}

// HandleUpload stores a multipart "file" in the folder named by the
// "folder_id" form value and queues it for processing.
func (h *DocumentHandler) HandleUpload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewValidationError("file")
	}
	src, err := file.Open()
	if err != nil {
		return NewBadRequestError("failed to read upload", err)
	}
	defer src.Close()

	doc, err := h.library.Upload(c.Request().Context(), c.FormValue("folder_id"), file.Filename, src)
	if err != nil {
		return fromDomain("failed to upload document", err)
	}
	return c.JSON(http.StatusCreated, doc)
}

// HandleStatus reports {id, name, status, error, updated_at} for every id in
// ?ids=a,b. Unknown ids report not_found.
func (h *DocumentHandler) HandleStatus(c echo.Context) error {
	var ids []string
	for _, raw := range c.QueryParams()["ids"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return NewValidationError("ids")
	}
	if len(ids) > maxStatusIDs {
		return NewBadRequestError("too many ids", nil)
	}
	reports, err := h.docs.Statuses(c.Request().Context(), ids)
	if err != nil {
		return fromDomain("failed to read statuses", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"documents": reports})
}

// HandleGet returns one document.
func (h *DocumentHandler) HandleGet(c echo.Context) error {
	id := c.Param("id")
	doc, err := h.docs.GetDocument(c.Request().Context(), id)
	if errors.Is(err, documents.ErrNotFound) {
		return NewNotFoundError("document", id)
	}
	if err != nil {
		return fromDomain("failed to load document", err)
	}
	return c.JSON(http.StatusOK, doc)
}

// HandleUpdate renames and/or moves a document. A folder_id of "" moves it
// to the root.
func (h *DocumentHandler) HandleUpdate(c echo.Context) error {
	id := c.Param("id")
	var req updateDocumentRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if req.FolderID != nil {
		if err := h.library.MoveDocument(ctx, id, *req.FolderID); err != nil {
			return fromDomain("failed to move document", err)
		}
	}
	if req.Name != nil {
		if err := h.library.RenameDocument(ctx, id, strings.TrimSpace(*req.Name)); err != nil {
			return fromDomain("failed to rename document", err)
		}
	}
	doc, err := h.docs.GetDocument(ctx, id)
	if err != nil {
		return fromDomain("failed to load document", err)
	}
	return c.JSON(http.StatusOK, doc)
}

// HandleDelete removes a document with its file, chunks and graph data.
func (h *DocumentHandler) HandleDelete(c echo.Context) error {
	id := c.Param("id")
	if err := h.library.DeleteDocument(c.Request().Context(), id); err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return NewNotFoundError("document", id)
		}
		return fromDomain("failed to delete document", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleReprocess restarts an error document from extraction. Documents in
// other states are reported as skipped with the reason.
func (h *DocumentHandler) HandleReprocess(c echo.Context) error {
	if h.reprocessor == nil {
		return NewServiceUnavailableError("task workers are not running")
	}
	id := c.Param("id")
	res, err := h.reprocessor.Reprocess(c.Request().Context(), id)
	if err != nil {
		return fromDomain("failed to reprocess document", err)
	}
	switch res.Status {
	case tasks.OutcomeNotFound:
		return c.JSON(http.StatusNotFound, res)
	case tasks.OutcomeReprocessing:
		return c.JSON(http.StatusAccepted, res)
	default:
		return c.JSON(http.StatusOK, res)
	}
}

// HandleDiagnostics returns the recorded pipeline stages and LLM exchanges
// of a document, as JSON or, with Accept: application/msgpack, MessagePack.
func (h *DocumentHandler) HandleDiagnostics(c echo.Context) error {
	if h.diagDir == "" {
		return NewServiceUnavailableError("diagnostics are disabled")
	}
	id := c.Param("id")
	records, err := diagnostics.Read(h.diagDir, id)
	if errors.Is(err, fs.ErrNotExist) {
		return NewNotFoundError("diagnostics", id)
	}
	if err != nil {
		return NewInternalError("failed to read diagnostics", err)
	}
	if records == nil {
		records = []diagnostics.Record{}
	}

	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEApplicationMsgpack) {
		data, err := msgpack.Marshal(records)
		if err != nil {
			return NewInternalError("failed to encode diagnostics", err)
		}
		return c.Blob(http.StatusOK, MIMEApplicationMsgpack, data)
	}
	return c.JSON(http.StatusOK, map[string]any{"document_id": id, "records": records})
}
