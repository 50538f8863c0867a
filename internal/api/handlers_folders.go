// handlers_folders.go - Folder tree handlers
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/library"
)

// FolderHandler serves /api/folders.
type FolderHandler struct {
	docs    *documents.Store
	library *library.Library
}

type createFolderRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

type updateFolderRequest struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parent_id"`
}

// HandleList returns the subfolders of ?parent_id (root when empty).
func (h *FolderHandler) HandleList(c echo.Context) error {
	folders, err := h.docs.ListFolders(c.Request().Context(), c.QueryParam("parent_id"))
	if err != nil {
		return fromDomain("failed to list folders", err)
	}
	if folders == nil {
		folders = []documents.Folder{}
	}
	return c.JSON(http.StatusOK, map[string]any{"folders": folders})
}

// HandleCreate creates a folder and its directory.
func (h *FolderHandler) HandleCreate(c echo.Context) error {
	var req createFolderRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return NewValidationError("name")
	}
	f, err := h.library.CreateFolder(c.Request().Context(), strings.TrimSpace(req.Name), req.ParentID)
	if err != nil {
		return fromDomain("failed to create folder", err)
	}
	return c.JSON(http.StatusCreated, f)
}

// HandleUpdate renames and/or moves a folder. A parent_id of "" moves it to
// the root.
func (h *FolderHandler) HandleUpdate(c echo.Context) error {
	id := c.Param("id")
	var req updateFolderRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Name == nil && req.ParentID == nil {
		return NewValidationError("name or parent_id")
	}

	ctx := c.Request().Context()
	if req.ParentID != nil {
		if err := h.library.MoveFolder(ctx, id, *req.ParentID); err != nil {
			return fromDomain("failed to move folder", err)
		}
	}
	if req.Name != nil {
		if err := h.library.RenameFolder(ctx, id, strings.TrimSpace(*req.Name)); err != nil {
			return fromDomain("failed to rename folder", err)
		}
	}
	f, err := h.docs.GetFolder(ctx, id)
	if err != nil {
		return fromDomain("failed to load folder", err)
	}
	return c.JSON(http.StatusOK, f)
}

// HandleDelete removes a folder with everything below it.
func (h *FolderHandler) HandleDelete(c echo.Context) error {
	id := c.Param("id")
	if err := h.library.DeleteFolder(c.Request().Context(), id); err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return NewNotFoundError("folder", id)
		}
		return fromDomain("failed to delete folder", err)
	}
	return c.NoContent(http.StatusNoContent)
}
