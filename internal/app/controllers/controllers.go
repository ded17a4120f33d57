// Package controllers handles HTTP request handling
package controllers

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/itsbooking/portal/internal/middleware"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
)

// parseIDParam reads a positive integer path parameter
func parseIDParam(ctx *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		middleware.HandleAPIError(ctx, apperrors.NewBadRequestError("Invalid "+name+" parameter"))
		return 0, false
	}
	return id, true
}

func currentUserID(ctx *gin.Context) int64 {
	return ctx.GetInt64(middleware.ContextUserID)
}

// serveFile streams rc to the client as an attachment named filename and closes it
func serveFile(ctx *gin.Context, rc io.ReadCloser, filename string, inline bool) {
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}

	ctx.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Content-Disposition": mime.FormatMediaType(disposition, map[string]string{"filename": filename}),
	})
}
