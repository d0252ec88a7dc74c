package server

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

const defaultUserID = "default_user"

// statusCountLimit caps the chunk count probe; a file with more chunks
// than this reports the cap.
const statusCountLimit = 10000

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

// QueryResponse is the response body for POST /api/v1/query.
type QueryResponse struct {
	Answer string `json:"answer"`
	Status string `json:"status"`
}

// UploadResponse is the response body for POST /api/v1/upload.
type UploadResponse struct {
	Status  string `json:"status"`
	FileID  string `json:"file_id"`
	Message string `json:"message"`
}

// StatusResponse is the response body for GET /api/v1/status/:file_id.
type StatusResponse struct {
	Status     string `json:"status"`
	FileID     string `json:"file_id"`
	UserID     string `json:"user_id"`
	ChunkCount int    `json:"chunk_count"`
	Message    string `json:"message"`
}

// handleQuery runs the retrieve-rerank-generate pipeline. The response
// is always 200 with a well-formed body: pipeline failures map to a
// sanitized error answer with status "error" rather than an HTTP error,
// so chat frontends render them like any other reply.
func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}

	result, err := s.query.Answer(c.Request().Context(), req.Query, vectorstore.Tenant{UserID: req.UserID})
	if err != nil {
		s.logger.Error("query failed",
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		return c.JSON(http.StatusOK, QueryResponse{
			Answer: sanitizeErrorMessage(err),
			Status: "error",
		})
	}

	if !result.ContextFound {
		return c.JSON(http.StatusOK, QueryResponse{
			Answer: "I couldn't find any relevant documents to answer your question.",
			Status: "success",
		})
	}

	return c.JSON(http.StatusOK, QueryResponse{
		Answer: result.Answer,
		Status: "success",
	})
}

// handleUpload validates and saves the uploaded file, then ingests it
// in the background. The response returns immediately with the file_id
// to poll on the status endpoint.
func (s *Server) handleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fileHeader.Filename == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "no filename provided")
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !s.extensionAllowed(ext) {
		return echo.NewHTTPError(http.StatusBadRequest,
			"unsupported file type, allowed: "+strings.Join(s.allowedExtensions(), ", "))
	}

	userID := c.FormValue("user_id")
	if userID == "" {
		userID = defaultUserID
	}

	if err := os.MkdirAll(s.cfg.Ingest.TempDir, 0o750); err != nil {
		s.logger.Error("creating temp dir failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not save file")
	}

	fileID := uuid.NewString()
	path := filepath.Join(s.cfg.Ingest.TempDir, fileID+ext)
	if err := saveUpload(fileHeader, path); err != nil {
		s.logger.Error("saving upload failed", zap.String("path", path), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not save file")
	}

	meta := ingest.FileMetadata{
		FileID:    fileID,
		Filename:  fileHeader.Filename,
		UserID:    userID,
		Extension: ext,
	}

	// Ingestion outlives the request; errors are logged by the pipeline.
	go func() {
		_ = s.pipeline.Run(context.Background(), path, meta)
	}()

	return c.JSON(http.StatusOK, UploadResponse{
		Status:  "ingestion_started",
		FileID:  fileID,
		Message: "Your document is being processed and will be available for chat shortly.",
	})
}

// handleStatus reports whether a file's chunks are queryable yet. Any
// store error reads as "processing": the poller retries rather than
// treating a transient outage as a failed ingestion.
func (s *Server) handleStatus(c echo.Context) error {
	fileID := c.Param("file_id")
	userID := c.QueryParam("user_id")
	if userID == "" {
		userID = defaultUserID
	}
	tenant := vectorstore.Tenant{UserID: userID}
	ctx := c.Request().Context()

	processing := func(message string) StatusResponse {
		return StatusResponse{
			Status:  "processing",
			FileID:  fileID,
			UserID:  userID,
			Message: message,
		}
	}

	probe, err := s.store.QueryByFile(ctx, tenant, fileID, 1)
	if err != nil {
		s.logger.Error("status probe failed", zap.String("file_id", fileID), zap.Error(err))
		return c.JSON(http.StatusOK, processing("Unable to determine status. Document may still be processing."))
	}
	if len(probe) == 0 {
		return c.JSON(http.StatusOK, processing("Document is still being processed. Please wait and check again."))
	}

	matches, err := s.store.QueryByFile(ctx, tenant, fileID, statusCountLimit)
	if err != nil {
		s.logger.Error("status count failed", zap.String("file_id", fileID), zap.Error(err))
		return c.JSON(http.StatusOK, processing("Unable to determine status. Document may still be processing."))
	}

	return c.JSON(http.StatusOK, StatusResponse{
		Status:     "completed",
		FileID:     fileID,
		UserID:     userID,
		ChunkCount: len(matches),
		Message: "Document processing completed successfully. " +
			"Chunks are indexed and available for chat.",
	})
}

func (s *Server) extensionAllowed(ext string) bool {
	for _, allowed := range s.cfg.Ingest.AllowedExtensions {
		if strings.EqualFold(strings.TrimSpace(allowed), ext) {
			return true
		}
	}
	return false
}

func (s *Server) allowedExtensions() []string {
	out := make([]string, len(s.cfg.Ingest.AllowedExtensions))
	copy(out, s.cfg.Ingest.AllowedExtensions)
	sort.Strings(out)
	return out
}

func saveUpload(fileHeader *multipart.FileHeader, path string) error {
	src, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// sanitizeErrorMessage turns an internal error into a message safe to
// show in a chat window. The raw text is capped at 200 characters, and
// short quoted fragments (the shape of leaked map key or attribute
// errors) are replaced with a generic message.
func sanitizeErrorMessage(err error) string {
	const generic = "An error occurred while processing your query. Please try again."

	raw := strings.TrimSpace(err.Error())
	if len(raw) > 200 {
		raw = strings.TrimSpace(raw[:200])
	}
	if raw == "" {
		return generic
	}
	if len(raw) < 50 && isQuoted(raw) {
		return generic
	}
	return "Error processing your query: " + raw
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	return (strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'")) ||
		(strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`))
}
