// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/DrPechenyshka/AE/pkg/files"
	"github.com/DrPechenyshka/AE/services/orchestrator/datatypes"
	"github.com/DrPechenyshka/AE/services/orchestrator/middleware"
	"github.com/DrPechenyshka/AE/services/orchestrator/observability"
	"github.com/DrPechenyshka/AE/services/orchestrator/storage"
)

var uploadTracer = otel.Tracer("ae.orchestrator.handlers.uploads")

// UploadStore is the slice of the storage layer the upload handlers
// need.
type UploadStore interface {
	Create(ctx context.Context, up *datatypes.Upload) (*datatypes.Upload, error)
	ListByUser(ctx context.Context, userID int64) ([]*datatypes.Upload, error)
	GetByFilename(ctx context.Context, filename string) (*datatypes.Upload, error)
}

var _ UploadStore = (*storage.UploadRepository)(nil)

// HandleUpload accepts one multipart file under the "file" field,
// validates it against the image allow-list and size cap, stores the
// bytes under a collision-free name, and persists the row.
func HandleUpload(uploads UploadStore, storageDir string, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := uploadTracer.Start(c.Request.Context(), "HandleUpload")
		defer span.End()

		ident := middleware.GetIdentity(c)
		if ident == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		header, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
			return
		}

		mimeType := header.Header.Get("Content-Type")
		if err := files.Validate(mimeType, header.Size); err != nil {
			reason := "bad_mime"
			if header.Size > files.MaxUploadBytes {
				reason = "too_large"
			}
			metrics.ObserveUploadRejection(reason)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		src, err := header.Open()
		if err != nil {
			span.RecordError(err)
			slog.Error("Failed to open uploaded file", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}
		defer src.Close()

		// The declared size passed validation; the read is still capped
		// in case the part is larger than its header claims.
		data, err := io.ReadAll(io.LimitReader(src, files.MaxUploadBytes+1))
		if err != nil {
			span.RecordError(err)
			slog.Error("Failed to read uploaded file", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}
		if int64(len(data)) > files.MaxUploadBytes {
			metrics.ObserveUploadRejection("too_large")
			c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds the 10 MiB limit"})
			return
		}

		name := files.UniqueName(header.Filename)
		path, err := files.Save(data, name, storageDir)
		if err != nil {
			span.RecordError(err)
			slog.Error("Failed to store uploaded file", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}

		up, err := uploads.Create(ctx, &datatypes.Upload{
			Filename:     name,
			OriginalName: header.Filename,
			MimeType:     mimeType,
			Size:         int64(len(data)),
			Path:         path,
			UserID:       ident.UserID,
		})
		if err != nil {
			span.RecordError(err)
			slog.Error("Failed to persist upload row", "error", err)
			// The bytes are orphaned otherwise.
			if delErr := files.Delete(path); delErr != nil {
				slog.Warn("Failed to remove orphaned upload", "path", path, "error", delErr)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}

		metrics.ObserveUpload(mimeType)
		slog.Info("Stored upload", "user_id", ident.UserID, "filename", name, "size", up.Size)
		c.JSON(http.StatusCreated, datatypes.NewUploadView(up))
	}
}

// HandleListUploads returns the caller's uploads, newest first.
func HandleListUploads(uploads UploadStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := uploadTracer.Start(c.Request.Context(), "HandleListUploads")
		defer span.End()

		ident := middleware.GetIdentity(c)
		if ident == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		rows, err := uploads.ListByUser(ctx, ident.UserID)
		if err != nil {
			span.RecordError(err)
			slog.Error("Upload list failed", "user_id", ident.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload list failed"})
			return
		}

		views := make([]datatypes.UploadView, 0, len(rows))
		for _, row := range rows {
			views = append(views, datatypes.NewUploadView(row))
		}
		c.JSON(http.StatusOK, gin.H{"uploads": views})
	}
}

// HandleGetUpload serves the stored bytes of one upload. Rows are
// scoped to their owner; other callers get the same 404 as a missing
// file.
func HandleGetUpload(uploads UploadStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := uploadTracer.Start(c.Request.Context(), "HandleGetUpload")
		defer span.End()

		ident := middleware.GetIdentity(c)
		if ident == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		up, err := uploads.GetByFilename(ctx, c.Param("filename"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			span.RecordError(err)
			slog.Error("Upload lookup failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload lookup failed"})
			return
		}
		if up.UserID != ident.UserID {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		c.Header("Content-Type", up.MimeType)
		c.File(up.Path)
	}
}
