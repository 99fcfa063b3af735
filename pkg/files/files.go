// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package files implements the file-system side of attachment uploads:
// pre-write validation, collision-resistant naming and write-or-fail
// persistence. Validation runs before any bytes touch disk.
package files

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxUploadBytes is the maximum accepted upload size. A file of exactly
// this size is accepted; one byte more is rejected.
const MaxUploadBytes = 10 * 1024 * 1024 // 10 MiB

// ErrInvalidFile is the sentinel wrapped by all validation failures.
// Use errors.Is to detect it; the wrapped message carries the reason.
var ErrInvalidFile = errors.New("invalid file")

// allowedMIMETypes is the closed allow-list of upload content types.
// Anything outside it is rejected at validation time.
var allowedMIMETypes = map[string]struct{}{
	"image/jpeg":    {},
	"image/jpg":     {},
	"image/png":     {},
	"image/gif":     {},
	"image/webp":    {},
	"image/svg+xml": {},
}

// Validate checks declared size and MIME type against the upload
// constraints. It does not touch file bytes.
//
// Returns nil when the file is acceptable, or an error wrapping
// ErrInvalidFile with a descriptive reason otherwise.
func Validate(mimeType string, size int64) error {
	if size > MaxUploadBytes {
		return fmt.Errorf("%w: file too large, maximum size is %dMB",
			ErrInvalidFile, MaxUploadBytes/1024/1024)
	}
	if _, ok := allowedMIMETypes[mimeType]; !ok {
		return fmt.Errorf("%w: unsupported file type %q, allowed: %s",
			ErrInvalidFile, mimeType, strings.Join(AllowedMIMETypes(), ", "))
	}
	return nil
}

// AllowedMIMETypes returns the upload allow-list in stable order.
func AllowedMIMETypes() []string {
	return []string{
		"image/jpeg",
		"image/jpg",
		"image/png",
		"image/gif",
		"image/webp",
		"image/svg+xml",
	}
}

// UniqueName derives a collision-resistant stored filename from the
// original: "{base}_{unix-millis}_{16 hex random}{ext}". The random
// component makes stored names unguessable from the original name, so
// uploads cannot be enumerated.
func UniqueName(originalName string) string {
	ext := filepath.Ext(originalName)
	base := strings.TrimSuffix(filepath.Base(originalName), ext)

	buf := make([]byte, 8)
	// rand.Read never fails on supported platforms since Go 1.21.
	_, _ = rand.Read(buf)

	return fmt.Sprintf("%s_%d_%s%s", base, time.Now().UnixMilli(), hex.EncodeToString(buf), ext)
}

// Save writes data under name inside dir, creating the directory if
// absent, and returns the full stored path. The write either fully
// succeeds or returns an error; no partial content is reported as
// success.
func Save(data []byte, name, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	fullPath := filepath.Join(dir, name)
	if err := os.WriteFile(fullPath, data, 0640); err != nil {
		return "", fmt.Errorf("write upload %s: %w", fullPath, err)
	}
	return fullPath, nil
}

// Delete removes a stored file. Missing files are not an error; the
// caller only cares that the path no longer exists.
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete upload %s: %w", path, err)
	}
	return nil
}
