// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Account and upload types plus the auth request/response shapes.
package datatypes

import "time"

// User is a registered account. PasswordHash is a bcrypt hash and is
// never serialized.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Upload is the persisted record of one stored attachment binary.
// Validation (size, MIME allow-list) happens before the row or the
// bytes exist.
type Upload struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	Path         string    `json:"-"`
	UserID       int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterRequest is the body of POST /v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
}

// Validate validates the RegisterRequest fields.
func (r *RegisterRequest) Validate() error {
	return chatValidate.Struct(r)
}

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Validate validates the LoginRequest fields.
func (r *LoginRequest) Validate() error {
	return chatValidate.Struct(r)
}

// UserView is the public read model of an account.
type UserView struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AuthResponse is returned by both register and login: the account plus
// a signed bearer token. Logout is client-side token deletion; there is
// no server-side revocation.
type AuthResponse struct {
	User  UserView `json:"user"`
	Token string   `json:"token"`
}

// NewAuthResponse builds an AuthResponse for the given account.
func NewAuthResponse(u *User, token string) *AuthResponse {
	return &AuthResponse{
		User: UserView{
			ID:    u.ID,
			Email: u.Email,
			Name:  u.Name,
		},
		Token: token,
	}
}

// UploadView is the read model returned by the upload endpoints,
// including the serving URL derived from the stored filename.
type UploadView struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUploadView converts a persisted upload row to its read model.
func NewUploadView(u *Upload) UploadView {
	return UploadView{
		ID:           u.ID,
		Filename:     u.Filename,
		OriginalName: u.OriginalName,
		MimeType:     u.MimeType,
		Size:         u.Size,
		URL:          "/v1/uploads/" + u.Filename,
		CreatedAt:    u.CreatedAt,
	}
}
