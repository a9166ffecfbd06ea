package handler

import "github.com/taxcrm/backend/internal/interfaces/http/dto"

// APIResponse is the typed envelope referenced by the @Success annotations
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// CountData wraps a bare count such as unread chat messages
type CountData struct {
	Count int64 `json:"count"`
}
