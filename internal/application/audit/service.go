package audit

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/audit"
	"github.com/taxcrm/backend/internal/infrastructure/export"
)

// maxExportRows bounds one audit export
const maxExportRows = 50000

// LogDTO is the API view of an audit entry
type LogDTO struct {
	ID           uuid.UUID      `json:"id"`
	UserID       *uuid.UUID     `json:"user_id,omitempty"`
	ActorKind    string         `json:"actor_kind"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   uuid.UUID      `json:"resource_id"`
	Changes      map[string]any `json:"changes,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// ToLogDTO converts an entry
func ToLogDTO(l *audit.Log) LogDTO {
	return LogDTO{
		ID:           l.ID,
		UserID:       l.UserID,
		ActorKind:    string(l.ActorKind),
		Action:       l.Action,
		ResourceType: l.ResourceType,
		ResourceID:   l.ResourceID,
		Changes:      l.Changes,
		IPAddress:    l.IPAddress,
		UserAgent:    l.UserAgent,
		RequestID:    l.RequestID,
		OccurredAt:   l.OccurredAt,
	}
}

// Service reads the audit trail
type Service struct {
	repo audit.Repository
}

// NewService creates a new audit query service
func NewService(repo audit.Repository) *Service {
	return &Service{repo: repo}
}

// List returns entries matching q, newest first
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, q audit.Query) ([]LogDTO, int64, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 20
	}
	logs, total, err := s.repo.Find(ctx, tenantID, q)
	if err != nil {
		return nil, 0, err
	}
	out := make([]LogDTO, len(logs))
	for i := range logs {
		out[i] = ToLogDTO(&logs[i])
	}
	return out, total, nil
}

// History returns the trail of one record
func (s *Service) History(ctx context.Context, tenantID uuid.UUID, resourceType string, resourceID uuid.UUID, page, pageSize int) ([]LogDTO, int64, error) {
	return s.List(ctx, tenantID, audit.Query{ResourceType: resourceType, ResourceID: &resourceID, Page: page, PageSize: pageSize})
}

// GetByID returns one entry
func (s *Service) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*LogDTO, error) {
	entry, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := ToLogDTO(entry)
	return &dto, nil
}

// Export writes entries matching q as CSV
func (s *Service) Export(ctx context.Context, tenantID uuid.UUID, q audit.Query, w io.Writer) error {
	var all []audit.Log
	q.PageSize = 500
	for q.Page = 1; ; q.Page++ {
		logs, total, err := s.repo.Find(ctx, tenantID, q)
		if err != nil {
			return err
		}
		all = append(all, logs...)
		if len(logs) == 0 || int64(len(all)) >= total || len(all) >= maxExportRows {
			break
		}
	}
	return export.WriteCSV(w, logColumns, all)
}

var logColumns = []export.Column[audit.Log]{
	{Header: "Occurred At", Value: func(l audit.Log) string { return l.OccurredAt.UTC().Format(time.RFC3339) }},
	{Header: "Actor", Value: func(l audit.Log) string { return string(l.ActorKind) }},
	{Header: "User", Value: func(l audit.Log) string { return export.ID(l.UserID) }},
	{Header: "Action", Value: func(l audit.Log) string { return l.Action }},
	{Header: "Resource Type", Value: func(l audit.Log) string { return l.ResourceType }},
	{Header: "Resource ID", Value: func(l audit.Log) string { return l.ResourceID.String() }},
	{Header: "IP Address", Value: func(l audit.Log) string { return l.IPAddress }},
	{Header: "Request ID", Value: func(l audit.Log) string { return l.RequestID }},
}
