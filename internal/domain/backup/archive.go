package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// ArchiveVersion is the archive layout produced by this build
const ArchiveVersion = 1

// Row is one table row keyed by column name
type Row = map[string]any

// Archive is the plaintext payload sealed inside a backup object
type Archive struct {
	Version       int              `json:"version"`
	Type          Type             `json:"type"`
	TenantID      *uuid.UUID       `json:"tenant_id,omitempty"`
	CorporationID *uuid.UUID       `json:"corporation_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	Tables        map[string][]Row `json:"tables"`
	// Media maps storage keys to base64 object content
	Media map[string]string `json:"media,omitempty"`
}

// NewArchive creates an empty archive for the scope
func NewArchive(scope Scope) *Archive {
	return &Archive{
		Version:       ArchiveVersion,
		Type:          scope.Type,
		TenantID:      scope.TenantID,
		CorporationID: scope.CorporationID,
		CreatedAt:     time.Now().UTC(),
		Tables:        make(map[string][]Row),
	}
}

// Scope returns the scope the archive was taken from
func (a *Archive) Scope() Scope {
	return Scope{Type: a.Type, TenantID: a.TenantID, CorporationID: a.CorporationID}
}

// Manifest counts rows per table
func (a *Archive) Manifest() map[string]int {
	m := make(map[string]int, len(a.Tables))
	for name, rows := range a.Tables {
		m[name] = len(rows)
	}
	return m
}

// ValidateFor checks the archive can be restored into target. Tenant archives restore
// only into the tenant they were taken from.
func (a *Archive) ValidateFor(target Scope) error {
	if a.Version < 1 || a.Version > ArchiveVersion {
		return shared.NewDomainError("UNSUPPORTED_ARCHIVE", fmt.Sprintf("Unsupported archive version %d", a.Version))
	}
	if err := a.Scope().Validate(); err != nil {
		return err
	}
	if a.Type != target.Type {
		return shared.NewDomainError("ARCHIVE_SCOPE_MISMATCH", fmt.Sprintf("Archive of type %s cannot be restored as %s", a.Type, target.Type))
	}
	if a.Type == TypeTenant && (target.TenantID == nil || *a.TenantID != *target.TenantID) {
		return shared.NewDomainError("ARCHIVE_TENANT_MISMATCH", "Archive belongs to a different tenant")
	}
	return nil
}

// MediaKeys lists the storage keys of the archived documents
func (a *Archive) MediaKeys() []string {
	rows := a.Tables["documents"]
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		if key, ok := row["storage_key"].(string); ok && key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// DecodeArchive parses archive JSON keeping numbers exact
func DecodeArchive(data []byte) (*Archive, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var archive Archive
	if err := dec.Decode(&archive); err != nil {
		return nil, shared.NewDomainError("INVALID_ARCHIVE", "Backup archive could not be read")
	}
	if archive.Tables == nil {
		archive.Tables = make(map[string][]Row)
	}
	return &archive, nil
}
