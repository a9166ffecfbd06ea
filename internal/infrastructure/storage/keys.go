package storage

import (
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// DocumentKey builds the object key for an uploaded document:
// tenants/<tenant>/documents/<slug>-<id><ext>
func DocumentKey(tenantID, documentID uuid.UUID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	name := slug.Make(base)
	if name == "" {
		name = "document"
	}
	if len(name) > 60 {
		name = strings.Trim(name[:60], "-")
	}
	return "tenants/" + tenantID.String() + "/documents/" + name + "-" + documentID.String() + ext
}
