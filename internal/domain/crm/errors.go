package crm

import "github.com/taxcrm/backend/internal/domain/shared"

func newInvalid(code, message string) error {
	return shared.NewDomainError(code, message)
}

var (
	ErrPrimaryNotMember     = shared.NewDomainError("PRIMARY_CORPORATION_NOT_LINKED", "Primary corporation must be one of the contact's corporations")
	ErrSelfParent           = shared.NewDomainError("INVALID_PARENT", "A corporation cannot be its own parent")
	ErrParentCycle          = shared.NewDomainError("INVALID_PARENT", "Setting this parent would create an ownership cycle")
	ErrSelfRelation         = shared.NewDomainError("INVALID_RELATION", "A corporation cannot be related to itself")
	ErrCrossTenantReference = shared.NewDomainError("INVALID_REFERENCE", "Referenced record belongs to another tenant")
)
