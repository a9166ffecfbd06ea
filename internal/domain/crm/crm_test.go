package crm

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/shared/valueobject"
)

type reverseCipher struct{}

func (reverseCipher) EncryptString(_ context.Context, s string) (string, error) {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return "enc:" + string(r), nil
}

func (reverseCipher) DecryptString(_ context.Context, s string) (string, error) {
	return strings.TrimPrefix(s, "enc:"), nil
}

func TestNewContact(t *testing.T) {
	tenantID := uuid.New()

	t.Run("normalizes names and email", func(t *testing.T) {
		c, err := NewContact(tenantID, "jane", "DOE", " Jane@Example.COM ")
		require.NoError(t, err)
		assert.Equal(t, "Jane", c.FirstName)
		assert.Equal(t, "Doe", c.LastName)
		assert.Equal(t, "jane@example.com", c.Email)
		assert.Equal(t, ContactStatusLead, c.Status)
		assert.Equal(t, "Jane Doe", c.DisplayName())
	})

	t.Run("keeps mixed case names", func(t *testing.T) {
		c, err := NewContact(tenantID, "Ronald", "McDonald", "")
		require.NoError(t, err)
		assert.Equal(t, "McDonald", c.LastName)
	})

	t.Run("requires a name", func(t *testing.T) {
		_, err := NewContact(tenantID, " ", "", "")
		assert.Error(t, err)
	})

	t.Run("rejects bad email", func(t *testing.T) {
		_, err := NewContact(tenantID, "A", "B", "not-an-email")
		assert.Error(t, err)
	})
}

func TestContact_PrimaryCorporationInvariant(t *testing.T) {
	tenantID := uuid.New()
	c, err := NewContact(tenantID, "Jane", "Doe", "")
	require.NoError(t, err)
	corpA, err := NewCorporation(tenantID, "Acme LLC", EntityTypeLLC)
	require.NoError(t, err)
	corpB, err := NewCorporation(tenantID, "Beta Inc", EntityTypeCCorp)
	require.NoError(t, err)

	t.Run("primary must be linked", func(t *testing.T) {
		err := c.SetPrimaryCorporation(&corpA.ID)
		assert.ErrorIs(t, err, ErrPrimaryNotMember)
	})

	t.Run("link then set primary", func(t *testing.T) {
		require.NoError(t, c.LinkCorporation(corpA))
		require.NoError(t, c.LinkCorporation(corpA))
		require.NoError(t, c.LinkCorporation(corpB))
		assert.Len(t, c.CorporationIDs, 2)
		require.NoError(t, c.SetPrimaryCorporation(&corpA.ID))
		assert.Equal(t, corpA.ID, *c.PrimaryCorporationID)
	})

	t.Run("unlinking the primary clears it", func(t *testing.T) {
		c.UnlinkCorporation(corpA.ID)
		assert.Nil(t, c.PrimaryCorporationID)
		assert.Equal(t, []uuid.UUID{corpB.ID}, c.CorporationIDs)
	})

	t.Run("cross tenant link rejected", func(t *testing.T) {
		other, err := NewCorporation(uuid.New(), "Other", EntityTypeTrust)
		require.NoError(t, err)
		assert.ErrorIs(t, c.LinkCorporation(other), ErrCrossTenantReference)
	})
}

func TestContact_SSN(t *testing.T) {
	c, err := NewContact(uuid.New(), "Jane", "Doe", "")
	require.NoError(t, err)

	v, err := SealSensitive(context.Background(), reverseCipher{}, "123-45-6789", 9, "INVALID_SSN")
	require.NoError(t, err)
	c.SetSSN(v)
	assert.Equal(t, "***-**-6789", c.SSN.Masked(SSNLayout))
	assert.NotContains(t, c.SSN.Ciphertext, "123456789")

	_, err = SealSensitive(context.Background(), reverseCipher{}, "12-34", 9, "INVALID_SSN")
	assert.Error(t, err)
}

func TestContact_UpdateDetails(t *testing.T) {
	c, err := NewContact(uuid.New(), "Jane", "Doe", "")
	require.NoError(t, err)
	addr, err := valueobject.NewAddress("1 Main", "Austin", "TX", "78701", "")
	require.NoError(t, err)

	require.NoError(t, c.UpdateDetails("Janet", "Doe", "j@x.io", "555-0100", nil, addr, "vip"))
	assert.Equal(t, "Janet", c.FirstName)
	assert.Equal(t, "TX", c.Address.State)
	assert.Equal(t, 2, c.Version)
}

func TestCorporation_SetParent(t *testing.T) {
	tenantID := uuid.New()
	root, _ := NewCorporation(tenantID, "Holding", EntityTypeCCorp)
	mid, _ := NewCorporation(tenantID, "Mid", EntityTypeLLC)
	leaf, _ := NewCorporation(tenantID, "Leaf", EntityTypeLLC)

	require.NoError(t, mid.SetParent(root, nil))
	require.NoError(t, leaf.SetParent(mid, []uuid.UUID{root.ID}))

	t.Run("self parent", func(t *testing.T) {
		assert.ErrorIs(t, root.SetParent(root, nil), ErrSelfParent)
	})

	t.Run("cycle through ancestors", func(t *testing.T) {
		// root under leaf: leaf's ancestors are mid, root
		err := root.SetParent(leaf, []uuid.UUID{mid.ID, root.ID})
		assert.ErrorIs(t, err, ErrParentCycle)
	})

	t.Run("detach", func(t *testing.T) {
		require.NoError(t, leaf.SetParent(nil, nil))
		assert.Nil(t, leaf.ParentID)
	})
}

func TestCorporation_RelatedIsSymmetric(t *testing.T) {
	tenantID := uuid.New()
	a, _ := NewCorporation(tenantID, "A", EntityTypeLLC)
	b, _ := NewCorporation(tenantID, "B", EntityTypeLLC)

	require.NoError(t, LinkRelated(a, b))
	require.NoError(t, LinkRelated(b, a))
	assert.Equal(t, []uuid.UUID{b.ID}, a.RelatedIDs)
	assert.Equal(t, []uuid.UUID{a.ID}, b.RelatedIDs)

	UnlinkRelated(b, a)
	assert.Empty(t, a.RelatedIDs)
	assert.Empty(t, b.RelatedIDs)

	assert.ErrorIs(t, LinkRelated(a, a), ErrSelfRelation)
}

func TestCorporation_UpdateDetails(t *testing.T) {
	c, err := NewCorporation(uuid.New(), "Acme", EntityTypeSCorp)
	require.NoError(t, err)
	assert.Error(t, c.UpdateDetails("Acme", EntityTypeSCorp, 13, "", "", valueobject.Address{}, ""))
	assert.Error(t, c.UpdateDetails("Acme", "bogus", 6, "", "", valueobject.Address{}, ""))
	require.NoError(t, c.UpdateDetails("Acme Corp", EntityTypeSCorp, 6, "A@B.com", "", valueobject.Address{}, ""))
	assert.Equal(t, "a@b.com", c.Email)
	assert.Equal(t, 6, c.FiscalYearEndMonth)
}

func TestContact_WorkflowFields(t *testing.T) {
	c, err := NewContact(uuid.New(), "Ana", "Lopez", "ana@example.com")
	require.NoError(t, err)
	ssn, err := SealSensitive(context.Background(), reverseCipher{}, "123-45-6789", 9, "INVALID_SSN")
	require.NoError(t, err)
	c.SetSSN(ssn)

	snap := c.Snapshot()
	assert.Equal(t, "lead", snap["status"])
	assert.Equal(t, c.ID.String(), snap["contact_id"])
	assert.Equal(t, true, snap["has_ssn"])
	for _, v := range snap {
		assert.NotEqual(t, ssn.Ciphertext, v)
	}

	require.NoError(t, c.ApplyField("status", "active"))
	assert.Equal(t, ContactStatusActive, c.Status)
	staff := uuid.New()
	require.NoError(t, c.ApplyField("assigned_to", staff.String()))
	assert.Equal(t, &staff, c.AssignedTo)
	assert.Error(t, c.ApplyField("assigned_to", "nope"))
	assert.Error(t, c.ApplyField("ssn", "123456789"))
}
