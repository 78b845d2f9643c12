// Package orgscope provides organization scoping for GORM queries.
//
// Every read and write against the universal tables goes through an
// organization filter. A query built without one carries an error and fails
// on execution instead of leaking rows across tenants.
//
// Usage:
//
//	db := orgscope.New(gormDB, platformOrgID)
//	db.For(ctx, orgID).Find(&entities) // WHERE organization_id = 'xxx' is added
package orgscope

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hera/backend/internal/domain/universal"
)

// ErrOrganizationRequired is returned when a scoped query has no organization
var ErrOrganizationRequired = errors.New("organization_id is required for scoped queries")

// ErrPlatformOrganization is returned when business rows are scoped to the platform organization
var ErrPlatformOrganization = errors.New("business rows cannot be scoped to the platform organization")

// ScopeAny restricts rows to any of the given organizations
func ScopeAny(organizationIDs ...uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(organizationIDs) == 0 {
			_ = db.AddError(ErrOrganizationRequired)
			return db
		}
		return db.Where("organization_id IN ?", organizationIDs)
	}
}

// Visible hides archived and deleted rows unless includeArchived is set
func Visible(includeArchived bool) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if includeArchived {
			return db
		}
		return db.Where("status NOT IN ?", universal.HiddenStatuses())
	}
}

// OrgDB wraps GORM DB with mandatory organization scoping
type OrgDB struct {
	db            *gorm.DB
	platformOrgID uuid.UUID
}

// New creates an OrgDB over db. platformOrgID is never accepted as a
// business scope.
func New(db *gorm.DB, platformOrgID uuid.UUID) *OrgDB {
	return &OrgDB{db: db, platformOrgID: platformOrgID}
}

// For returns a GORM DB bound to ctx and scoped to organizationID
func (o *OrgDB) For(ctx context.Context, organizationID uuid.UUID) *gorm.DB {
	return o.Bind(o.db.WithContext(ctx), organizationID)
}

// Transaction runs fn in a database transaction. The tx handed to fn is
// unscoped; use Bind to scope individual statements.
func (o *OrgDB) Transaction(ctx context.Context, organizationID uuid.UUID, fn func(tx *gorm.DB) error) error {
	if err := o.Check(organizationID); err != nil {
		return err
	}
	return o.db.WithContext(ctx).Transaction(fn)
}

// Bind scopes db, typically a transaction handle, to organizationID
func (o *OrgDB) Bind(db *gorm.DB, organizationID uuid.UUID) *gorm.DB {
	if err := o.Check(organizationID); err != nil {
		db = db.Session(&gorm.Session{})
		_ = db.AddError(err)
		return db
	}
	return db.Where("organization_id = ?", organizationID)
}

// Check validates an organization id for business-row scoping
func (o *OrgDB) Check(organizationID uuid.UUID) error {
	switch organizationID {
	case o.platformOrgID:
		return ErrPlatformOrganization
	case uuid.Nil:
		return ErrOrganizationRequired
	}
	return nil
}
