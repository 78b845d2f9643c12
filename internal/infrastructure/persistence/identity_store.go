package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hera/backend/internal/domain/identity"
	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/domain/universal"
	"github.com/hera/backend/internal/infrastructure/persistence/models"
	"github.com/hera/backend/internal/infrastructure/persistence/orgscope"
)

// GormIdentityStore implements identity.ActorRepository using GORM. It only
// reads, and reads across the platform and tenant namespaces.
type GormIdentityStore struct {
	db            *gorm.DB
	platformOrgID uuid.UUID
}

// NewGormIdentityStore creates a new GormIdentityStore. USER actors and
// platform-wide membership edges live in platformOrgID.
func NewGormIdentityStore(db *gorm.DB, platformOrgID uuid.UUID) *GormIdentityStore {
	return &GormIdentityStore{db: db, platformOrgID: platformOrgID}
}

// FindActorByExternalID maps a credential subject to the USER entity in the
// platform organization carrying it as external_user_id
func (s *GormIdentityStore) FindActorByExternalID(ctx context.Context, externalUserID string) (uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Table("core_entities AS e").
		Joins("JOIN core_dynamic_data AS d ON d.entity_id = e.id AND d.organization_id = e.organization_id").
		Where("e.organization_id = ? AND e.entity_type = ?", s.platformOrgID, universal.EntityTypeUser).
		Where("e.status NOT IN ?", universal.HiddenStatuses()).
		Where("d.field_name = ? AND d.field_value_text = ?", universal.ExternalUserIDField, externalUserID).
		Order("e.created_at").
		Limit(1).
		Pluck("e.id", &ids).Error
	if err != nil {
		return uuid.Nil, err
	}
	if len(ids) == 0 {
		return uuid.Nil, shared.ErrNotFound
	}
	return ids[0], nil
}

// ListActiveMemberships returns the actor's active membership edges, oldest
// first. An edge counts when it lives in the platform namespace or in the
// organization it points to.
func (s *GormIdentityStore) ListActiveMemberships(ctx context.Context, actorID uuid.UUID) ([]identity.Membership, error) {
	var rows []struct {
		TargetEntityID   uuid.UUID
		RelationshipType string
	}
	err := s.db.WithContext(ctx).
		Model(&models.RelationshipModel{}).
		Select("target_entity_id, relationship_type").
		Where("source_entity_id = ? AND is_active = ? AND relationship_type IN ?", actorID, true, universal.MembershipTypes()).
		Where("organization_id = ? OR organization_id = target_entity_id", s.platformOrgID).
		Order("created_at, id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	memberships := make([]identity.Membership, 0, len(rows))
	for _, r := range rows {
		memberships = append(memberships, identity.Membership{
			OrganizationID:   r.TargetEntityID,
			RelationshipType: r.RelationshipType,
		})
	}
	return memberships, nil
}

// HasActiveMembership reports whether an active membership edge connects
// actor to organization within one of scopes
func (s *GormIdentityStore) HasActiveMembership(ctx context.Context, actorID, organizationID uuid.UUID, scopes ...uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.RelationshipModel{}).
		Scopes(orgscope.ScopeAny(scopes...)).
		Where("source_entity_id = ? AND target_entity_id = ?", actorID, organizationID).
		Where("is_active = ? AND relationship_type IN ?", true, universal.MembershipTypes()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindEntityType returns the entity_type of entityID within one of scopes
func (s *GormIdentityStore) FindEntityType(ctx context.Context, entityID uuid.UUID, scopes ...uuid.UUID) (string, error) {
	var types []string
	err := s.db.WithContext(ctx).
		Model(&models.EntityModel{}).
		Scopes(orgscope.ScopeAny(scopes...)).
		Where("id = ?", entityID).
		Limit(1).
		Pluck("entity_type", &types).Error
	if err != nil {
		return "", err
	}
	if len(types) == 0 {
		return "", shared.ErrNotFound
	}
	return types[0], nil
}
