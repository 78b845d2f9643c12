package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/domain/universal"
	"github.com/hera/backend/internal/infrastructure/persistence/models"
	"github.com/hera/backend/internal/infrastructure/persistence/orgscope"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// smartCodePrefix matches smart codes that literally start with prefix
func smartCodePrefix(prefix string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(`smart_code LIKE ? ESCAPE '\'`, likeEscaper.Replace(prefix)+"%")
	}
}

// GormUniversalStore implements universal.AtomicStore using GORM. Every
// write runs in one database transaction.
type GormUniversalStore struct {
	db *orgscope.OrgDB
}

// NewGormUniversalStore creates a new GormUniversalStore. Writes and reads
// scoped to platformOrgID are refused.
func NewGormUniversalStore(db *gorm.DB, platformOrgID uuid.UUID) *GormUniversalStore {
	return &GormUniversalStore{db: orgscope.New(db, platformOrgID)}
}

// CreateEntity inserts the entity with its fields and relationships
func (s *GormUniversalStore) CreateEntity(ctx context.Context, agg *universal.EntityAggregate) error {
	orgID := agg.Entity.OrganizationID
	return s.db.Transaction(ctx, orgID, func(tx *gorm.DB) error {
		var entity models.EntityModel
		entity.FromDomain(&agg.Entity)
		if err := tx.Create(&entity).Error; err != nil {
			return err
		}
		if err := createFields(tx, agg.Fields); err != nil {
			return err
		}
		return s.createRelationships(tx, orgID, agg.Relationships)
	})
}

// UpdateEntity replaces the header, upserts fields by name and adds relationships
func (s *GormUniversalStore) UpdateEntity(ctx context.Context, entity *universal.Entity, fields []universal.DynamicField, relationships []universal.Relationship) error {
	orgID := entity.OrganizationID
	return s.db.Transaction(ctx, orgID, func(tx *gorm.DB) error {
		result := s.db.Bind(tx, orgID).
			Model(&models.EntityModel{}).
			Where("id = ?", entity.ID).
			Updates(map[string]any{
				"entity_type": entity.EntityType,
				"entity_name": entity.EntityName,
				"entity_code": entity.EntityCode,
				"smart_code":  entity.SmartCode,
				"status":      entity.Status,
				"metadata":    models.EncodeJSON(entity.Metadata),
				"updated_at":  entity.UpdatedAt,
				"updated_by":  entity.UpdatedBy,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		if err := upsertFields(tx, fields); err != nil {
			return err
		}
		return s.createRelationships(tx, orgID, relationships)
	})
}

// SetEntityStatus transitions an entity's status. Rows are never deleted.
func (s *GormUniversalStore) SetEntityStatus(ctx context.Context, organizationID, id uuid.UUID, status string, actorID uuid.UUID) (*universal.Entity, error) {
	var model models.EntityModel
	err := s.db.Transaction(ctx, organizationID, func(tx *gorm.DB) error {
		result := s.db.Bind(tx, organizationID).
			Model(&models.EntityModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":     status,
				"updated_at": time.Now().UTC(),
				"updated_by": actorID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return s.db.Bind(tx, organizationID).Where("id = ?", id).First(&model).Error
	})
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// GetEntity loads an entity with its fields and outgoing relationships
func (s *GormUniversalStore) GetEntity(ctx context.Context, organizationID, id uuid.UUID) (*universal.EntityAggregate, error) {
	var entity models.EntityModel
	if err := s.db.For(ctx, organizationID).Where("id = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	var fieldModels []models.DynamicDataModel
	if err := s.db.For(ctx, organizationID).
		Where("entity_id = ?", id).
		Order("created_at, field_name").
		Find(&fieldModels).Error; err != nil {
		return nil, err
	}
	var relModels []models.RelationshipModel
	if err := s.db.For(ctx, organizationID).
		Where("source_entity_id = ?", id).
		Order("created_at, id").
		Find(&relModels).Error; err != nil {
		return nil, err
	}

	agg := &universal.EntityAggregate{Entity: *entity.ToDomain()}
	for i := range fieldModels {
		agg.Fields = append(agg.Fields, *fieldModels[i].ToDomain())
	}
	for i := range relModels {
		agg.Relationships = append(agg.Relationships, *relModels[i].ToDomain())
	}
	return agg, nil
}

// ListEntities lists entity headers matching the query
func (s *GormUniversalStore) ListEntities(ctx context.Context, query universal.EntityQuery) ([]universal.Entity, int64, error) {
	db := s.db.For(ctx, query.OrganizationID).Model(&models.EntityModel{})
	if query.EntityType != "" {
		db = db.Where("entity_type = ?", query.EntityType)
	}
	if query.SmartCodePrefix != "" {
		db = db.Scopes(smartCodePrefix(query.SmartCodePrefix))
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	} else {
		db = db.Scopes(orgscope.Visible(query.IncludeArchived))
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := query.Page.Normalize()
	var rows []models.EntityModel
	if err := db.Order("created_at DESC, id").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	entities := make([]universal.Entity, 0, len(rows))
	for i := range rows {
		entities = append(entities, *rows[i].ToDomain())
	}
	return entities, total, nil
}

// CreateTransaction inserts the header and all lines
func (s *GormUniversalStore) CreateTransaction(ctx context.Context, txn *universal.Transaction) error {
	return s.db.Transaction(ctx, txn.OrganizationID, func(tx *gorm.DB) error {
		var header models.TransactionModel
		header.FromDomain(txn)
		if err := tx.Create(&header).Error; err != nil {
			return err
		}
		return createLines(tx, txn.Lines, txn.UpdatedAt)
	})
}

// UpdateTransaction replaces the header and, when replaceLines is set, the line set
func (s *GormUniversalStore) UpdateTransaction(ctx context.Context, txn *universal.Transaction, replaceLines bool) error {
	orgID := txn.OrganizationID
	return s.db.Transaction(ctx, orgID, func(tx *gorm.DB) error {
		result := s.db.Bind(tx, orgID).
			Model(&models.TransactionModel{}).
			Where("id = ?", txn.ID).
			Updates(map[string]any{
				"transaction_type": txn.TransactionType,
				"transaction_code": txn.TransactionCode,
				"transaction_date": txn.TransactionDate,
				"smart_code":       txn.SmartCode,
				"total_amount":     txn.TotalAmount,
				"currency":         txn.Currency,
				"status":           txn.Status,
				"metadata":         models.EncodeJSON(txn.Metadata),
				"source_entity_id": txn.SourceEntityID,
				"target_entity_id": txn.TargetEntityID,
				"updated_at":       txn.UpdatedAt,
				"updated_by":       txn.UpdatedBy,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		if !replaceLines {
			return nil
		}
		if err := s.db.Bind(tx, orgID).
			Where("transaction_id = ?", txn.ID).
			Delete(&models.TransactionLineModel{}).Error; err != nil {
			return err
		}
		return createLines(tx, txn.Lines, txn.UpdatedAt)
	})
}

// SetTransactionStatus transitions a transaction's status. Rows are never deleted.
func (s *GormUniversalStore) SetTransactionStatus(ctx context.Context, organizationID, id uuid.UUID, status string, actorID uuid.UUID) (*universal.Transaction, error) {
	err := s.db.Transaction(ctx, organizationID, func(tx *gorm.DB) error {
		result := s.db.Bind(tx, organizationID).
			Model(&models.TransactionModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":     status,
				"updated_at": time.Now().UTC(),
				"updated_by": actorID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTransaction(ctx, organizationID, id)
}

// GetTransaction loads a transaction with its lines in line order
func (s *GormUniversalStore) GetTransaction(ctx context.Context, organizationID, id uuid.UUID) (*universal.Transaction, error) {
	var header models.TransactionModel
	if err := s.db.For(ctx, organizationID).Where("id = ?", id).First(&header).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	var lineModels []models.TransactionLineModel
	if err := s.db.For(ctx, organizationID).
		Where("transaction_id = ?", id).
		Order("line_number").
		Find(&lineModels).Error; err != nil {
		return nil, err
	}

	txn := header.ToDomain()
	for i := range lineModels {
		txn.Lines = append(txn.Lines, lineModels[i].ToDomain())
	}
	return txn, nil
}

// ListTransactions lists transaction headers matching the query
func (s *GormUniversalStore) ListTransactions(ctx context.Context, query universal.TransactionQuery) ([]universal.Transaction, int64, error) {
	db := s.db.For(ctx, query.OrganizationID).Model(&models.TransactionModel{})
	if query.TransactionType != "" {
		db = db.Where("transaction_type = ?", query.TransactionType)
	}
	if query.SmartCodePrefix != "" {
		db = db.Scopes(smartCodePrefix(query.SmartCodePrefix))
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	} else {
		db = db.Scopes(orgscope.Visible(query.IncludeArchived))
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := query.Page.Normalize()
	var rows []models.TransactionModel
	if err := db.Order("transaction_date DESC, id").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	txns := make([]universal.Transaction, 0, len(rows))
	for i := range rows {
		txns = append(txns, *rows[i].ToDomain())
	}
	return txns, total, nil
}

func createFields(tx *gorm.DB, fields []universal.DynamicField) error {
	if len(fields) == 0 {
		return nil
	}
	rows := make([]models.DynamicDataModel, len(fields))
	for i := range fields {
		rows[i].FromDomain(&fields[i])
	}
	return tx.Create(&rows).Error
}

// upsertFields writes fields keyed by (entity_id, field_name). Every value
// slot is rewritten so a type change leaves exactly one populated.
func upsertFields(tx *gorm.DB, fields []universal.DynamicField) error {
	if len(fields) == 0 {
		return nil
	}
	rows := make([]models.DynamicDataModel, len(fields))
	for i := range fields {
		rows[i].FromDomain(&fields[i])
	}
	columns := append([]string{"smart_code", "updated_at", "updated_by"}, models.ValueColumns...)
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_id"}, {Name: "field_name"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&rows).Error
}

// createRelationships inserts edges after checking every endpoint is an
// entity of the writing organization
func (s *GormUniversalStore) createRelationships(tx *gorm.DB, orgID uuid.UUID, rels []universal.Relationship) error {
	if len(rels) == 0 {
		return nil
	}
	endpoints := make(map[uuid.UUID]struct{}, len(rels)+1)
	for _, r := range rels {
		endpoints[r.SourceEntityID] = struct{}{}
		endpoints[r.TargetEntityID] = struct{}{}
	}
	ids := make([]uuid.UUID, 0, len(endpoints))
	for id := range endpoints {
		ids = append(ids, id)
	}
	var found int64
	if err := s.db.Bind(tx, orgID).
		Model(&models.EntityModel{}).
		Where("id IN ?", ids).
		Count(&found).Error; err != nil {
		return err
	}
	if found != int64(len(ids)) {
		return universal.ErrRelationshipTargetNotFound
	}

	rows := make([]models.RelationshipModel, len(rels))
	for i := range rels {
		rows[i].FromDomain(&rels[i])
	}
	return tx.Create(&rows).Error
}

func createLines(tx *gorm.DB, lines []universal.TransactionLine, at time.Time) error {
	if len(lines) == 0 {
		return nil
	}
	rows := make([]models.TransactionLineModel, len(lines))
	for i := range lines {
		rows[i].FromDomain(&lines[i], at)
	}
	return tx.Create(&rows).Error
}
