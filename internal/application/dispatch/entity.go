package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/domain/universal"
	"github.com/hera/backend/internal/infrastructure/telemetry"
)

// DispatchEntity runs a generic operation against the entity family
func (d *Dispatcher) DispatchEntity(ctx context.Context, caller Caller, req EntityRequest) (result *EntityResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, string(FamilyEntities), strings.ToLower(string(req.Operation)))
	defer span.End()
	defer func() { d.observe(ctx, span, FamilyEntities, req.Operation, caller, err) }()

	nested := make([]string, 0, len(req.DynamicFields)+len(req.Relationships))
	for _, f := range req.DynamicFields {
		nested = append(nested, f.OrganizationID)
	}
	for _, r := range req.Relationships {
		nested = append(nested, r.OrganizationID)
	}

	orgID, actorID, err := d.admit(ctx, FamilyEntities, req.Operation, caller, req.EntityData.OrganizationID, nested)
	if err != nil {
		return nil, err
	}

	switch req.Operation {
	case OpCreate:
		return d.createEntity(ctx, orgID, actorID, req)
	case OpRead:
		return d.readEntity(ctx, orgID, req)
	case OpUpdate:
		return d.updateEntity(ctx, orgID, actorID, req)
	case OpDelete:
		return d.setEntityStatus(ctx, orgID, actorID, req, universal.StatusDeleted)
	default:
		return d.setEntityStatus(ctx, orgID, actorID, req, universal.StatusArchived)
	}
}

func (d *Dispatcher) createEntity(ctx context.Context, orgID, actorID uuid.UUID, req EntityRequest) (*EntityResult, error) {
	data := req.EntityData
	if strings.TrimSpace(data.EntityType) == "" {
		return nil, missingField("entity_type")
	}
	if strings.TrimSpace(data.EntityName) == "" {
		return nil, missingField("entity_name")
	}
	if err := d.validateHeader(data.SmartCode, data.EntityType, "entity_data"); err != nil {
		return nil, err
	}

	status := data.Status
	if status == "" {
		status = universal.StatusActive
	}
	entity := universal.Entity{
		BaseEntity:     shared.NewBaseEntity(actorID),
		OrganizationID: orgID,
		EntityType:     data.EntityType,
		EntityName:     data.EntityName,
		EntityCode:     data.EntityCode,
		SmartCode:      data.SmartCode,
		Status:         status,
		Metadata:       data.Metadata,
	}

	fields, err := d.buildFields(entity.ID, orgID, actorID, req.DynamicFields)
	if err != nil {
		return nil, err
	}
	rels, err := d.buildRelationships(entity.ID, orgID, actorID, req.Relationships)
	if err != nil {
		return nil, err
	}

	agg := &universal.EntityAggregate{Entity: entity, Fields: fields, Relationships: rels}
	if err := d.store.CreateEntity(ctx, agg); err != nil {
		return nil, storeError(err)
	}
	return entityResult(OpCreate, agg)
}

func (d *Dispatcher) readEntity(ctx context.Context, orgID uuid.UUID, req EntityRequest) (*EntityResult, error) {
	data := req.EntityData
	if data.ID != nil {
		agg, err := d.store.GetEntity(ctx, orgID, *data.ID)
		if err != nil {
			return nil, storeError(err)
		}
		return entityResult(OpRead, agg)
	}

	page := req.Options.Page()
	items, total, err := d.store.ListEntities(ctx, universal.EntityQuery{
		OrganizationID:  orgID,
		EntityType:      data.EntityType,
		SmartCodePrefix: data.SmartCode,
		Status:          data.Status,
		IncludeArchived: req.Options.IncludeArchived,
		Page:            page,
	})
	if err != nil {
		return nil, storeError(err)
	}
	responses := make([]EntityResponse, 0, len(items))
	for i := range items {
		resp, err := ToEntityResponse(&universal.EntityAggregate{Entity: items[i]})
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	paginated := shared.NewPaginated(responses, total, page)
	return &EntityResult{Operation: OpRead, Page: &paginated}, nil
}

func (d *Dispatcher) updateEntity(ctx context.Context, orgID, actorID uuid.UUID, req EntityRequest) (*EntityResult, error) {
	data := req.EntityData
	if data.ID == nil {
		return nil, ErrIDRequired.WithDetail("operation", string(OpUpdate))
	}
	if data.SmartCode != "" {
		if err := d.validateCode(data.SmartCode, "entity_data"); err != nil {
			return nil, err
		}
	}

	fields, err := d.buildFields(*data.ID, orgID, actorID, req.DynamicFields)
	if err != nil {
		return nil, err
	}
	rels, err := d.buildRelationships(*data.ID, orgID, actorID, req.Relationships)
	if err != nil {
		return nil, err
	}

	agg, err := d.store.GetEntity(ctx, orgID, *data.ID)
	if err != nil {
		return nil, storeError(err)
	}
	entity := &agg.Entity
	if data.EntityType != "" {
		entity.EntityType = data.EntityType
	}
	if data.EntityName != "" {
		entity.EntityName = data.EntityName
	}
	if data.EntityCode != "" {
		entity.EntityCode = data.EntityCode
	}
	if data.SmartCode != "" {
		entity.SmartCode = data.SmartCode
	}
	if data.Status != "" {
		entity.Status = data.Status
	}
	if data.Metadata != nil {
		entity.Metadata = data.Metadata
	}
	if data.SmartCode != "" || data.EntityType != "" {
		if err := d.validateHeader(entity.SmartCode, entity.EntityType, "entity_data"); err != nil {
			return nil, err
		}
	}
	entity.Touch(actorID)

	if err := d.store.UpdateEntity(ctx, entity, fields, rels); err != nil {
		return nil, storeError(err)
	}

	agg.Fields = mergeFields(agg.Fields, fields)
	agg.Relationships = append(agg.Relationships, rels...)
	result, err := entityResult(OpUpdate, agg)
	if err != nil {
		return nil, err
	}
	result.FieldCount = len(fields)
	result.RelationshipCount = len(rels)
	return result, nil
}

func (d *Dispatcher) setEntityStatus(ctx context.Context, orgID, actorID uuid.UUID, req EntityRequest, status string) (*EntityResult, error) {
	if req.EntityData.ID == nil {
		return nil, ErrIDRequired.WithDetail("operation", string(req.Operation))
	}
	entity, err := d.store.SetEntityStatus(ctx, orgID, *req.EntityData.ID, status, actorID)
	if err != nil {
		return nil, storeError(err)
	}
	return entityResult(req.Operation, &universal.EntityAggregate{Entity: *entity})
}

// buildFields translates field assignments into single-slot dynamic fields
func (d *Dispatcher) buildFields(entityID, orgID, actorID uuid.UUID, inputs []FieldInput) ([]universal.DynamicField, error) {
	fields := make([]universal.DynamicField, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.FieldName)
		if name == "" {
			return nil, missingField(fmt.Sprintf("dynamic_fields[%d].field_name", i))
		}
		if _, dup := seen[name]; dup {
			return nil, ErrInvalidRequest.
				WithDetail("field", fmt.Sprintf("dynamic_fields[%d].field_name", i)).
				WithHint("field " + name + " is assigned more than once")
		}
		seen[name] = struct{}{}

		if err := d.validateCode(in.SmartCode, "dynamic_fields."+name); err != nil {
			return nil, err
		}
		value, err := universal.ParseFieldValue(name, in.FieldType, in.FieldValue)
		if err != nil {
			return nil, err
		}
		fields = append(fields, universal.DynamicField{
			BaseEntity:     shared.NewBaseEntity(actorID),
			EntityID:       entityID,
			OrganizationID: orgID,
			FieldName:      name,
			Value:          value,
			SmartCode:      in.SmartCode,
		})
	}
	return fields, nil
}

// buildRelationships translates assignments into edges from sourceID
func (d *Dispatcher) buildRelationships(sourceID, orgID, actorID uuid.UUID, inputs []RelationshipInput) ([]universal.Relationship, error) {
	rels := make([]universal.Relationship, 0, len(inputs))
	for i, in := range inputs {
		if in.ToEntityID == uuid.Nil {
			return nil, missingField(fmt.Sprintf("relationships[%d].to_entity_id", i))
		}
		if strings.TrimSpace(in.RelationshipType) == "" {
			return nil, missingField(fmt.Sprintf("relationships[%d].relationship_type", i))
		}
		if err := d.validateCode(in.SmartCode, "relationships."+in.RelationshipType); err != nil {
			return nil, err
		}
		active := true
		if in.IsActive != nil {
			active = *in.IsActive
		}
		rels = append(rels, universal.Relationship{
			BaseEntity:       shared.NewBaseEntity(actorID),
			OrganizationID:   orgID,
			SourceEntityID:   sourceID,
			TargetEntityID:   in.ToEntityID,
			RelationshipType: in.RelationshipType,
			IsActive:         active,
			SmartCode:        in.SmartCode,
		})
	}
	return rels, nil
}

// mergeFields upserts updates into existing by field name
func mergeFields(existing, updates []universal.DynamicField) []universal.DynamicField {
	index := make(map[string]int, len(existing))
	for i, f := range existing {
		index[f.FieldName] = i
	}
	for _, u := range updates {
		if i, ok := index[u.FieldName]; ok {
			u.ID = existing[i].ID
			u.CreatedAt = existing[i].CreatedAt
			u.CreatedBy = existing[i].CreatedBy
			existing[i] = u
			continue
		}
		index[u.FieldName] = len(existing)
		existing = append(existing, u)
	}
	return existing
}

func entityResult(op Operation, agg *universal.EntityAggregate) (*EntityResult, error) {
	resp, err := ToEntityResponse(agg)
	if err != nil {
		return nil, err
	}
	return &EntityResult{
		Operation:         op,
		Entity:            &resp,
		FieldCount:        len(agg.Fields),
		RelationshipCount: len(agg.Relationships),
	}, nil
}
