package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hera/backend/internal/application/actorguard"
	"github.com/hera/backend/internal/domain/guardrail"
	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/domain/universal"
)

const (
	entityCode       = "HERA.SALON.CUSTOMER.ENTITY.v1"
	fieldCode        = "HERA.SALON.CUSTOMER.FIELD.PHONE.v1"
	relationshipCode = "HERA.SALON.CUSTOMER.REL.STYLIST.v1"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store    *MockAtomicStore
	guard    *MockActorGuard
	recorder *recordingRecorder
	d        *Dispatcher
	org      uuid.UUID
	actor    uuid.UUID
	caller   Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, guardrail.DefaultPolicyConfig())
}

func newFixtureWith(t *testing.T, cfg guardrail.PolicyConfig) *fixture {
	t.Helper()
	f := &fixture{
		store:    new(MockAtomicStore),
		guard:    new(MockActorGuard),
		recorder: &recordingRecorder{},
		org:      uuid.New(),
		actor:    uuid.New(),
	}
	f.caller = Caller{ActorID: &f.actor, OrganizationID: &f.org}
	policy, err := guardrail.NewPolicy(cfg)
	require.NoError(t, err)
	f.d = NewDispatcher(f.store, f.guard, policy,
		WithRecorder(f.recorder),
		WithClock(func() time.Time { return fixedNow }))
	return f
}

func (f *fixture) allow() {
	f.guard.On("Require", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	var de *shared.DomainError
	require.True(t, errors.As(err, &de), "expected a domain error, got %v", err)
	return de.Code
}

func createEntityRequest(org uuid.UUID) EntityRequest {
	return EntityRequest{
		Operation: OpCreate,
		EntityData: EntityData{
			OrganizationID: org.String(),
			EntityType:     "customer",
			EntityName:     "Jane Doe",
			SmartCode:      entityCode,
		},
		DynamicFields: []FieldInput{
			{FieldName: "phone", FieldValue: json.RawMessage(`"+971500000000"`), SmartCode: fieldCode},
			{FieldName: "visits", FieldValue: json.RawMessage(`12`), SmartCode: "HERA.SALON.CUSTOMER.FIELD.VISITS.v1"},
		},
		Relationships: []RelationshipInput{
			{ToEntityID: uuid.New(), RelationshipType: "preferred_stylist", SmartCode: relationshipCode},
		},
	}
}

func TestDispatchEntity_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("persists entity with fields and relationships", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		req := createEntityRequest(f.org)

		f.store.On("CreateEntity", ctx, mock.MatchedBy(func(agg *universal.EntityAggregate) bool {
			return agg.Entity.OrganizationID == f.org &&
				agg.Entity.Status == universal.StatusActive &&
				*agg.Entity.CreatedBy == f.actor &&
				len(agg.Fields) == 2 &&
				agg.Fields[0].FieldType() == universal.FieldTypeText &&
				agg.Fields[1].FieldType() == universal.FieldTypeNumber &&
				agg.Fields[0].EntityID == agg.Entity.ID &&
				len(agg.Relationships) == 1 &&
				agg.Relationships[0].SourceEntityID == agg.Entity.ID &&
				agg.Relationships[0].IsActive
		})).Return(nil)

		result, err := f.d.DispatchEntity(ctx, f.caller, req)
		require.NoError(t, err)
		require.NotNil(t, result.Entity)
		assert.Equal(t, "Jane Doe", result.Entity.EntityName)
		assert.Equal(t, 2, result.FieldCount)
		assert.Equal(t, 1, result.RelationshipCount)
		assert.Equal(t, []string{"entities.CREATE=ok"}, f.recorder.outcomes)
		f.guard.AssertCalled(t, "Require", ctx, "entities.CREATE", &f.actor, &f.org)
		f.store.AssertExpectations(t)
	})

	t.Run("client supplied id is replaced", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		supplied := uuid.New()
		req := createEntityRequest(f.org)
		req.EntityData.ID = &supplied

		f.store.On("CreateEntity", ctx, mock.MatchedBy(func(agg *universal.EntityAggregate) bool {
			return agg.Entity.ID != supplied && agg.Entity.ID != uuid.Nil
		})).Return(nil)

		result, err := f.d.DispatchEntity(ctx, f.caller, req)
		require.NoError(t, err)
		assert.NotEqual(t, supplied, result.Entity.ID)
		f.store.AssertExpectations(t)
	})

	t.Run("guard rejection stops the request", func(t *testing.T) {
		f := newFixture(t)
		f.guard.On("Require", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(actorguard.ErrInvalidActorNullUUID)

		_, err := f.d.DispatchEntity(ctx, f.caller, createEntityRequest(f.org))
		assert.Equal(t, "INVALID_ACTOR_NULL_UUID", codeOf(t, err))
		f.store.AssertNotCalled(t, "CreateEntity", mock.Anything, mock.Anything)
		assert.Equal(t, []string{"entities.CREATE=rejected"}, f.recorder.outcomes)
	})

	t.Run("organization scope violations", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(req *EntityRequest)
			code   string
		}{
			{"missing header organization", func(req *EntityRequest) { req.EntityData.OrganizationID = "" }, "ORG_FILTER_MISSING"},
			{"foreign header organization", func(req *EntityRequest) { req.EntityData.OrganizationID = uuid.NewString() }, "ORG_FILTER_MISMATCH"},
			{"foreign field organization", func(req *EntityRequest) { req.DynamicFields[0].OrganizationID = uuid.NewString() }, "ORG_FILTER_MISMATCH"},
			{"foreign relationship organization", func(req *EntityRequest) { req.Relationships[0].OrganizationID = uuid.NewString() }, "ORG_FILTER_MISMATCH"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				f.allow()
				req := createEntityRequest(f.org)
				tt.mutate(&req)

				_, err := f.d.DispatchEntity(ctx, f.caller, req)
				assert.Equal(t, tt.code, codeOf(t, err))
				assert.Equal(t, []string{tt.code}, f.recorder.rejections)
				f.store.AssertNotCalled(t, "CreateEntity", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("payload validation", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(req *EntityRequest)
			code   string
		}{
			{"missing entity smart code", func(req *EntityRequest) { req.EntityData.SmartCode = "" }, "SMARTCODE_MISSING"},
			{"lowercase entity smart code", func(req *EntityRequest) { req.EntityData.SmartCode = "hera.salon.customer.entity.v1" }, "SMARTCODE_REGEX_FAIL"},
			{"malformed field smart code", func(req *EntityRequest) { req.DynamicFields[1].SmartCode = "HERA.SALON.v1" }, "SMARTCODE_REGEX_FAIL"},
			{"missing relationship smart code", func(req *EntityRequest) { req.Relationships[0].SmartCode = "" }, "SMARTCODE_MISSING"},
			{"missing entity type", func(req *EntityRequest) { req.EntityData.EntityType = " " }, "INVALID_REQUEST"},
			{"missing entity name", func(req *EntityRequest) { req.EntityData.EntityName = "" }, "INVALID_REQUEST"},
			{"duplicate field name", func(req *EntityRequest) { req.DynamicFields[1].FieldName = "phone" }, "INVALID_REQUEST"},
			{"field type mismatch", func(req *EntityRequest) {
				req.DynamicFields[0].FieldType = universal.FieldTypeBoolean
			}, "FIELD_TYPE_MISMATCH"},
			{"non-finite number field", func(req *EntityRequest) {
				req.DynamicFields[1].FieldType = universal.FieldTypeNumber
				req.DynamicFields[1].FieldValue = json.RawMessage(`"NaN"`)
			}, "FIELD_TYPE_MISMATCH"},
			{"missing relationship target", func(req *EntityRequest) { req.Relationships[0].ToEntityID = uuid.Nil }, "INVALID_REQUEST"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				f.allow()
				req := createEntityRequest(f.org)
				tt.mutate(&req)

				_, err := f.d.DispatchEntity(ctx, f.caller, req)
				assert.Equal(t, tt.code, codeOf(t, err))
				f.store.AssertNotCalled(t, "CreateEntity", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("smart code rejection names its location", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		req := createEntityRequest(f.org)
		req.DynamicFields[0].SmartCode = "HERA.BAD"

		_, err := f.d.DispatchEntity(ctx, f.caller, req)
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "dynamic_fields.phone", de.Detail["location"])
	})

	t.Run("store errors pass through verbatim", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		native := errors.New(`duplicate key value violates unique constraint "core_entities_org_code_key"`)
		f.store.On("CreateEntity", ctx, mock.Anything).Return(native)

		_, err := f.d.DispatchEntity(ctx, f.caller, createEntityRequest(f.org))
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, shared.CategoryStore, de.Category)
		assert.Equal(t, native.Error(), de.Message)
		assert.ErrorIs(t, err, native)
		assert.Equal(t, []string{"entities.CREATE=error"}, f.recorder.outcomes)
	})

	t.Run("relationship target errors keep their code", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		f.store.On("CreateEntity", ctx, mock.Anything).Return(universal.ErrRelationshipTargetNotFound)

		_, err := f.d.DispatchEntity(ctx, f.caller, createEntityRequest(f.org))
		assert.Equal(t, "RELATIONSHIP_TARGET_NOT_FOUND", codeOf(t, err))
	})
}

func TestDispatchEntity_Read(t *testing.T) {
	ctx := context.Background()

	t.Run("by id returns fields", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		id := uuid.New()
		agg := &universal.EntityAggregate{
			Entity: universal.Entity{BaseEntity: shared.BaseEntity{ID: id}, OrganizationID: f.org, EntityName: "Jane"},
			Fields: []universal.DynamicField{{FieldName: "vip", Value: universal.BooleanValue(true)}},
		}
		f.store.On("GetEntity", ctx, f.org, id).Return(agg, nil)

		result, err := f.d.DispatchEntity(ctx, f.caller, EntityRequest{
			Operation:  OpRead,
			EntityData: EntityData{ID: &id, OrganizationID: f.org.String()},
		})
		require.NoError(t, err)
		require.Len(t, result.Entity.DynamicFields, 1)
		assert.Equal(t, universal.FieldTypeBoolean, result.Entity.DynamicFields[0].FieldType)
		assert.JSONEq(t, `true`, string(result.Entity.DynamicFields[0].FieldValue))
		assert.Equal(t, 1, result.FieldCount)
	})

	t.Run("unrenderable stored value fails instead of rendering null", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		id := uuid.New()
		agg := &universal.EntityAggregate{
			Entity: universal.Entity{BaseEntity: shared.BaseEntity{ID: id}, OrganizationID: f.org},
			Fields: []universal.DynamicField{{FieldName: "score", Value: universal.NumberValue(math.Inf(1))}},
		}
		f.store.On("GetEntity", ctx, f.org, id).Return(agg, nil)

		result, err := f.d.DispatchEntity(ctx, f.caller, EntityRequest{
			Operation:  OpRead,
			EntityData: EntityData{ID: &id, OrganizationID: f.org.String()},
		})
		assert.Nil(t, result)
		assert.Equal(t, "FIELD_VALUE_NOT_RENDERABLE", codeOf(t, err))
	})

	t.Run("missing row is not found", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		id := uuid.New()
		f.store.On("GetEntity", ctx, f.org, id).Return(nil, shared.ErrNotFound)

		_, err := f.d.DispatchEntity(ctx, f.caller, EntityRequest{
			Operation:  OpRead,
			EntityData: EntityData{ID: &id, OrganizationID: f.org.String()},
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("read without organization is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.allow()

		_, err := f.d.DispatchEntity(ctx, f.caller, EntityRequest{Operation: OpRead})
		assert.Equal(t, "ORG_FILTER_MISSING", codeOf(t, err))
	})

	t.Run("list applies filters and paging", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		f.store.On("ListEntities", ctx, universal.EntityQuery{
			OrganizationID:  f.org,
			EntityType:      "customer",
			SmartCodePrefix: "HERA.SALON",
			IncludeArchived: true,
			Page:            shared.Page{Limit: shared.MaxPageLimit, Offset: 0},
		}).Return([]universal.Entity{{OrganizationID: f.org, EntityName: "A"}}, int64(7), nil)

		result, err := f.d.DispatchEntity(ctx, f.caller, EntityRequest{
			Operation: OpRead,
			EntityData: EntityData{
				OrganizationID: f.org.String(),
				EntityType:     "customer",
				SmartCode:      "HERA.SALON",
			},
			Options: Options{IncludeArchived: true, Limit: 500, Offset: -3},
		})
		require.NoError(t, err)
		require.NotNil(t, result.Page)
		assert.Equal(t, int64(7), result.Page.Total)
		assert.Len(t, result.Page.Items, 1)
		assert.Nil(t, result.Entity)
	})
}

func TestDispatchEntity_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("merges header and upserts fields", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		id := uuid.New()
		phoneID := uuid.New()
		existing := &universal.EntityAggregate{
			Entity: universal.Entity{
				BaseEntity:     shared.BaseEntity{ID: id},
				OrganizationID: f.org,
				EntityType:     "customer",
				EntityName:     "Jane",
				SmartCode:      entityCode,
				Status:         universal.StatusActive,
			},
			Fields: []universal.DynamicField{
				{BaseEntity: shared.BaseEntity{ID: phoneID}, FieldName: "phone", Value: universal.TextValue("old")},
				{FieldName: "email", Value: universal.TextValue("jane@example.com")},
			},
		}
		f.store.On("GetEntity", ctx, f.org, id).Return(existing, nil)
		f.store.On("UpdateEntity", ctx,
			mock.MatchedBy(func(e *universal.Entity) bool {
				return e.EntityName == "Jane Smith" && e.EntityType == "customer" && *e.UpdatedBy == f.actor
			}),
			mock.MatchedBy(func(fields []universal.DynamicField) bool {
				return len(fields) == 1 && fields[0].FieldName == "phone" && fields[0].EntityID == id
			}),
			mock.MatchedBy(func(rels []universal.Relationship) bool { return len(rels) == 0 }),
		).Return(nil)

		result, err := f.d.DispatchEntity(ctx, f.caller, EntityRequest{
			Operation:  OpUpdate,
			EntityData: EntityData{ID: &id, OrganizationID: f.org.String(), EntityName: "Jane Smith"},
			DynamicFields: []FieldInput{
				{FieldName: "phone", FieldValue: json.RawMessage(`"new"`), SmartCode: fieldCode},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "Jane Smith", result.Entity.EntityName)
		require.Len(t, result.Entity.DynamicFields, 2)
		assert.Equal(t, phoneID, result.Entity.DynamicFields[0].ID)
		assert.JSONEq(t, `"new"`, string(result.Entity.DynamicFields[0].FieldValue))
		assert.Equal(t, 1, result.FieldCount)
		f.store.AssertExpectations(t)
	})

	t.Run("requires id", func(t *testing.T) {
		f := newFixture(t)
		f.allow()

		_, err := f.d.DispatchEntity(ctx, f.caller, EntityRequest{
			Operation:  OpUpdate,
			EntityData: EntityData{OrganizationID: f.org.String()},
		})
		assert.Equal(t, "ID_REQUIRED", codeOf(t, err))
	})

	t.Run("validates replacement smart code before loading", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		id := uuid.New()

		_, err := f.d.DispatchEntity(ctx, f.caller, EntityRequest{
			Operation:  OpUpdate,
			EntityData: EntityData{ID: &id, OrganizationID: f.org.String(), SmartCode: "HERA.X.v1"},
		})
		assert.Equal(t, "SMARTCODE_REGEX_FAIL", codeOf(t, err))
		f.store.AssertNotCalled(t, "GetEntity", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDispatchEntity_RequiredFamily(t *testing.T) {
	ctx := context.Background()
	cfg := guardrail.DefaultPolicyConfig()
	cfg.RequiredFamilies = map[string]string{"CUSTOMER": "HERA.SALON.CUSTOMER"}

	t.Run("matching family is accepted", func(t *testing.T) {
		f := newFixtureWith(t, cfg)
		f.allow()
		f.store.On("CreateEntity", ctx, mock.Anything).Return(nil)

		_, err := f.d.DispatchEntity(ctx, f.caller, createEntityRequest(f.org))
		require.NoError(t, err)
	})

	t.Run("foreign family is rejected on create", func(t *testing.T) {
		f := newFixtureWith(t, cfg)
		f.allow()
		req := createEntityRequest(f.org)
		req.EntityData.SmartCode = "HERA.SALON.STAFF.ENTITY.v1"

		_, err := f.d.DispatchEntity(ctx, f.caller, req)
		assert.Equal(t, "SMARTCODE_PREFIX_MISMATCH", codeOf(t, err))
		f.store.AssertNotCalled(t, "CreateEntity", mock.Anything, mock.Anything)
	})

	t.Run("type change is checked against the stored code", func(t *testing.T) {
		f := newFixtureWith(t, cfg)
		f.allow()
		id := uuid.New()
		f.store.On("GetEntity", ctx, f.org, id).Return(&universal.EntityAggregate{
			Entity: universal.Entity{
				BaseEntity:     shared.BaseEntity{ID: id},
				OrganizationID: f.org,
				EntityType:     "staff",
				SmartCode:      "HERA.SALON.STAFF.ENTITY.v1",
			},
		}, nil)

		_, err := f.d.DispatchEntity(ctx, f.caller, EntityRequest{
			Operation:  OpUpdate,
			EntityData: EntityData{ID: &id, OrganizationID: f.org.String(), EntityType: "customer"},
		})
		assert.Equal(t, "SMARTCODE_PREFIX_MISMATCH", codeOf(t, err))
		f.store.AssertNotCalled(t, "UpdateEntity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDispatchEntity_StatusTransitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		op     Operation
		status string
	}{
		{OpDelete, universal.StatusDeleted},
		{OpArchive, universal.StatusArchived},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			f := newFixture(t)
			f.allow()
			id := uuid.New()
			f.store.On("SetEntityStatus", ctx, f.org, id, tt.status, f.actor).
				Return(&universal.Entity{BaseEntity: shared.BaseEntity{ID: id}, Status: tt.status}, nil)

			result, err := f.d.DispatchEntity(ctx, f.caller, EntityRequest{
				Operation:  tt.op,
				EntityData: EntityData{ID: &id, OrganizationID: f.org.String()},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.status, result.Entity.Status)
			assert.Equal(t, tt.op, result.Operation)
		})
	}
}

func TestDispatchEntity_UnsupportedOperation(t *testing.T) {
	f := newFixture(t)

	_, err := f.d.DispatchEntity(context.Background(), f.caller, EntityRequest{Operation: "PURGE"})
	assert.Equal(t, "UNSUPPORTED_OPERATION", codeOf(t, err))
	f.guard.AssertNotCalled(t, "Require", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestParseFamily(t *testing.T) {
	family, err := ParseFamily("transactions")
	require.NoError(t, err)
	assert.Equal(t, FamilyTransactions, family)

	_, err = ParseFamily("reports")
	assert.Equal(t, "UNKNOWN_COMMAND_OP", codeOf(t, err))
}
