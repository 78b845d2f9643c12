//go:build integration

// Package integration runs the access layer against real PostgreSQL and Redis
// instances started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/domain/universal"
	"github.com/hera/backend/internal/infrastructure/migration"
	"github.com/hera/backend/internal/infrastructure/persistence/models"
	"github.com/hera/backend/migrations"
)

const identitySmartCode = "HERA.PLATFORM.IDENTITY.ENTITY.v1"

// platformOrganizationID matches the row seeded by migration 000002
var platformOrganizationID = uuid.Nil

var (
	// Shared container for all tests in the package
	sharedContainer    testcontainers.Container
	sharedContainerMu  sync.Mutex
	sharedContainerDSN string
)

// TestDB is a migrated PostgreSQL database
type TestDB struct {
	DB        *gorm.DB
	SqlDB     *sql.DB
	Container testcontainers.Container
	DSN       string
	t         *testing.T
}

// NewTestDB starts a dedicated PostgreSQL container and applies the embedded migrations
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, err := runPostgres(ctx, "hera_test")
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	db, sqlDB := connectToDatabase(t, dsn)
	runMigrations(t, sqlDB)

	testDB := &TestDB{
		DB:        db,
		SqlDB:     sqlDB,
		Container: container,
		DSN:       dsn,
		t:         t,
	}
	t.Cleanup(testDB.Close)
	return testDB
}

// NewSharedTestDB returns a connection to a container shared by the package.
// Tests using it must create their own organizations so data never overlaps.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	ctx := context.Background()
	if sharedContainer == nil {
		container, err := runPostgres(ctx, "hera_shared_test")
		require.NoError(t, err, "Failed to start shared PostgreSQL container")

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err, "Failed to get connection string")

		sharedContainer = container
		sharedContainerDSN = dsn

		_, sqlDB := connectToDatabase(t, dsn)
		runMigrations(t, sqlDB)
		_ = sqlDB.Close()
	}

	db, sqlDB := connectToDatabase(t, sharedContainerDSN)
	testDB := &TestDB{
		DB:        db,
		SqlDB:     sqlDB,
		Container: sharedContainer,
		DSN:       sharedContainerDSN,
		t:         t,
	}
	t.Cleanup(func() {
		_ = testDB.SqlDB.Close()
	})
	return testDB
}

// Close closes the connection and terminates a dedicated container
func (tdb *TestDB) Close() {
	if tdb.SqlDB != nil {
		_ = tdb.SqlDB.Close()
	}
	if tdb.Container != nil && tdb.Container != sharedContainer {
		if err := tdb.Container.Terminate(context.Background()); err != nil {
			tdb.t.Logf("Warning: Failed to terminate container: %v", err)
		}
	}
}

// CleanupSharedContainer terminates the shared container. Call it from TestMain.
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = sharedContainer.Terminate(ctx)
		sharedContainer = nil
		sharedContainerDSN = ""
	}
}

// CreateOrganization registers a tenant and its ORGANIZATION entity
func (tdb *TestDB) CreateOrganization(name string) uuid.UUID {
	tdb.t.Helper()

	orgID := uuid.New()
	org := models.OrganizationModel{
		RowModel:         models.RowModel{ID: orgID, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()},
		OrganizationName: name,
		OrganizationCode: "ORG_" + orgID.String()[:8],
		Settings:         "{}",
	}
	require.NoError(tdb.t, tdb.DB.Create(&org).Error, "Failed to create organization")

	tdb.createEntity(orgID, orgID, universal.EntityTypeOrganization, name)
	return orgID
}

// CreateActor registers a platform USER mapped to externalUserID
func (tdb *TestDB) CreateActor(externalUserID string) uuid.UUID {
	tdb.t.Helper()

	actorID := uuid.New()
	platform := platformOrganizationID
	tdb.createEntity(actorID, platform, universal.EntityTypeUser, externalUserID)

	field := universal.DynamicField{
		BaseEntity:     baseEntity(uuid.New()),
		EntityID:       actorID,
		OrganizationID: platform,
		FieldName:      universal.ExternalUserIDField,
		Value:          universal.TextValue(externalUserID),
		SmartCode:      "HERA.PLATFORM.IDENTITY.FIELD.SUBJECT.v1",
	}
	var m models.DynamicDataModel
	m.FromDomain(&field)
	require.NoError(tdb.t, tdb.DB.Create(&m).Error, "Failed to create external user id")
	return actorID
}

// AddMembership links actorID to orgID with a USER_MEMBER_OF_ORG edge
func (tdb *TestDB) AddMembership(actorID, orgID uuid.UUID) {
	tdb.t.Helper()

	rel := universal.Relationship{
		BaseEntity:       baseEntity(uuid.New()),
		OrganizationID:   orgID,
		SourceEntityID:   actorID,
		TargetEntityID:   orgID,
		RelationshipType: universal.RelationshipUserMemberOfOrg,
		IsActive:         true,
		SmartCode:        "HERA.PLATFORM.IDENTITY.REL.MEMBER.v1",
	}
	var m models.RelationshipModel
	m.FromDomain(&rel)
	require.NoError(tdb.t, tdb.DB.Create(&m).Error, "Failed to create membership")
}

func (tdb *TestDB) createEntity(id, orgID uuid.UUID, entityType, name string) {
	e := universal.Entity{
		BaseEntity:     baseEntity(id),
		OrganizationID: orgID,
		EntityType:     entityType,
		EntityName:     name,
		SmartCode:      identitySmartCode,
		Status:         universal.StatusActive,
	}
	var m models.EntityModel
	m.FromDomain(&e)
	require.NoError(tdb.t, tdb.DB.Create(&m).Error, "Failed to create %s entity", entityType)
}

func baseEntity(id uuid.UUID) shared.BaseEntity {
	now := time.Now().UTC()
	return shared.BaseEntity{ID: id, CreatedAt: now, UpdatedAt: now}
}

func runPostgres(ctx context.Context, database string) (*tcpostgres.PostgresContainer, error) {
	return tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(database),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
}

func connectToDatabase(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return db, sqlDB
}

func runMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	m, err := migration.NewFromFS(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")
}

// NewTestRedis starts a Redis container and returns a connected client
func NewTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err, "Failed to get redis endpoint")

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}
