package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
	"github.com/alejandroruanova/feed-ingestion-service/internal/pkg/config"
	"github.com/alejandroruanova/feed-ingestion-service/internal/pkg/logger"
)

func setupPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("products_db"),
		tcpostgres.WithUsername("ingest"),
		tcpostgres.WithPassword("secret"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	db, err := NewPostgresDB(config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "ingest",
		Password:        "secret",
		Database:        "products_db",
		SSLMode:         "disable",
		MaxConnections:  4,
		MinConnections:  1,
		MaxConnLifetime: 30,
		MaxConnIdleTime: 5,
	}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestPostgresStore_InsertFindDelete(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	store := NewPostgresStore(db, 2, logger.Discard())
	collection, err := store.Collection(ctx, "csv_items")
	require.NoError(t, err)
	require.NoError(t, collection.EnsureIndex(ctx, "id"))
	require.NoError(t, collection.EnsureIndex(ctx, "id"))

	ids, err := collection.InsertMany(ctx, []domain.Record{
		{"id": int64(402983319863), "address": "123 Main St", "0": "402983319863|Widget"},
		{"id": int64(7)},
		{"id": int64(7), "1": "again"},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	found, err := collection.FindBy(ctx, "id", int64(402983319863))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, json.Number("402983319863"), found[0]["id"])
	assert.Equal(t, "123 Main St", found[0]["address"])

	deleted, err := collection.DeleteBy(ctx, "id", int64(7))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	found, err = collection.FindBy(ctx, "id", "7")
	require.NoError(t, err)
	assert.Empty(t, found)

	var indexCount int64
	require.NoError(t, db.DB.Raw(
		"SELECT COUNT(*) FROM pg_indexes WHERE tablename = ? AND indexname = ?",
		"csv_items", "idx_csv_items_id").Scan(&indexCount).Error)
	assert.Equal(t, int64(1), indexCount)
}

func TestPostgresStore_NestedRecords(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	store := NewPostgresStore(db, 0, logger.Discard())
	collection, err := store.Collection(ctx, "xml_items")
	require.NoError(t, err)

	record := domain.Record{
		"id":              "B00VINDBJK",
		"item_basic_data": map[string]any{"item_unique_id": "B00VINDBJK"},
		"item_tag":        []any{"office", "lighting"},
	}
	_, err = collection.InsertMany(ctx, []domain.Record{record})
	require.NoError(t, err)

	found, err := collection.FindBy(ctx, "id", "B00VINDBJK")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, []any{"office", "lighting"}, found[0]["item_tag"])
}

func TestPostgresStore_RejectsUnsafeNames(t *testing.T) {
	store := NewPostgresStore(&PostgresDB{}, 0, logger.Discard())

	_, err := store.Collection(context.Background(), "items; DROP TABLE x")
	assert.Error(t, err)
}

func TestPostgresDB_Health(t *testing.T) {
	db := setupPostgres(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, db.Ping(ctx))
	assert.Equal(t, "up", db.Health(ctx)["status"])
	require.NoError(t, db.AutoMigrate(&domain.IngestionRun{}))
}
