package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
	"github.com/alejandroruanova/feed-ingestion-service/internal/pkg/logger"
)

func setupRunRepository(t *testing.T) *RunRepository {
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

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.IngestionRun{}))

	return NewRunRepository(db, logger.Discard())
}

func TestRunRepository_Lifecycle(t *testing.T) {
	repo := setupRunRepository(t)
	ctx := context.Background()

	run := &domain.IngestionRun{
		FileName:   "feed.xml",
		FileHash:   "abc123",
		Family:     string(domain.FamilyHierarchical),
		Collection: "xml_items",
	}
	require.NoError(t, repo.Create(ctx, run))
	assert.Equal(t, domain.RunStatusRunning, run.Status)

	run.ParsedRecords = 3
	run.InsertedRecords = 3
	run.Complete(nil)
	require.NoError(t, repo.Update(ctx, run))

	latest, err := repo.LatestByCollection(ctx, "xml_items")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, run.ID, latest.ID)
	assert.Equal(t, domain.RunStatusCompleted, latest.Status)
	assert.Equal(t, 3, latest.InsertedRecords)

	count, err := repo.CountByFileHash(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	none, err := repo.LatestByCollection(ctx, "csv_items")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRunRepository_ListRecent(t *testing.T) {
	repo := setupRunRepository(t)
	ctx := context.Background()

	for _, name := range []string{"a.csv", "b.csv", "c.csv"} {
		run := &domain.IngestionRun{FileName: name, Family: string(domain.FamilyDelimited), Collection: "csv_items"}
		require.NoError(t, repo.Create(ctx, run))
		time.Sleep(5 * time.Millisecond)
	}

	failed := &domain.IngestionRun{FileName: "d.csv", Family: string(domain.FamilyDelimited), Collection: "csv_items"}
	require.NoError(t, repo.Create(ctx, failed))
	failed.Complete(errors.New("STORE_UNAVAILABLE: store insert failed"))
	require.NoError(t, repo.Update(ctx, failed))

	runs, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "d.csv", runs[0].FileName)
	assert.Equal(t, domain.RunStatusFailed, runs[0].Status)
	assert.Equal(t, "c.csv", runs[1].FileName)
}
