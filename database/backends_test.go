package database_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/stashbox"
	"github.com/sagarc03/stashbox/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := pgcontainer.Run(ctx,
		"postgres:18-alpine",
		pgcontainer.WithDatabase("testdb"),
		pgcontainer.WithUsername("testuser"),
		pgcontainer.WithPassword("testpass"),
		pgcontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func startMySQL(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mysql:8.4",
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "testpass",
				"MYSQL_DATABASE":      "testdb",
			},
			WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(3 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start mysql container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("root:testpass@tcp(%s:%s)/testdb", host, port.Port())
}

func TestBackend_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	exerciseBackend(t, database.Config{Type: "postgres", DSN: startPostgres(t), PoolSize: 4})
}

func TestBackend_MySQL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mysql container test in short mode")
	}

	exerciseBackend(t, database.Config{Type: "mysql", DSN: startMySQL(t), PoolSize: 4})
}

func TestBackend_SQLite(t *testing.T) {
	cfg := newTestConfig(t)
	exerciseBackend(t, cfg)
}

// exerciseBackend runs the same repository round trips against any backend.
func exerciseBackend(t *testing.T, cfg database.Config) {
	t.Helper()
	ctx := context.Background()

	suffix := uuid.NewString()[:8]
	cfg.Tables = stashbox.Tables{
		Tokens:  "tokens_" + suffix,
		Objects: "objects_" + suffix,
		Views:   "views_" + suffix,
	}

	db, err := database.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Validate(ctx))
	t.Cleanup(func() { _ = db.DropTables(context.Background()) })

	created := time.Date(2025, 6, 1, 9, 30, 0, 250000000, time.UTC)

	t.Run("tokens", func(t *testing.T) {
		tokens := db.Tokens()
		value := uuid.NewString()

		require.NoError(t, tokens.Create(ctx, stashbox.AccessToken{Value: value, UserID: "alice", CreatedAt: created}))
		require.NoError(t, tokens.IncrementUsage(ctx, value))
		require.NoError(t, tokens.IncrementUsage(ctx, value))

		got, err := tokens.Get(ctx, value)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.UserID)
		assert.Equal(t, int64(2), got.UsageCount)
		assert.False(t, got.Revoked)
		assert.True(t, created.Equal(got.CreatedAt), "created_at %s", got.CreatedAt)

		_, err = tokens.Import(ctx, []stashbox.AccessToken{
			{Value: value, UserID: "bob", Revoked: true, CreatedAt: created},
			{Value: uuid.NewString(), UserID: "bob", CreatedAt: created},
		})
		require.NoError(t, err)

		got, err = tokens.Get(ctx, value)
		require.NoError(t, err)
		assert.Equal(t, "bob", got.UserID)
		assert.True(t, got.Revoked)
		assert.Equal(t, int64(2), got.UsageCount)

		list, err := tokens.List(ctx, "bob")
		require.NoError(t, err)
		assert.Len(t, list, 2)

		_, err = tokens.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, stashbox.ErrNotFound)
	})

	t.Run("objects", func(t *testing.T) {
		objects := db.Objects()
		views := db.Views()

		older := newObject("carol", created)
		newer := newObject("carol", created.Add(time.Hour))
		require.NoError(t, objects.Create(ctx, older))
		require.NoError(t, objects.Create(ctx, newer))

		got, err := objects.Get(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, older.Path, got.Path)
		assert.Equal(t, older.SizeBytes, got.SizeBytes)
		assert.True(t, older.CreatedAt.Equal(got.CreatedAt))

		found, err := objects.Existing(ctx, []uuid.UUID{older.ID, uuid.New(), newer.ID})
		require.NoError(t, err)
		assert.Len(t, found, 2)

		require.NoError(t, views.Record(ctx, stashbox.ViewEvent{
			ObjectID:    older.ID.String(),
			RequestData: []byte(`{"ip":"198.51.100.4"}`),
			CreatedAt:   time.Now(),
		}))

		page, err := objects.ListByUser(ctx, "carol", 10, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, newer.ID, page[0].ID)
		assert.Equal(t, int64(0), page[0].Views)
		assert.Equal(t, older.ID, page[1].ID)
		assert.Equal(t, int64(1), page[1].Views)
	})
}
