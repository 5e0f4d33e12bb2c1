package postgres_test

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/sagarc03/stashbox"
	"github.com/sagarc03/stashbox/database/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	testDB     *sql.DB
	testDBOnce sync.Once
	testDBErr  error
)

// getSharedTestDatabase returns a handle to a postgres container shared by
// every test in the package.
func getSharedTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	testDBOnce.Do(func() {
		ctx := context.Background()

		pgContainer, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("testdb"),
			pgcontainer.WithUsername("testuser"),
			pgcontainer.WithPassword("testpass"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			testDBErr = fmt.Errorf("start postgres container: %w", err)
			return
		}

		connectionStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = testcontainers.TerminateContainer(pgContainer)
			testDBErr = fmt.Errorf("connection string: %w", err)
			return
		}

		db, err := sql.Open(postgres.DriverName, connectionStr)
		if err != nil {
			_ = testcontainers.TerminateContainer(pgContainer)
			testDBErr = fmt.Errorf("open database: %w", err)
			return
		}

		testDB = db
	})

	if testDBErr != nil {
		t.Fatalf("shared postgres: %v", testDBErr)
	}

	return testDB
}

// getRandomString generates a random string for unique test identifiers.
func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	assert.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

// uniqueTables returns table names no other test uses and drops them when
// the test ends.
func uniqueTables(t *testing.T, db *sql.DB) stashbox.Tables {
	t.Helper()

	suffix := getRandomString(t)
	tables := stashbox.Tables{
		Tokens:  "tokens_" + suffix,
		Objects: "objects_" + suffix,
		Views:   "views_" + suffix,
	}

	t.Cleanup(func() {
		_ = postgres.DropTables(context.Background(), db, tables)
	})

	return tables
}
