// Package database connects stashbox to its metadata backend.
//
// Three backends are supported, each with a subpackage holding its
// migrations and schema validation:
//
//   - database/postgres: PostgreSQL through pgx's database/sql driver
//   - database/mysql: MySQL through go-sql-driver/mysql
//   - database/sqlite: SQLite through modernc.org/sqlite
//
// # Usage
//
//	db, err := database.Connect(ctx, database.Config{
//	    Type:     "sqlite",
//	    DSN:      "stashbox.db",
//	    Tables:   stashbox.DefaultTables(),
//	    PoolSize: 10,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// All queries go through a bounded pool.Manager and the store package, so
// the repositories returned by Tokens, Objects and Views work unchanged on
// every backend.
package database
