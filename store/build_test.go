package store

import (
	"testing"

	"github.com/sagarc03/stashbox/predicate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		dialect  predicate.Dialect
		query    SelectQuery
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "all columns, no filter",
			dialect: predicate.Postgres,
			query:   SelectQuery{Table: "tokens"},
			wantSQL: `SELECT * FROM "tokens"`,
		},
		{
			name:    "columns and filter",
			dialect: predicate.Postgres,
			query: SelectQuery{
				Columns: []string{"revoked", "user_id"},
				Table:   "tokens",
				Where:   predicate.Where(predicate.E("value", "t1")),
			},
			wantSQL:  `SELECT "revoked", "user_id" FROM "tokens" WHERE "value" = $1`,
			wantArgs: []any{"t1"},
		},
		{
			name:    "join group sort limit offset",
			dialect: predicate.SQLite,
			query: SelectQuery{
				Columns: []string{"objects.*", "COUNT(views.id) AS view_count"},
				Table:   "objects",
				Where:   predicate.Where(predicate.E("objects.user_id", "u1")),
				Join: &Join{
					Kind:    LeftJoin,
					Table:   "views",
					Left:    "objects.id",
					Right:   "views.object_id",
					GroupBy: []string{"objects.id"},
				},
				Sort:   []Order{{Column: "objects.created_at", Desc: true}},
				Limit:  10,
				Offset: 20,
			},
			wantSQL: `SELECT "objects".*, COUNT("views"."id") AS "view_count" FROM "objects" ` +
				`LEFT JOIN "views" ON "objects"."id" = "views"."object_id" ` +
				`WHERE "objects"."user_id" = ? GROUP BY "objects"."id" ` +
				`ORDER BY "objects"."created_at" DESC LIMIT 10 OFFSET 20`,
			wantArgs: []any{"u1"},
		},
		{
			name:    "or groups on mysql",
			dialect: predicate.MySQL,
			query: SelectQuery{
				Columns: []string{"id"},
				Table:   "objects",
				Where: predicate.AnyOf(
					predicate.Where(predicate.E("id", "a")),
					predicate.Where(predicate.E("id", "b")),
				),
				Sort: []Order{{Column: "id"}},
			},
			wantSQL:  "SELECT `id` FROM `objects` WHERE (`id` = ?) OR (`id` = ?) ORDER BY `id` ASC",
			wantArgs: []any{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := buildSelect(tt.dialect, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildSelect_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		query SelectQuery
		want  error
	}{
		{"bad table", SelectQuery{Table: "tokens; drop"}, predicate.ErrInvalidIdentifier},
		{"bad column", SelectQuery{Table: "tokens", Columns: []string{"a b"}}, predicate.ErrInvalidIdentifier},
		{"offset without limit", SelectQuery{Table: "tokens", Offset: 5}, ErrInvalidQuery},
		{"negative limit", SelectQuery{Table: "tokens", Limit: -1}, ErrInvalidQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := buildSelect(predicate.Postgres, tt.query)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuildInsert(t *testing.T) {
	sql, args, err := buildInsert(predicate.Postgres, "views", Values{
		"object_id":    "abc",
		"request_data": "{}",
		"created_at":   "now",
	})
	require.NoError(t, err)

	assert.Equal(t, `INSERT INTO "views" ("created_at", "object_id", "request_data") VALUES ($1, $2, $3)`, sql)
	assert.Equal(t, []any{"now", "abc", "{}"}, args)

	_, _, err = buildInsert(predicate.Postgres, "views", Values{})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestBuildUpdate(t *testing.T) {
	sql, args, err := buildUpdate(predicate.Postgres, "tokens",
		Values{"revoked": true},
		predicate.Where(predicate.E("value", "t1")),
	)
	require.NoError(t, err)

	assert.Equal(t, `UPDATE "tokens" SET "revoked" = $1 WHERE "value" = $2`, sql)
	assert.Equal(t, []any{true, "t1"}, args)
}

func TestBuildMutations_Unscoped(t *testing.T) {
	d := predicate.SQLite

	_, _, err := buildUpdate(d, "tokens", Values{"revoked": true}, nil)
	assert.ErrorIs(t, err, ErrUnscoped)

	_, _, err = buildDelete(d, "tokens", predicate.Where())
	assert.ErrorIs(t, err, ErrUnscoped)

	_, _, err = buildIncrement(d, "tokens", "usage_count", predicate.AnyOf())
	assert.ErrorIs(t, err, ErrUnscoped)

	sql, args, err := buildDelete(d, "tokens", predicate.All)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "tokens"`, sql)
	assert.Empty(t, args)
}

func TestBuildIncrement(t *testing.T) {
	sql, args, err := buildIncrement(predicate.MySQL, "tokens", "usage_count",
		predicate.Where(predicate.E("value", "t1")))
	require.NoError(t, err)

	assert.Equal(t, "UPDATE `tokens` SET `usage_count` = `usage_count` + 1 WHERE `value` = ?", sql)
	assert.Equal(t, []any{"t1"}, args)
}

func TestBuildUpsert(t *testing.T) {
	q := UpsertQuery{
		Table: "tokens",
		Records: []Values{
			{"value": "t1", "user_id": "u1", "revoked": false},
			{"value": "t2", "user_id": "u2", "revoked": true},
		},
		Conflict: []string{"value"},
		Update:   []string{"revoked", "user_id"},
	}

	t.Run("postgres", func(t *testing.T) {
		sql, args, err := buildUpsert(predicate.Postgres, q)
		require.NoError(t, err)
		assert.Equal(t,
			`INSERT INTO "tokens" ("revoked", "user_id", "value") VALUES ($1, $2, $3), ($4, $5, $6) `+
				`ON CONFLICT ("value") DO UPDATE SET "revoked" = EXCLUDED."revoked", "user_id" = EXCLUDED."user_id"`,
			sql)
		assert.Equal(t, []any{false, "u1", "t1", true, "u2", "t2"}, args)
	})

	t.Run("mysql", func(t *testing.T) {
		sql, _, err := buildUpsert(predicate.MySQL, q)
		require.NoError(t, err)
		assert.Equal(t,
			"INSERT INTO `tokens` (`revoked`, `user_id`, `value`) VALUES (?, ?, ?), (?, ?, ?) "+
				"ON DUPLICATE KEY UPDATE `revoked` = VALUES(`revoked`), `user_id` = VALUES(`user_id`)",
			sql)
	})

	t.Run("sqlite do nothing", func(t *testing.T) {
		q := q
		q.Update = nil
		sql, _, err := buildUpsert(predicate.SQLite, q)
		require.NoError(t, err)
		assert.Contains(t, sql, `ON CONFLICT ("value") DO NOTHING`)
	})

	t.Run("mismatched records", func(t *testing.T) {
		q := q
		q.Records = []Values{{"value": "t1", "user_id": "u1"}, {"value": "t2", "revoked": true}}
		_, _, err := buildUpsert(predicate.SQLite, q)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	})

	t.Run("missing conflict target", func(t *testing.T) {
		q := q
		q.Conflict = nil
		_, _, err := buildUpsert(predicate.Postgres, q)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	})
}
