// Package predicate compiles structured filter descriptions into
// parameterized SQL WHERE clauses.
//
// A filter is a small tree of equality conditions. A single group of
// conditions is joined with AND; a sequence of groups is joined with OR:
//
//	predicate.Where(predicate.E("user_id", "u1"), predicate.E("revoked", false))
//	// WHERE "user_id" = $1 AND "revoked" = $2
//
//	predicate.AnyOf(
//		predicate.Where(predicate.E("id", a)),
//		predicate.Where(predicate.E("id", b)),
//	)
//	// WHERE ("id" = $1) OR ("id" = $2)
//
// Values are never interpolated into the SQL text; they are returned as
// positional arguments in the order their placeholders appear. Column names
// are validated and quoted by the target Dialect.
package predicate
