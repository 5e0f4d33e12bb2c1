package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sagarc03/stashbox"
	"github.com/sagarc03/stashbox/predicate"
	"github.com/sagarc03/stashbox/store"
)

// TokenRepo stores access tokens.
type TokenRepo struct {
	store     *store.Store
	table     string
	timeValue func(time.Time) any
}

// Get returns the token with the given value, or stashbox.ErrNotFound.
func (r *TokenRepo) Get(ctx context.Context, value string) (stashbox.AccessToken, error) {
	row, err := r.store.SelectOne(ctx, store.SelectQuery{
		Table: r.table,
		Where: predicate.Where(predicate.E("value", value)),
	})
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return stashbox.AccessToken{}, fmt.Errorf("get token: %w", stashbox.ErrNotFound)
		}
		return stashbox.AccessToken{}, fmt.Errorf("get token: %w", err)
	}

	return tokenFromRow(row)
}

// Create inserts a new token.
func (r *TokenRepo) Create(ctx context.Context, tok stashbox.AccessToken) error {
	_, err := r.store.Insert(ctx, r.table, store.Values{
		"value":       tok.Value,
		"user_id":     tok.UserID,
		"revoked":     tok.Revoked,
		"usage_count": tok.UsageCount,
		"created_at":  r.timeValue(tok.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

// IncrementUsage adds one to the token's usage counter.
func (r *TokenRepo) IncrementUsage(ctx context.Context, value string) error {
	res, err := r.store.Increment(ctx, r.table, "usage_count", predicate.Where(predicate.E("value", value)))
	if err != nil {
		return fmt.Errorf("increment token usage: %w", err)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("increment token usage: %w", stashbox.ErrNotFound)
	}
	return nil
}

// Revoke marks a token as revoked.
func (r *TokenRepo) Revoke(ctx context.Context, value string) error {
	res, err := r.store.Update(ctx, r.table,
		store.Values{"revoked": true},
		predicate.Where(predicate.E("value", value)),
	)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("revoke token: %w", stashbox.ErrNotFound)
	}
	return nil
}

// List returns the tokens of userID, or every token when userID is empty,
// newest first.
func (r *TokenRepo) List(ctx context.Context, userID string) ([]stashbox.AccessToken, error) {
	var where predicate.Expr
	if userID != "" {
		where = predicate.Where(predicate.E("user_id", userID))
	}

	rows, err := r.store.Select(ctx, store.SelectQuery{
		Table: r.table,
		Where: where,
		Sort:  []store.Order{{Column: "created_at", Desc: true}, {Column: "value"}},
	})
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}

	tokens := make([]stashbox.AccessToken, 0, len(rows))
	for _, row := range rows {
		tok, err := tokenFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("list tokens: %w", err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// Import inserts tokens in one statement. Tokens that already exist get
// their owner and revocation state replaced; usage counts are kept.
func (r *TokenRepo) Import(ctx context.Context, tokens []stashbox.AccessToken) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}

	records := make([]store.Values, len(tokens))
	for i, tok := range tokens {
		records[i] = store.Values{
			"value":       tok.Value,
			"user_id":     tok.UserID,
			"revoked":     tok.Revoked,
			"usage_count": tok.UsageCount,
			"created_at":  r.timeValue(tok.CreatedAt),
		}
	}

	res, err := r.store.Upsert(ctx, store.UpsertQuery{
		Table:    r.table,
		Records:  records,
		Conflict: []string{"value"},
		Update:   []string{"user_id", "revoked"},
	})
	if err != nil {
		return 0, fmt.Errorf("import tokens: %w", err)
	}
	return res.RowsAffected, nil
}

func tokenFromRow(row store.Row) (stashbox.AccessToken, error) {
	var tok stashbox.AccessToken
	var err error

	if tok.Value, err = row.String("value"); err != nil {
		return tok, err
	}
	if tok.UserID, err = row.String("user_id"); err != nil {
		return tok, err
	}
	if tok.Revoked, err = row.Bool("revoked"); err != nil {
		return tok, err
	}
	if tok.UsageCount, err = row.Int64("usage_count"); err != nil {
		return tok, err
	}
	if tok.CreatedAt, err = row.Time("created_at"); err != nil {
		return tok, err
	}
	return tok, nil
}

// ObjectRepo stores StoredObject records.
type ObjectRepo struct {
	store     *store.Store
	table     string
	views     string
	timeValue func(time.Time) any
}

// Create inserts a new record.
func (r *ObjectRepo) Create(ctx context.Context, obj stashbox.StoredObject) error {
	_, err := r.store.Insert(ctx, r.table, store.Values{
		"id":           obj.ID.String(),
		"storage_path": obj.Path,
		"url":          obj.URL,
		"user_id":      obj.UserID,
		"filename":     obj.Filename,
		"mime_type":    obj.MimeType,
		"size_bytes":   obj.SizeBytes,
		"etag":         obj.ETag,
		"created_at":   r.timeValue(obj.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	return nil
}

// Get returns the record with the given id, or stashbox.ErrNotFound.
func (r *ObjectRepo) Get(ctx context.Context, id uuid.UUID) (stashbox.StoredObject, error) {
	row, err := r.store.SelectOne(ctx, store.SelectQuery{
		Table: r.table,
		Where: predicate.Where(predicate.E("id", id.String())),
	})
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return stashbox.StoredObject{}, fmt.Errorf("get object: %w", stashbox.ErrNotFound)
		}
		return stashbox.StoredObject{}, fmt.Errorf("get object: %w", err)
	}

	return objectFromRow(row)
}

// Existing reports which of ids have a record.
func (r *ObjectRepo) Existing(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	found := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	groups := make([]predicate.And, len(ids))
	for i, id := range ids {
		groups[i] = predicate.Where(predicate.E("id", id.String()))
	}

	rows, err := r.store.Select(ctx, store.SelectQuery{
		Columns: []string{"id"},
		Table:   r.table,
		Where:   predicate.AnyOf(groups...),
	})
	if err != nil {
		return nil, fmt.Errorf("existing objects: %w", err)
	}

	for _, row := range rows {
		s, err := row.String("id")
		if err != nil {
			return nil, fmt.Errorf("existing objects: %w", err)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("existing objects: %w", err)
		}
		found[id] = true
	}
	return found, nil
}

// ListByUser returns a page of userID's objects with their view counts,
// newest first.
func (r *ObjectRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]stashbox.ObjectSummary, error) {
	rows, err := r.store.Select(ctx, store.SelectQuery{
		Columns: []string{r.table + ".*", "COUNT(" + r.views + ".id) AS view_count"},
		Table:   r.table,
		Where:   predicate.Where(predicate.E(r.table+".user_id", userID)),
		Join: &store.Join{
			Kind:    store.LeftJoin,
			Table:   r.views,
			Left:    r.table + ".id",
			Right:   r.views + ".object_id",
			GroupBy: []string{r.table + ".id"},
		},
		Sort: []store.Order{
			{Column: r.table + ".created_at", Desc: true},
			{Column: r.table + ".id"},
		},
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}

	out := make([]stashbox.ObjectSummary, 0, len(rows))
	for _, row := range rows {
		obj, err := objectFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		views, err := row.Int64("view_count")
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		out = append(out, stashbox.ObjectSummary{StoredObject: obj, Views: views})
	}
	return out, nil
}

func objectFromRow(row store.Row) (stashbox.StoredObject, error) {
	var obj stashbox.StoredObject

	idStr, err := row.String("id")
	if err != nil {
		return obj, err
	}
	if obj.ID, err = uuid.Parse(idStr); err != nil {
		return obj, fmt.Errorf("column id: %w", err)
	}

	for col, dst := range map[string]*string{
		"storage_path": &obj.Path,
		"url":          &obj.URL,
		"user_id":      &obj.UserID,
		"filename":     &obj.Filename,
		"mime_type":    &obj.MimeType,
		"etag":         &obj.ETag,
	} {
		if *dst, err = row.String(col); err != nil {
			return obj, err
		}
	}

	if obj.SizeBytes, err = row.Int64("size_bytes"); err != nil {
		return obj, err
	}
	if obj.CreatedAt, err = row.Time("created_at"); err != nil {
		return obj, err
	}
	return obj, nil
}

// ViewRepo stores ViewEvent records.
type ViewRepo struct {
	store     *store.Store
	table     string
	timeValue func(time.Time) any
}

// Record inserts ev.
func (r *ViewRepo) Record(ctx context.Context, ev stashbox.ViewEvent) error {
	data := string(ev.RequestData)
	if data == "" {
		data = "{}"
	}

	_, err := r.store.Insert(ctx, r.table, store.Values{
		"object_id":    ev.ObjectID,
		"request_data": data,
		"created_at":   r.timeValue(ev.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	return nil
}

// Count returns how many views were recorded for objectID.
func (r *ViewRepo) Count(ctx context.Context, objectID string) (int64, error) {
	row, err := r.store.SelectOne(ctx, store.SelectQuery{
		Columns: []string{"COUNT(*) AS n"},
		Table:   r.table,
		Where:   predicate.Where(predicate.E("object_id", objectID)),
	})
	if err != nil {
		return 0, fmt.Errorf("count views: %w", err)
	}
	return row.Int64("n")
}
