package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/monitordev/monitor/internal/errors"
	"github.com/monitordev/monitor/internal/types"
)

// Collection is a typed view over one document table. PT is the
// pointer form of the document type, which carries the Doc methods.
type Collection[T any, PT interface {
	Doc
	*T
}] struct {
	db    *sql.DB
	table string
}

// Typed collection shorthands.
type (
	ServerCollection     = Collection[types.Server, *types.Server]
	BuildCollection      = Collection[types.Build, *types.Build]
	DeploymentCollection = Collection[types.Deployment, *types.Deployment]
	RepoCollection       = Collection[types.Repo, *types.Repo]
	BuilderCollection    = Collection[types.Builder, *types.Builder]
	UpdateCollection     = Collection[types.Update, *types.Update]
	UserCollection       = Collection[types.User, *types.User]
	TagCollection        = Collection[types.CustomTag, *types.CustomTag]
)

func newTypedCollection[T any, PT interface {
	Doc
	*T
}](db *sql.DB, table string) *Collection[T, PT] {
	return &Collection[T, PT]{db: db, table: table}
}

// FindOptions control ordering and limits on GetSome.
type FindOptions struct {
	// SortPath is a JSON field path to order by, e.g. "start_ts".
	SortPath string
	SortDesc bool
	Limit    int64
}

// CreateOne persists a new document and returns its id. An empty id
// is assigned a fresh one. Unique index violations map to
// DuplicateKey.
func (c *Collection[T, PT]) CreateOne(ctx context.Context, doc PT) (string, error) {
	if doc.DocID() == "" {
		doc.SetDocID(uuid.NewString())
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(errors.KindInternal, "failed to encode document", err)
	}
	_, err = c.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (?, ?)`, c.table),
		doc.DocID(), string(data),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", errors.Wrap(errors.KindDuplicateKey,
				fmt.Sprintf("duplicate key in %s", c.table), err)
		}
		return "", errors.Wrap(errors.KindBackend,
			fmt.Sprintf("failed to insert into %s", c.table), err)
	}
	return doc.DocID(), nil
}

// GetOne returns the document with the given id.
func (c *Collection[T, PT]) GetOne(ctx context.Context, id string) (PT, error) {
	var data string
	err := c.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, c.table), id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.KindNotFound, "no document %s in %s", id, c.table)
	}
	if err != nil {
		return nil, errors.Wrap(errors.KindBackend,
			fmt.Sprintf("failed to query %s", c.table), err)
	}
	doc := PT(new(T))
	if err := json.Unmarshal([]byte(data), doc); err != nil {
		return nil, errors.Wrap(errors.KindInternal, "failed to decode document", err)
	}
	return doc, nil
}

// UpdateOne replaces the document with the given id.
func (c *Collection[T, PT]) UpdateOne(ctx context.Context, id string, doc PT) error {
	doc.SetDocID(id)
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(errors.KindInternal, "failed to encode document", err)
	}
	res, err := c.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET data = ? WHERE id = ?`, c.table),
		string(data), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrap(errors.KindDuplicateKey,
				fmt.Sprintf("duplicate key in %s", c.table), err)
		}
		return errors.Wrap(errors.KindBackend,
			fmt.Sprintf("failed to update %s", c.table), err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.Newf(errors.KindNotFound, "no document %s in %s", id, c.table)
	}
	return nil
}

// Patch sets individual fields, addressed by dotted JSON paths, on
// the document with the given id. The read-modify-write runs in one
// transaction.
func (c *Collection[T, PT]) Patch(ctx context.Context, id string, fields map[string]any) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.KindBackend, "failed to begin patch", err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, c.table), id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return errors.Newf(errors.KindNotFound, "no document %s in %s", id, c.table)
	}
	if err != nil {
		return errors.Wrap(errors.KindBackend,
			fmt.Sprintf("failed to query %s", c.table), err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return errors.Wrap(errors.KindInternal, "failed to decode document", err)
	}
	for path, value := range fields {
		setPath(doc, strings.Split(path, "."), value)
	}
	patched, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(errors.KindInternal, "failed to encode document", err)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET data = ? WHERE id = ?`, c.table),
		string(patched), id,
	); err != nil {
		return errors.Wrap(errors.KindBackend,
			fmt.Sprintf("failed to patch %s", c.table), err)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.KindBackend, "failed to commit patch", err)
	}
	return nil
}

// DeleteOne removes the document with the given id.
func (c *Collection[T, PT]) DeleteOne(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.table), id,
	)
	if err != nil {
		return errors.Wrap(errors.KindBackend,
			fmt.Sprintf("failed to delete from %s", c.table), err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.Newf(errors.KindNotFound, "no document %s in %s", id, c.table)
	}
	return nil
}

// GetSome returns every document matching the filter.
func (c *Collection[T, PT]) GetSome(ctx context.Context, filter Filter, opts *FindOptions) ([]PT, error) {
	where, args, err := filter.compile()
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT data FROM %s%s`, c.table, where)
	if opts != nil && opts.SortPath != "" {
		if err := validatePath(opts.SortPath); err != nil {
			return nil, err
		}
		dir := "ASC"
		if opts.SortDesc {
			dir = "DESC"
		}
		query += fmt.Sprintf(` ORDER BY json_extract(data, '$.%s') %s`, opts.SortPath, dir)
	}
	if opts != nil && opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, opts.Limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.KindBackend,
			fmt.Sprintf("failed to query %s", c.table), err)
	}
	defer rows.Close()

	var docs []PT
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrap(errors.KindBackend,
				fmt.Sprintf("failed to scan %s row", c.table), err)
		}
		doc := PT(new(T))
		if err := json.Unmarshal([]byte(data), doc); err != nil {
			return nil, errors.Wrap(errors.KindInternal, "failed to decode document", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.KindBackend,
			fmt.Sprintf("failed to iterate %s", c.table), err)
	}
	return docs, nil
}

// Count returns the number of documents matching the filter.
func (c *Collection[T, PT]) Count(ctx context.Context, filter Filter) (int64, error) {
	where, args, err := filter.compile()
	if err != nil {
		return 0, err
	}
	var count int64
	err = c.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, c.table, where), args...,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(errors.KindBackend,
			fmt.Sprintf("failed to count %s", c.table), err)
	}
	return count, nil
}

// setPath writes value at the dotted path, creating intermediate
// objects as needed.
func setPath(doc map[string]any, path []string, value any) {
	if len(path) == 1 {
		doc[path[0]] = normalizeJSONValue(value)
		return
	}
	child, ok := doc[path[0]].(map[string]any)
	if !ok {
		child = map[string]any{}
		doc[path[0]] = child
	}
	setPath(child, path[1:], value)
}

// normalizeJSONValue round-trips structured values through JSON so
// patched fields land in the document in their serialized form.
func normalizeJSONValue(value any) any {
	switch value.(type) {
	case nil, bool, string, float64, int, int64:
		return value
	}
	data, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return value
	}
	return out
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
