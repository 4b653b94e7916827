// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package pgstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/diffeo/go-framestore/document"
	"github.com/lib/pq"
	uuid "github.com/satori/go.uuid"
)

type pgCollection struct {
	store *pgStore
	name  string
}

func (c *pgCollection) Name() string { return c.name }

// pgRow pairs a decoded document with its row id, so writes can
// address the row directly.
type pgRow struct {
	id  document.ID
	doc document.Document
}

func (c *pgCollection) EnsureKeyIndex(ctx context.Context, fields ...string) error {
	exprs := make([]string, len(fields))
	for i, f := range fields {
		exprs[i] = fieldExpr(f)
	}
	query := "CREATE UNIQUE INDEX IF NOT EXISTS " +
		pq.QuoteIdentifier(indexName(c.name, fields)) +
		" ON documents (" + strings.Join(exprs, ", ") + ")" +
		" WHERE collection = " + pq.QuoteLiteral(c.name)
	_, err := c.store.db.ExecContext(ctx, query)
	return err
}

// fieldExpr produces the SQL expression extracting a document field
// as text.  Dotted paths walk into nested objects.
func fieldExpr(field string) string {
	if strings.Contains(field, ".") {
		segs := strings.Split(field, ".")
		return "(doc #>> " + pq.QuoteLiteral("{"+strings.Join(segs, ",")+"}") + ")"
	}
	return "(doc->>" + pq.QuoteLiteral(field) + ")"
}

// indexName derives a stable, length-safe index name for a unique
// key.  PostgreSQL truncates identifiers at 63 bytes, so long
// collection names get a hash suffix instead of relying on silent
// truncation.
func indexName(collection string, fields []string) string {
	base := collection + "_" + strings.Join(fields, "_")
	clean := make([]rune, 0, len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			clean = append(clean, r)
		default:
			clean = append(clean, '_')
		}
	}
	name := "doc_key_" + string(clean)
	if len(name) > 63 {
		h := fnv.New32a()
		h.Write([]byte(name))
		name = fmt.Sprintf("%.50s_%08x", name, h.Sum32())
	}
	return name
}

func (c *pgCollection) FindOne(ctx context.Context, filter document.Filter) (document.Document, error) {
	rows, err := c.fetch(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, document.ErrNotFound
	}
	return rows[0].doc, nil
}

func (c *pgCollection) Find(ctx context.Context, filter document.Filter, sort ...document.Sort) (document.Cursor, error) {
	rows, err := c.fetch(ctx, filter)
	if err != nil {
		return nil, err
	}
	docs := make([]document.Document, len(rows))
	for i, r := range rows {
		docs[i] = r.doc
	}
	if len(sort) > 0 {
		docs = document.Pipeline{document.SortBy(sort...)}.Apply(docs)
	}
	return document.NewSliceCursor(docs), nil
}

func (c *pgCollection) Aggregate(ctx context.Context, pipe document.Pipeline) (document.Cursor, error) {
	// A leading match stage narrows the scan; the full pipeline
	// still runs over the fetched documents.
	var filter document.Filter
	if len(pipe) > 0 && pipe[0].Match != nil {
		filter = pipe[0].Match
	}
	rows, err := c.fetch(ctx, filter)
	if err != nil {
		return nil, err
	}
	docs := make([]document.Document, len(rows))
	for i, r := range rows {
		docs[i] = r.doc
	}
	return document.NewSliceCursor(pipe.Apply(docs)), nil
}

func (c *pgCollection) InsertMany(ctx context.Context, docs []document.Document) ([]document.ID, error) {
	now := c.store.clock.Now().UTC()
	ids := make([]document.ID, 0, len(docs))
	// Each insert autocommits on its own, so a unique key collision
	// stops the batch but documents before it stay inserted.
	for i, doc := range docs {
		id := document.ID(uuid.NewV4().String())
		raw, err := encodeDoc(doc)
		if err != nil {
			return nil, err
		}
		_, err = c.store.db.ExecContext(ctx,
			"INSERT INTO documents(collection, id, doc, created_at, last_modified_at)"+
				" VALUES($1, $2, $3::jsonb, $4, $5)",
			c.name, string(id), string(raw), now, now)
		if err != nil {
			if pqerr, ok := err.(*pq.Error); ok && pqerr.Code == "23505" {
				return nil, document.BulkError{Errors: []document.WriteError{
					{Index: i, Message: pqerr.Message},
				}}
			}
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *pgCollection) BulkWrite(ctx context.Context, ops []document.WriteOp) error {
	now := c.store.clock.Now().UTC()
	var errs []document.WriteError
	for i, op := range ops {
		var err error
		switch op := op.(type) {
		case document.ReplaceOne:
			err = withTx(ctx, c.store, false, func(tx *sql.Tx) error {
				return c.replaceOne(ctx, tx, op, now)
			})
		case document.UpdateOne:
			err = withTx(ctx, c.store, false, func(tx *sql.Tx) error {
				return c.updateOne(ctx, tx, op, now)
			})
		case document.DeleteOne:
			err = withTx(ctx, c.store, false, func(tx *sql.Tx) error {
				return c.deleteOne(ctx, tx, op)
			})
		}
		if err != nil {
			errs = append(errs, document.WriteError{Index: i, Message: err.Error()})
		}
	}
	if len(errs) > 0 {
		return document.BulkError{Errors: errs}
	}
	return nil
}

func (c *pgCollection) replaceOne(ctx context.Context, tx *sql.Tx, op document.ReplaceOne, now time.Time) error {
	rows, err := c.fetchTx(ctx, tx, op.Filter, true)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		raw, err := encodeDoc(op.Replacement)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE documents SET doc=$1::jsonb, last_modified_at=$2 WHERE collection=$3 AND id=$4",
			string(raw), now, c.name, string(rows[0].id))
		return err
	}
	if !op.Upsert {
		return nil
	}
	stored := document.Clone(op.Replacement)
	// An upserted document keeps the id the filter pinned, the way
	// MongoDB does.
	if pinned, ok := document.UpsertFromFilter(op.Filter)["_id"]; ok {
		stored["_id"] = pinned
	}
	return c.insertOne(ctx, tx, stored, now)
}

func (c *pgCollection) updateOne(ctx context.Context, tx *sql.Tx, op document.UpdateOne, now time.Time) error {
	rows, err := c.fetchTx(ctx, tx, op.Filter, true)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		doc := rows[0].doc
		if err := document.ApplyUpdate(doc, op); err != nil {
			return err
		}
		raw, err := encodeDoc(doc)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE documents SET doc=$1::jsonb, last_modified_at=$2 WHERE collection=$3 AND id=$4",
			string(raw), now, c.name, string(rows[0].id))
		return err
	}
	if !op.Upsert {
		return nil
	}
	stored := document.UpsertFromFilter(op.Filter)
	if err := document.ApplyUpdate(stored, op); err != nil {
		return err
	}
	return c.insertOne(ctx, tx, stored, now)
}

func (c *pgCollection) deleteOne(ctx context.Context, tx *sql.Tx, op document.DeleteOne) error {
	rows, err := c.fetchTx(ctx, tx, op.Filter, true)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	_, err = tx.ExecContext(ctx,
		"DELETE FROM documents WHERE collection=$1 AND id=$2",
		c.name, string(rows[0].id))
	return err
}

// insertOne inserts doc inside an existing transaction, minting an id
// if it does not carry one.
func (c *pgCollection) insertOne(ctx context.Context, tx *sql.Tx, doc document.Document, now time.Time) error {
	id, ok := document.IDOf(doc["_id"])
	if !ok {
		id = document.ID(uuid.NewV4().String())
	}
	raw, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO documents(collection, id, doc, created_at, last_modified_at)"+
			" VALUES($1, $2, $3::jsonb, $4, $5)",
		c.name, string(id), string(raw), now, now)
	return err
}

func (c *pgCollection) DeleteMany(ctx context.Context, filter document.Filter) (int64, error) {
	var count int64
	err := withTx(ctx, c.store, false, func(tx *sql.Tx) error {
		count = 0
		rows, err := c.fetchTx(ctx, tx, filter, true)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]string, len(rows))
		for i, r := range rows {
			ids[i] = string(r.id)
		}
		res, err := tx.ExecContext(ctx,
			"DELETE FROM documents WHERE collection=$1 AND id = ANY($2)",
			c.name, pq.Array(ids))
		if err != nil {
			return err
		}
		count, err = res.RowsAffected()
		return err
	})
	return count, err
}

func (c *pgCollection) Drop(ctx context.Context) error {
	return withTx(ctx, c.store, false, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM documents WHERE collection=$1", c.name)
		return err
	})
}

// fetch returns the decoded documents matching filter, in row id
// order, using a fresh read-only transaction.
func (c *pgCollection) fetch(ctx context.Context, filter document.Filter) ([]pgRow, error) {
	query, params := c.buildQuery(filter, false)
	var out []pgRow
	err := queryAndScan(ctx, c.store, query, params, func(rows *sql.Rows) error {
		row, match, err := c.scanRow(rows, filter)
		if err != nil {
			return err
		}
		if match {
			out = append(out, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// fetchTx is fetch inside an existing transaction, optionally locking
// the matched rows.
func (c *pgCollection) fetchTx(ctx context.Context, tx *sql.Tx, filter document.Filter, forUpdate bool) ([]pgRow, error) {
	query, params := c.buildQuery(filter, forUpdate)
	rows, err := tx.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	var out []pgRow
	err = scanRows(rows, func() error {
		row, match, err := c.scanRow(rows, filter)
		if err != nil {
			return err
		}
		if match {
			out = append(out, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pgCollection) buildQuery(filter document.Filter, forUpdate bool) (string, queryParams) {
	params := queryParams{}
	query := buildSelect(
		[]string{"id", "doc", "created_at", "last_modified_at"},
		[]string{"documents"},
		c.pushdown(&params, filter),
	)
	query += " ORDER BY id"
	if forUpdate {
		query += " FOR UPDATE"
	}
	return query, params
}

// pushdown translates the easy equality conditions into SQL, always
// including the collection restriction.  The caller still re-checks
// the full filter against each decoded document.
func (c *pgCollection) pushdown(params *queryParams, filter document.Filter) []string {
	conds := []string{"collection=" + params.Param(c.name)}
	for path, cond := range filter {
		if cond.Op != document.OpEq || strings.Contains(path, ".") {
			continue
		}
		if path == "_id" {
			if id, ok := document.IDOf(cond.Value); ok {
				conds = append(conds, "id="+params.Param(string(id)))
			}
			continue
		}
		if s, ok := textValue(cond.Value); ok {
			conds = append(conds, "doc->>"+pq.QuoteLiteral(path)+"="+params.Param(s))
		}
	}
	return conds
}

func textValue(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case document.ID:
		return string(s), true
	}
	return "", false
}

func (c *pgCollection) scanRow(rows *sql.Rows, filter document.Filter) (pgRow, bool, error) {
	var (
		id       string
		raw      []byte
		created  time.Time
		modified time.Time
	)
	if err := rows.Scan(&id, &raw, &created, &modified); err != nil {
		return pgRow{}, false, err
	}
	doc, err := decodeDoc(raw, document.ID(id), created, modified)
	if err != nil {
		return pgRow{}, false, err
	}
	return pgRow{id: document.ID(id), doc: doc}, filter.Matches(doc), nil
}

// encodeDoc marshals doc for storage, dropping the fields the table
// carries in real columns.
func encodeDoc(doc document.Document) ([]byte, error) {
	stripped := make(document.Document, len(doc))
	for k, v := range doc {
		switch k {
		case "_id", "_created_at", "_last_modified_at":
			continue
		}
		stripped[k] = v
	}
	return json.Marshal(stripped)
}

func decodeDoc(raw []byte, id document.ID, created, modified time.Time) (document.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc document.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	doc["_id"] = id
	doc["_created_at"] = created.UTC()
	doc["_last_modified_at"] = modified.UTC()
	return doc, nil
}
