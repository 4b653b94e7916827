// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package dataset

import (
	"context"
	"encoding/json"
	"time"

	"github.com/diffeo/go-framestore/document"
)

// fieldSchema implements frame.Schema over the dataset's metadata
// document: the declared frame fields, with a coarse kind inferred
// from the first value each field was declared with.
type fieldSchema struct {
	meta document.Collection
	name string // owning dataset

	kinds map[string]string
	order []string // declaration order
}

func newFieldSchema(meta document.Collection, name string, fields []fieldDef) *fieldSchema {
	sc := &fieldSchema{meta: meta, name: name}
	sc.install(fields)
	return sc
}

func (sc *fieldSchema) install(fields []fieldDef) {
	sc.kinds = make(map[string]string, len(fields))
	sc.order = make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			continue
		}
		if _, ok := sc.kinds[f.Name]; ok {
			continue
		}
		sc.kinds[f.Name] = f.Kind
		sc.order = append(sc.order, f.Name)
	}
}

func (sc *fieldSchema) Has(name string) bool {
	_, ok := sc.kinds[name]
	return ok
}

// Kind returns the recorded kind of a declared field, or "" for an
// undeclared one.
func (sc *fieldSchema) Kind(name string) string {
	return sc.kinds[name]
}

// Add declares a field and persists the updated schema onto the
// dataset's metadata document.
func (sc *fieldSchema) Add(ctx context.Context, name string, value interface{}) error {
	if sc.Has(name) {
		return nil
	}
	sc.kinds[name] = kindOf(value)
	sc.order = append(sc.order, name)
	return sc.persist(ctx)
}

func (sc *fieldSchema) Names() []string {
	names := make([]string, len(sc.order))
	copy(names, sc.order)
	return names
}

// Reload re-reads the declared fields from the metadata document,
// picking up declarations made through other handles on the dataset.
func (sc *fieldSchema) Reload(ctx context.Context) error {
	doc, err := sc.meta.FindOne(ctx, document.Filter{"name": document.Eq(sc.name)})
	if err == document.ErrNotFound {
		return ErrNoDataset
	}
	if err != nil {
		return err
	}
	md, err := decodeMetadata(doc)
	if err != nil {
		return err
	}
	sc.install(md.FrameFields)
	return nil
}

func (sc *fieldSchema) persist(ctx context.Context) error {
	fields := make([]interface{}, 0, len(sc.order))
	for _, name := range sc.order {
		fields = append(fields, document.Document{
			"name": name,
			"kind": sc.kinds[name],
		})
	}
	return sc.meta.BulkWrite(ctx, []document.WriteOp{
		document.UpdateOne{
			Filter: document.Filter{"name": document.Eq(sc.name)},
			Set:    document.Document{"frame_fields": fields},
		},
	})
}

// kindOf infers the coarse kind recorded for a field from a sample
// value, tolerating the numeric representations different backends
// hand back.
func kindOf(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return "object"
	case bool:
		return "bool"
	case string, document.ID:
		return "string"
	case time.Time:
		return "datetime"
	case []interface{}:
		return "list"
	case document.Document, map[string]interface{}:
		return "document"
	case float32, float64:
		return "float"
	case json.Number:
		if _, err := n.Int64(); err == nil {
			return "int"
		}
		return "float"
	}
	if _, ok := document.Int64(v); ok {
		return "int"
	}
	return "object"
}
