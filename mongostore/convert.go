// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mongostore

import (
	"time"

	"github.com/diffeo/go-framestore/document"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// toBSON converts a document to its BSON form without mutating the
// original.  ID values that parse as 24-character hex become real
// ObjectIDs, so queries against them use the native type.
func toBSON(doc document.Document) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = toBSONValue(v)
	}
	return out
}

func toBSONValue(v interface{}) interface{} {
	switch v := v.(type) {
	case document.ID:
		if oid, err := bson.ObjectIDFromHex(string(v)); err == nil {
			return oid
		}
		return string(v)
	case document.Document:
		return toBSON(v)
	case map[string]interface{}:
		return toBSON(document.Document(v))
	case []interface{}:
		out := make(bson.A, len(v))
		for i, e := range v {
			out[i] = toBSONValue(e)
		}
		return out
	default:
		return v
	}
}

// fromBSON converts a decoded BSON document back to the document
// package's types.  ObjectIDs come back as hex ID strings and BSON
// datetimes as UTC time.Time values; the driver may hand us nested
// documents as either bson.M or bson.D depending on how the value was
// decoded, so both are handled.
func fromBSON(raw bson.M) document.Document {
	out := make(document.Document, len(raw))
	for k, v := range raw {
		out[k] = fromBSONValue(v)
	}
	return out
}

func fromBSONValue(v interface{}) interface{} {
	switch v := v.(type) {
	case bson.M:
		return fromBSON(v)
	case bson.D:
		out := make(document.Document, len(v))
		for _, e := range v {
			out[e.Key] = fromBSONValue(e.Value)
		}
		return out
	case map[string]interface{}:
		return fromBSON(bson.M(v))
	case bson.A:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = fromBSONValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = fromBSONValue(e)
		}
		return out
	case bson.ObjectID:
		return document.ID(v.Hex())
	case bson.DateTime:
		return v.Time().UTC()
	case time.Time:
		return v.UTC()
	default:
		return v
	}
}

func toBSONFilter(f document.Filter) bson.M {
	out := make(bson.M, len(f))
	for path, cond := range f {
		out[path] = condBSON(cond)
	}
	return out
}

func condBSON(c document.Cond) interface{} {
	switch c.Op {
	case document.OpNe:
		return bson.M{"$ne": toBSONValue(c.Value)}
	case document.OpIn:
		vals := make(bson.A, len(c.Values))
		for i, v := range c.Values {
			vals[i] = toBSONValue(v)
		}
		return bson.M{"$in": vals}
	case document.OpGt:
		return bson.M{"$gt": toBSONValue(c.Value)}
	case document.OpGte:
		return bson.M{"$gte": toBSONValue(c.Value)}
	case document.OpLt:
		return bson.M{"$lt": toBSONValue(c.Value)}
	case document.OpLte:
		return bson.M{"$lte": toBSONValue(c.Value)}
	case document.OpExists:
		want, _ := c.Value.(bool)
		return bson.M{"$exists": want}
	default:
		return toBSONValue(c.Value)
	}
}

func sortBSON(keys []document.Sort) bson.D {
	out := make(bson.D, len(keys))
	for i, k := range keys {
		dir := 1
		if k.Desc {
			dir = -1
		}
		out[i] = bson.E{Key: k.Field, Value: dir}
	}
	return out
}

// toBSONPipeline translates a pipeline into MongoDB aggregation
// stages.  Collect becomes a $group/$push pair; a grouping over an
// empty stream emits nothing, which is exactly Collect's contract.
func toBSONPipeline(p document.Pipeline) mongo.Pipeline {
	out := make(mongo.Pipeline, 0, len(p))
	for _, stage := range p {
		switch {
		case stage.Match != nil:
			out = append(out, bson.D{{Key: "$match", Value: toBSONFilter(stage.Match)}})

		case len(stage.Select) > 0:
			proj := make(bson.M, len(stage.Select))
			for _, f := range stage.Select {
				proj[f] = 1
			}
			out = append(out, bson.D{{Key: "$project", Value: proj}})

		case len(stage.Exclude) > 0:
			proj := make(bson.M, len(stage.Exclude))
			for _, f := range stage.Exclude {
				proj[f] = 0
			}
			out = append(out, bson.D{{Key: "$project", Value: proj}})

		case stage.FilterElems != nil:
			path := stage.FilterElems.Path
			out = append(out, bson.D{{Key: "$addFields", Value: bson.M{
				path: bson.M{"$filter": bson.M{
					"input": "$" + path,
					"as":    "elem",
					"cond":  elemCondExpr(stage.FilterElems.Cond),
				}},
			}}})

		case len(stage.SortBy) > 0:
			out = append(out, bson.D{{Key: "$sort", Value: sortBSON(stage.SortBy)}})

		case stage.Collect != "":
			out = append(out,
				bson.D{{Key: "$group", Value: bson.M{
					"_id":    nil,
					"values": bson.M{"$push": "$" + stage.Collect},
				}}},
				bson.D{{Key: "$project", Value: bson.M{"_id": 0, "values": 1}}},
			)
		}
	}
	return out
}

// elemCondExpr builds the aggregation expression for a $filter
// condition.  Element paths resolve against the $$elem variable.
func elemCondExpr(cond document.Filter) interface{} {
	exprs := make(bson.A, 0, len(cond))
	for path, c := range cond {
		operand := "$$elem." + path
		var e interface{}
		switch c.Op {
		case document.OpEq:
			e = bson.M{"$eq": bson.A{operand, toBSONValue(c.Value)}}
		case document.OpNe:
			e = bson.M{"$ne": bson.A{operand, toBSONValue(c.Value)}}
		case document.OpIn:
			vals := make(bson.A, len(c.Values))
			for i, v := range c.Values {
				vals[i] = toBSONValue(v)
			}
			e = bson.M{"$in": bson.A{operand, vals}}
		case document.OpGt:
			e = bson.M{"$gt": bson.A{operand, toBSONValue(c.Value)}}
		case document.OpGte:
			e = bson.M{"$gte": bson.A{operand, toBSONValue(c.Value)}}
		case document.OpLt:
			e = bson.M{"$lt": bson.A{operand, toBSONValue(c.Value)}}
		case document.OpLte:
			e = bson.M{"$lte": bson.A{operand, toBSONValue(c.Value)}}
		case document.OpExists:
			want, _ := c.Value.(bool)
			if want {
				e = bson.M{"$ne": bson.A{bson.M{"$type": operand}, "missing"}}
			} else {
				e = bson.M{"$eq": bson.A{bson.M{"$type": operand}, "missing"}}
			}
		}
		exprs = append(exprs, e)
	}
	switch len(exprs) {
	case 0:
		return true
	case 1:
		return exprs[0]
	}
	return bson.M{"$and": exprs}
}
