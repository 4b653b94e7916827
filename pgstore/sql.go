// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package pgstore

// This file contains extremely generic support code for PostgreSQL
// applications: withTx() to do work in a transaction that can be
// retried, scanRows() to loop over the results of a multi-row SELECT,
// helpers to build SELECT statements, and queryParams to manage
// potentially long query parameter lists producing $1, $2, ...

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// withTx calls some function with a database/sql transaction object.
// If f panics or returns a non-nil error, rolls the transaction back;
// otherwise commits it before returning.  Returns the error value from
// f, or some other error related to transaction management.
func withTx(ctx context.Context, s *pgStore, readOnly bool, f func(*sql.Tx) error) (err error) {
	var (
		tx   *sql.Tx
		done bool
	)

	// If we have a failure, roll back; and if that rollback fails
	// and we don't yet have an error, set the error
	defer func() {
		if tx != nil && !done {
			err2 := tx.Rollback()
			if err == nil {
				err = err2
			}
		}
	}()

	// Run in a loop, repeating the work on serialization errors
	for {
		tx, err = s.db.BeginTx(ctx, &sql.TxOptions{
			Isolation: sql.LevelRepeatableRead,
			ReadOnly:  readOnly,
		})
		if err != nil {
			return
		}

		// Call the callback function
		err = f(tx)

		// If that succeeded, commit
		if err == nil {
			err = tx.Commit()
			done = true
		}

		// If we specifically got a serialization error, retry
		if pqerr, ok := err.(*pq.Error); ok {
			if pqerr.Code == "40001" {
				err = tx.Rollback()
				if err == sql.ErrTxDone {
					// We want to roll back, but we
					// can't, because we've already
					// rolled back; not an error
					err = nil
				} else if err != nil {
					return
				}
				tx = nil
				done = false
				continue
			}
		}

		break
	}

	return
}

// scanRows runs an SQL query and calls a function for each row in the
// result.  The callback function should only call the Scan() method on
// the provided Rows object; this function will take care of advancing
// through the list of rows and closing the iterator as required.
func scanRows(rows *sql.Rows, f func() error) (err error) {
	var done bool
	defer func() {
		if !done {
			err2 := rows.Close()
			if err == nil {
				err = err2
			}
		}
	}()

	for rows.Next() {
		err = f()
		if err != nil {
			return
		}
	}
	done = true
	err = rows.Err()
	return
}

// queryAndScan establishes a read-only transaction, runs query on it
// with params, and calls f for each row in it.  It is the common case
// of combining withTx() and scanRows().
func queryAndScan(ctx context.Context, s *pgStore, query string, params queryParams, f func(*sql.Rows) error) error {
	return withTx(ctx, s, true, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, params...)
		if err != nil {
			return err
		}
		return scanRows(rows, func() error {
			return f(rows)
		})
	})
}

// buildSelect constructs a simple SQL SELECT statement by string
// concatenation.  All of the conditions are ANDed together.
func buildSelect(outputs, tables, conditions []string) string {
	query := "SELECT "
	query += strings.Join(outputs, ", ")
	query += " FROM "
	query += strings.Join(tables, ", ")
	if len(conditions) > 0 {
		query += " WHERE "
		query += strings.Join(conditions, " AND ")
	}
	return query
}

// queryParams wraps a list of query parameters.
type queryParams []interface{}

// Param adds a parameter to the query parameter list, returning its
// position as $1, $2, ...
func (qp *queryParams) Param(param interface{}) string {
	*qp = append(*qp, param)
	return fmt.Sprintf("$%v", len(*qp))
}
