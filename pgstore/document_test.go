// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package pgstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/diffeo/go-framestore/document/documenttest"
	"github.com/diffeo/go-framestore/pgstore"
	"github.com/stretchr/testify/suite"
)

// Suite runs the generic document store tests against PostgreSQL.
type Suite struct {
	documenttest.Suite
}

// SetupSuite does one-time test setup.  The backend connects with an
// empty connection string, so the usual libpq environment variables
// select the server, as described in
// http://www.postgresql.org/docs/current/static/libpq-envars.html
func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	store, err := pgstore.NewWithClock("", s.Clock)
	s.Require().NoError(err)
	s.Store = store
}

// TearDownSuite closes the connection pool.
func (s *Suite) TearDownSuite() {
	s.Require().NoError(s.Store.Close(context.Background()))
}

// TestStore runs the generic document store tests against a real
// PostgreSQL server.  The tests are skipped if PGHOST is not set.
func TestStore(t *testing.T) {
	if os.Getenv("PGHOST") == "" {
		t.Skip("set PGHOST (and friends) to run PostgreSQL tests")
	}
	suite.Run(t, &Suite{})
}
