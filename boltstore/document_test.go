// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package boltstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/diffeo/go-framestore/boltstore"
	"github.com/diffeo/go-framestore/document/documenttest"
	"github.com/stretchr/testify/suite"
)

// Suite runs the generic document store tests against the bolt-backed
// store, using a file in a per-run temporary directory.
type Suite struct {
	documenttest.Suite
}

// SetupSuite does one-time test setup, creating the backend.
func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	path := filepath.Join(s.T().TempDir(), "documents.db")
	store, err := boltstore.NewWithClock(path, s.Clock)
	s.Require().NoError(err)
	s.Store = store
}

// TearDownSuite closes the bolt file.
func (s *Suite) TearDownSuite() {
	s.Require().NoError(s.Store.Close(context.Background()))
}

// TestStore runs the generic document store tests.
func TestStore(t *testing.T) {
	suite.Run(t, &Suite{})
}
