// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memstore_test

import (
	"testing"

	"github.com/diffeo/go-framestore/document/documenttest"
	"github.com/diffeo/go-framestore/memstore"
	"github.com/stretchr/testify/suite"
)

// Suite runs the generic document store tests against the in-memory
// backend.
type Suite struct {
	documenttest.Suite
}

// SetupSuite does one-time test setup, creating the backend.
func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	s.Store = memstore.NewWithClock(s.Clock)
}

// TestStore runs the generic document store tests.
func TestStore(t *testing.T) {
	suite.Run(t, &Suite{})
}
