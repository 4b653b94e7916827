// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package doccache_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/diffeo/go-framestore/doccache"
	"github.com/diffeo/go-framestore/document/documenttest"
	"github.com/diffeo/go-framestore/memstore"
)

// Suite runs the generic document store tests against a cache-wrapped
// in-memory backend, checking that the wrapper stays transparent when
// every write goes through it.
type Suite struct {
	documenttest.Suite
}

// SetupSuite does one-time test setup, creating the backend.
func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	s.Store = doccache.New(memstore.NewWithClock(s.Clock), 16)
}

// TestStore runs the generic document store tests.
func TestStore(t *testing.T) {
	suite.Run(t, &Suite{})
}
