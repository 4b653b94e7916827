// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package documenttest provides generic functional tests for the
// document.Store interface.  A typical backend test module needs to
// wrap Suite to create its backend:
//
//     package mybackend
//
//     import (
//             "testing"
//             "github.com/diffeo/go-framestore/document/documenttest"
//             "github.com/stretchr/testify/suite"
//     )
//
//     // Suite is the per-backend generic test suite.
//     type Suite struct{
//             documenttest.Suite
//     }
//
//     // SetupSuite does global setup for the test suite.
//     func (s *Suite) SetupSuite() {
//             s.Suite.SetupSuite()
//             s.Store = NewWithClock(s.Clock)
//     }
//
//     // TestStore runs the document store generic tests.
//     func TestStore(t *testing.T) {
//             suite.Run(t, &Suite{})
//     }
//
// Each test works in its own collection, named after the test, which
// it empties before starting.  Backends with shared servers (MongoDB,
// PostgreSQL) can therefore run the suite repeatedly against the same
// database.
package documenttest

import (
	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-framestore/document"
	"github.com/stretchr/testify/suite"
)

// Suite is the generic document store test suite.
type Suite struct {
	suite.Suite

	// Clock contains the alternate time source to be used in tests.
	// It is pre-initialized to a mock clock.
	Clock *clock.Mock

	// Store contains the backend under test.  It is set by importing
	// packages.
	Store document.Store
}

// SetupSuite does one-time initialization for the test suite.
func (s *Suite) SetupSuite() {
	s.Clock = clock.NewMock()
}
