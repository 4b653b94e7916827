// Package backend provides a standard way to construct a document
// store based on command-line flags.
package backend

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/diffeo/go-framestore/boltstore"
	"github.com/diffeo/go-framestore/document"
	"github.com/diffeo/go-framestore/memstore"
	"github.com/diffeo/go-framestore/mongostore"
	"github.com/diffeo/go-framestore/pgstore"
)

// Backend describes user-visible parameters for the document store
// datasets live in.  This implements the flag.Value interface, and so
// a typical use is
//
//     func main() {
//         backend := backend.Backend{Implementation: "memory"}
//         flag.Var(&backend, "backend", "impl[:address] of the document store")
//         flag.Parse()
//         store, err := backend.Store(context.Background())
//     }
type Backend struct {
	// Implementation holds the name of the implementation; for
	// instance, "memory" or "postgres".
	Implementation string

	// Address holds some backend-specific address, such as a
	// database connect string or a file path.
	Address string
}

// Store connects to the described document store.  This generally
// should be called only once.  If the backend has in-process state,
// such as a database connection pool or an in-memory store, calling
// this multiple times will create multiple copies of that state.  In
// particular, if b.Implementation is "memory", multiple calls to this
// will create multiple independent document "worlds".
func (b *Backend) Store(ctx context.Context) (document.Store, error) {
	switch b.Implementation {
	case "memory":
		return memstore.New(), nil
	case "bolt":
		if b.Address == "" {
			return nil, fmt.Errorf("bolt backend requires a file path")
		}
		return boltstore.New(b.Address)
	case "mongodb":
		if b.Address == "" {
			return nil, fmt.Errorf("mongodb backend requires a connection URI")
		}
		return mongostore.New(ctx, b.Address, mongoDatabase(b.Address))
	case "postgres":
		// An empty address is allowed; the PostgreSQL client
		// library will fall back to its usual environment
		// variables.
		return pgstore.New(b.Address)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", b.Implementation)
	}
}

// mongoDatabase extracts the database name from a MongoDB connection
// URI, falling back to "framestore" if the URI does not name one.
func mongoDatabase(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "framestore"
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		return db
	}
	return "framestore"
}

// String renders a backend description as a string.
func (b *Backend) String() string {
	if b.Address == "" {
		return b.Implementation
	}
	return b.Implementation + ":" + b.Address
}

// Set parses a string into an existing backend description.  The
// string should be of the form "implementation:address", where
// address can be any string.  Set checks to see if the provided
// implementation is any of the known implementations, and returns an
// appropriate error if not.
//
// This is part of the flag.Value interface.  If Set returns a nil
// error then Store() will recognize the implementation, though it
// can still fail to reach whatever the address names.  Neither
// function attempts to validate the address part of the string.
func (b *Backend) Set(param string) error {
	parts := strings.SplitN(param, ":", 2)
	switch parts[0] {
	case "memory", "bolt", "mongodb", "postgres":
	default:
		return fmt.Errorf("unknown storage backend %q", parts[0])
	}
	b.Implementation = parts[0]
	if len(parts) == 2 {
		b.Address = parts[1]
	} else {
		b.Address = ""
	}
	return nil
}
