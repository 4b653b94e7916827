// Regression tests for rest.go.
//
// Main tests are really by running the end-to-end path, driven from
// the frameclient package.  This only contains special-case bug
// tests.
//
// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frameserver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/diffeo/go-framestore/dataset"
	"github.com/diffeo/go-framestore/memstore"
	"github.com/stretchr/testify/assert"
)

type failResponseWriter struct {
	Headers    http.Header
	StatusCode int
}

func (rw *failResponseWriter) Header() http.Header {
	if rw.Headers == nil {
		rw.Headers = make(http.Header)
	}
	return rw.Headers
}

func (rw *failResponseWriter) Write([]byte) (int, error) {
	return 0, errors.New("foo")
}

func (rw *failResponseWriter) WriteHeader(code int) {
	rw.StatusCode = code
}

// TestDoubleFault checks that, if there is an error serializing a JSON
// response, it doesn't actually panic the process.
func TestDoubleFault(t *testing.T) {
	ctx := context.Background()
	root := dataset.New(memstore.New())
	_, err := root.Create(ctx, "quickstart")
	if !assert.NoError(t, err) {
		return
	}

	router := NewRouter(root)
	req := &http.Request{
		Method: http.MethodGet,
		URL: &url.URL{
			Path: "/dataset/quickstart",
		},
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{},
		Close:      true,
		Host:       "localhost",
	}
	resp := &failResponseWriter{}
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNegotiateResponse(t *testing.T) {
	tests := []struct {
		accept string
		expect string
		fail   bool
	}{
		{"", "application/vnd.diffeo.framestore.v1+json", false},
		{"*/*", "application/vnd.diffeo.framestore.v1+json", false},
		{"application/*", "application/vnd.diffeo.framestore.v1+json", false},
		{"text/*", "text/json", false},
		{"text/json", "text/json", false},
		{"application/json", "application/json", false},
		{"application/cbor", "application/cbor", false},
		{"application/vnd.diffeo.framestore+cbor", "application/vnd.diffeo.framestore+cbor", false},
		{"application/cbor, application/json;q=0.5", "application/cbor", false},
		{"application/json, application/cbor;q=0.5", "application/json", false},
		{"text/html", "", true},
		{"application/json;q=0", "", true},
	}
	for _, test := range tests {
		req := &http.Request{Header: http.Header{}}
		if test.accept != "" {
			req.Header.Set("Accept", test.accept)
		}
		got, err := negotiateResponse(req)
		if test.fail {
			assert.Error(t, err, "Accept: %v", test.accept)
		} else if assert.NoError(t, err, "Accept: %v", test.accept) {
			assert.Equal(t, test.expect, got, "Accept: %v", test.accept)
		}
	}
}
