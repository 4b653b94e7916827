// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frameclient

// This file provides generic REST client code.

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"

	"github.com/diffeo/go-framestore/framedata"
	"github.com/jtacoma/uritemplates"
	"github.com/ugorji/go/codec"
)

// session holds the settings every resource handle derived from one
// client shares.
type session struct {
	// HTTPClient issues the actual requests.
	HTTPClient *http.Client

	// MediaType is the representation requests are sent in and
	// responses are asked for, one of framedata.V1JSONMediaType or
	// framedata.V1CBORMediaType.
	MediaType string
}

// handle returns the codec handle matching the session's media type.
func (s *session) handle() codec.Handle {
	switch s.MediaType {
	case framedata.V1CBORMediaType, framedata.CBORMediaType:
		return framedata.CBORHandle()
	}
	return framedata.JSONHandle()
}

// resource is any object that has a URL and a representation.
type resource struct {
	*session
	URL *url.URL
}

func (r *resource) Template(template string, vars map[string]interface{}) (*url.URL, error) {
	// Build the template object
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return nil, err
	}

	// Encode all of the values if required
	for k, v := range vars {
		if s, isString := v.(string); isString {
			vars[k] = framedata.MaybeEncodeName(s)
		}
		if ss, isStringSlice := v.([]string); isStringSlice {
			tt := make([]string, len(ss))
			for i, s := range ss {
				tt[i] = framedata.MaybeEncodeName(s)
			}
			vars[k] = tt
		}
	}

	// Expand the template to produce a string
	expanded, err := tmpl.Expand(vars)
	if err != nil {
		return nil, err
	}

	// Return the parsed URL of the result, relative to ourselves
	return r.URL.Parse(expanded)
}

// Do performs some HTTP action.  If in is non-nil, the request data is
// serialized and sent as the body of, for instance, a POST request.
// If out is non-nil, the response data (if any) is deserialized into
// this object, which must be of pointer type.
func (r *resource) Do(ctx context.Context, method string, url *url.URL, in, out interface{}) (err error) {
	// Set up the body as a serialized stream, if there is one
	var body io.Reader
	if in != nil {
		reader, writer := io.Pipe()
		encoder := codec.NewEncoder(writer, r.handle())
		finished := make(chan error)
		go func() {
			err := encoder.Encode(in)
			err = firstError(err, writer.Close())
			finished <- err
		}()
		defer func() {
			err = firstError(err, <-finished)
		}()
		body = reader
	}

	// Create the request and set headers
	req, err := http.NewRequestWithContext(ctx, method, url.String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", r.MediaType)
	}
	if out != nil {
		req.Header.Set("Accept", r.MediaType)
	}

	// Actually do the request
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return err
	}

	// If the response included a body, clean up afterwards
	if resp.Body != nil {
		defer func() {
			err = firstError(err, resp.Body.Close())
		}()
	}

	// Check the response code
	if err = checkHTTPStatus(resp); err != nil {
		return err
	}

	// If there is both a body and a requested output, decode it.
	// A 204 response has nothing to decode.
	if resp.Body != nil && out != nil && resp.StatusCode != http.StatusNoContent {
		contentType := resp.Header.Get("Content-Type")
		err = framedata.Decode(contentType, resp.Body, out)
	}

	return err // may be nil
}

// Get retrieves the resource from its own URL.  The result is stored
// in out, which must be of pointer type.
func (r *resource) Get(ctx context.Context, out interface{}) error {
	return r.Do(ctx, "GET", r.URL, nil, out)
}

// GetFrom retrieves a resource from some other URL.  template is
// interpreted as a URI template, modified by vars, and the result
// taken relative to the resource's URL.  The result is stored in out,
// which must be of pointer type.
func (r *resource) GetFrom(ctx context.Context, template string, vars map[string]interface{}, out interface{}) error {
	url, err := r.Template(template, vars)
	if err == nil {
		err = r.Do(ctx, "GET", url, nil, out)
	}
	return err
}

// Put updates the resource at its own URL.  The server response is
// stored in out, which must be of pointer type.
func (r *resource) Put(ctx context.Context, in, out interface{}) error {
	return r.Do(ctx, "PUT", r.URL, in, out)
}

// PutTo updates a resource at some other URL.  template is
// interpreted as a URI template, modified by vars, and the result
// taken relative to the resource's URL.  The server response is
// stored in out, which must be of pointer type.
func (r *resource) PutTo(ctx context.Context, template string, vars map[string]interface{}, in, out interface{}) error {
	url, err := r.Template(template, vars)
	if err == nil {
		err = r.Do(ctx, "PUT", url, in, out)
	}
	return err
}

// PostTo submits data to a service at some other URL.  template is
// interpreted as a URI template, modified by vars, and the result
// taken relative to the resource's URL.  The server response is
// stored in out, which must be of pointer type.
func (r *resource) PostTo(ctx context.Context, template string, vars map[string]interface{}, in, out interface{}) error {
	url, err := r.Template(template, vars)
	if err == nil {
		err = r.Do(ctx, "POST", url, in, out)
	}
	return err
}

// Delete deletes the resource at its own URL.
func (r *resource) Delete(ctx context.Context) error {
	return r.Do(ctx, "DELETE", r.URL, nil, nil)
}

// DeleteAt deletes the resource at some other URL.  template is
// interpreted as a URI template, modified by vars, and the result
// taken relative to the resource's URL.  The server response is
// stored in out, which must be of pointer type.
func (r *resource) DeleteAt(ctx context.Context, template string, vars map[string]interface{}, out interface{}) error {
	url, err := r.Template(template, vars)
	if err == nil {
		err = r.Do(ctx, "DELETE", url, nil, out)
	}
	return err
}

// ErrorHTTP is a catch-all error for non-successes returned from the
// REST endpoint.
type ErrorHTTP struct {
	// Response holds a pointer to the failing HTTP response.
	Response *http.Response

	// Body holds the contents of the message body, presumed to
	// be text.
	Body string
}

func (e ErrorHTTP) Error() string {
	return e.Response.Status
}

// checkHTTPStatus examines an HTTP response and returns an error if
// it is not successful.
func checkHTTPStatus(resp *http.Response) error {
	if len(resp.Status) > 0 && resp.Status[0] == '2' {
		return nil
	}

	// Always collect the entire body; we will need it as a fallback
	// and can only parse it once.
	var body []byte
	var err error
	if resp.Body != nil {
		body, err = ioutil.ReadAll(resp.Body)
		if err != nil {
			return err
		}
	}

	// Take a shot at decoding it as a better error
	var errResp framedata.ErrorResponse
	contentType := resp.Header.Get("Content-Type")
	err2 := framedata.Decode(contentType, bytes.NewReader(body), &errResp)
	if err2 == nil {
		// Given that we decoded that successfully, return the
		// server-provided error
		return errResp.ToError()
	}

	return ErrorHTTP{Response: resp, Body: string(body)}
}

func firstError(e1, e2 error) error {
	if e1 != nil {
		return e1
	}
	return e2
}
