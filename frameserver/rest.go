// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frameserver

// This file contains a REST skeleton framework.
//
// The bulk of this is dealing with HTTP content type negotiation, and
// providing a standard way to deal with input and output values.  The
// major variables are the type canonicalization map, the context
// builder, and the specific codecs; everything else is generic
// plumbing around them.

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/diffeo/go-framestore/framedata"
	"github.com/ugorji/go/codec"
)

var typeMap = map[string]string{
	"text/json":               framedata.V1JSONMediaType,
	"application/json":        framedata.V1JSONMediaType,
	framedata.JSONMediaType:   framedata.V1JSONMediaType,
	framedata.V1JSONMediaType: framedata.V1JSONMediaType,
	"application/cbor":        framedata.V1CBORMediaType,
	framedata.CBORMediaType:   framedata.V1CBORMediaType,
	framedata.V1CBORMediaType: framedata.V1CBORMediaType,
}

// errBadAccept is returned from negotiateResponse() if the Accept:
// header is malformed (and no more specific error applies).
var errBadAccept = errors.New("Invalid Accept: header")

// errNotAcceptable is returned from negotiateResponse() if the Accept:
// header does not mention any media types we can actually return.
type errNotAcceptable struct{}

func (e errNotAcceptable) Error() string {
	return "No acceptable representation for response"
}

func (e errNotAcceptable) HTTPStatus() int {
	return http.StatusNotAcceptable
}

// errMethodNotAllowed is used within the resourceHandler implementation
// to flag an error if a particular HTTP method is not allowed.  This
// corresponds exactly to the 405 Method Not Allowed HTTP status code.
type errMethodNotAllowed struct {
	Method string
}

func (e errMethodNotAllowed) Error() string {
	return fmt.Sprintf("Method %v not allowed", e.Method)
}

func (e errMethodNotAllowed) HTTPStatus() int {
	return http.StatusMethodNotAllowed
}

// responseCreated is returned as a value response from handler
// functions that want to indicate that a new resource was created.
type responseCreated struct {
	// Location holds the canonical URL to the newly created resource.
	Location string

	// Body contains the object sent in the body of the response.
	Body interface{}
}

type resourceHandler struct {
	// Representation is an object representing this resource.
	// A copy of this object will be passed to handler functions.
	Representation interface{}

	// Context reads an HTTP request and produces a context object.
	Context func(req *http.Request) (*reqContext, error)

	// Get, if non-nil, returns a representation of the object.
	// Its return type should be the same type as Representation,
	// though this is not enforced.
	Get func(*reqContext) (interface{}, error)

	// Put, if non-nil, updates the representation of the object.
	// The interface parameter is guaranteed to be the same type
	// as Representation.  The return can be any useful return
	// value.
	Put func(*reqContext, interface{}) (interface{}, error)

	// Post, if non-nil, takes some arbitrary action.  The
	// interface parameter is guaranteed to be the same type as
	// Representation, though in this case this is not necessarily
	// a representation of the resource.  The return can be any
	// useful return value, including responseCreated.
	Post func(*reqContext, interface{}) (interface{}, error)

	// Delete, if non-nil, deletes the object.  The return can be
	// any useful return value.
	Delete func(*reqContext) (interface{}, error)
}

func (h *resourceHandler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	var (
		ctx          *reqContext
		in, out      interface{}
		err          error
		status       int
		responseType string
		wroteHeader  bool
	)

	// Recover from panics by sending an HTTP error.  If the status
	// line already went out the response cannot be salvaged, and a
	// failed body write should not take the process down with it.
	defer func() {
		if recovered := recover(); recovered != nil {
			if wroteHeader {
				return
			}
			response := framedata.ErrorResponse{}
			response.FromPanic(recovered)
			resp.Header().Set("Content-Type", framedata.V1JSONMediaType)
			resp.WriteHeader(http.StatusInternalServerError)
			encoder := codec.NewEncoder(resp, framedata.JSONHandle())
			_ = encoder.Encode(response)
		}
	}()

	// Start by trying to come up with a response type, even before
	// trying to parse the input.  This determines what format an
	// error message could be sent back as.
	status = http.StatusBadRequest
	responseType, err = negotiateResponse(req)
	if err != nil {
		// Gotta pick something
		responseType = framedata.V1JSONMediaType
	}

	// Get bits from URL parameters
	if err == nil {
		ctx, err = h.Context(req)
	}

	// Read the body, if it's there
	if err == nil && (req.Method == "PUT" || req.Method == "POST") {
		// Make a new object of the same type as h.Representation
		in = reflect.Zero(reflect.TypeOf(h.Representation)).Interface()

		// Then decode the message body into that object
		contentType := req.Header.Get("Content-Type")
		err = framedata.Decode(contentType, req.Body, &in)
	}

	// Actually call the handler method
	if err == nil {
		// We will return this if the method is unexpected or
		// we don't have a handler for it
		err = errMethodNotAllowed{Method: req.Method}
		// If anything else goes wrong here, it's an error in
		// handler code
		status = http.StatusInternalServerError
		switch req.Method {
		case "GET", "HEAD":
			if h.Get != nil {
				out, err = h.Get(ctx)
			}
		case "PUT":
			if h.Put != nil {
				out, err = h.Put(ctx, in)
			}
		case "POST":
			if h.Post != nil {
				out, err = h.Post(ctx, in)
			}
		case "DELETE":
			if h.Delete != nil {
				out, err = h.Delete(ctx)
			}
		}
	}

	// Fix up the final result based on what we know.
	if err != nil {
		// Pick a better status code if we know of one
		if errS, hasStatus := err.(framedata.ErrorStatus); hasStatus {
			status = errS.HTTPStatus()
		}
		response := framedata.ErrorResponse{Error: "error", Message: err.Error()}
		response.FromError(err)
		out = response
	} else if out == nil {
		status = http.StatusNoContent
	} else if created, isCreated := out.(responseCreated); isCreated {
		status = http.StatusCreated
		if created.Location != "" {
			resp.Header().Set("Location", created.Location)
		}
		if req.Method == "HEAD" {
			out = nil
		} else {
			out = created.Body
		}
	} else {
		status = http.StatusOK
		if req.Method == "HEAD" {
			out = nil
		}
	}

	// Come up with a function to write the response.  If the actual
	// writer fails we have already written an HTTP status line, so
	// we're not necessarily doing better than panicking.
	responseWriters := map[string]func(){
		framedata.V1JSONMediaType: func() {
			encoder := codec.NewEncoder(resp, framedata.JSONHandle())
			encoder.MustEncode(out)
		},
		framedata.V1CBORMediaType: func() {
			encoder := codec.NewEncoder(resp, framedata.CBORHandle())
			encoder.MustEncode(out)
		},
	}
	responseWriter, understood := responseWriters[typeMap[responseType]]
	if !understood {
		// We shouldn't get here, because it implies response
		// type negotiation failed...but here we are
		responseWriter = responseWriters[framedata.V1JSONMediaType]
		status = http.StatusInternalServerError
		out = framedata.ErrorResponse{Error: "error", Message: "Invalid response type " + responseType}
	}

	// Actually send the response
	if out != nil {
		resp.Header().Set("Content-Type", responseType)
	}
	resp.WriteHeader(status)
	wroteHeader = true
	if out != nil {
		responseWriter()
	}
}

// negotiateResponse returns a supported MIME type for the response
// body, following the path laid out in RFC 7231 section 5.3.
func negotiateResponse(req *http.Request) (string, error) {
	accept := req.Header.Get("Accept")
	if accept == "" {
		accept = "*/*"
	}
	bestType := ""
	bestQ := 0.0
	mediaRanges := strings.Split(accept, ",")
	for _, mediaRange := range mediaRanges {
		mediaRange = strings.TrimSpace(mediaRange)
		mediaType, params, err := mime.ParseMediaType(mediaRange)
		if err != nil {
			return "", err
		}

		// What is the "q" ("quality") parameter for this type?
		// If it is less than the best known so far, skip it
		q := 1.0
		if qStr, haveQ := params["q"]; haveQ {
			q, err = strconv.ParseFloat(qStr, 64)
			if err != nil {
				return "", err
			}
			if q < 0.0 || q > 1.0 {
				return "", errBadAccept
			}
		}
		if q < bestQ {
			continue
		}

		// This is acceptable if it's listed in the type map; or
		// it's one of a couple of specific wildcards.  Also need
		// to handle wildcard precedence.  So:
		if mediaType == "*/*" {
			// Doesn't override anything.
			if q > bestQ {
				bestType = mediaType
				bestQ = q
			}
		} else if mediaType == "text/*" || mediaType == "application/*" {
			// Only overrides "*/*".
			if q > bestQ || bestType == "*/*" {
				bestType = mediaType
				bestQ = q
			}
		} else if _, knownType := typeMap[mediaType]; knownType {
			// Overrides any wildcard.  We want the first one
			// at a given q to win.
			if q > bestQ || bestType == "*/*" || bestType == "text/*" || bestType == "application/*" {
				bestType = mediaType
				bestQ = q
			}
		}
		// Otherwise we don't recognize this type at all, so
		// just drop it.
	}
	// If this failed to win, return an error
	if bestQ == 0.0 {
		return "", errNotAcceptable{}
	}
	switch bestType {
	case "*/*":
		return framedata.V1JSONMediaType, nil
	case "application/*":
		return framedata.V1JSONMediaType, nil
	case "text/*":
		return "text/json", nil
	default:
		return bestType, nil
	}
}
