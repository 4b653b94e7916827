// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package framedata

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"

	"github.com/diffeo/go-framestore/dataset"
	"github.com/diffeo/go-framestore/frame"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// ErrUnsupportedMediaType is returned from Decode() if the provided
// Content-Type: is unrecognized.  This translates directly into the
// equivalent HTTP 415 error.
type ErrUnsupportedMediaType struct {
	Type string
}

func (e ErrUnsupportedMediaType) Error() string {
	return fmt.Sprintf("Unsupported media type %q", e.Type)
}

// HTTPStatus returns a fixed 415 Unsupported Media Type error code.
func (e ErrUnsupportedMediaType) HTTPStatus() int {
	return http.StatusUnsupportedMediaType
}

// ErrNotFound is a wrapper error that indicates that, due to the
// embedded error, a REST service should return a 404 Not Found error.
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrNotFound) HTTPStatus() int {
	return http.StatusNotFound
}

// ErrBadRequest is returned as an error when there is an error
// decoding HTTP headers or the request body.
type ErrBadRequest struct {
	Err error
}

func (e ErrBadRequest) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e ErrBadRequest) HTTPStatus() int {
	return http.StatusBadRequest
}

// ErrConflict is a wrapper error for requests that name something that
// already exists, such as creating a dataset whose name is taken.
type ErrConflict struct {
	Err error
}

func (e ErrConflict) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 409 Conflict HTTP status code.
func (e ErrConflict) HTTPStatus() int {
	return http.StatusConflict
}

// FromError populates an ErrorResponse to fill in its fields based on
// an error value.  This remaps the well-known frame and dataset errors
// to specific e.Error codes.
func (e *ErrorResponse) FromError(err error) {
	switch err {
	case frame.ErrNoFrames:
		e.Error = "ErrNoFrames"
	case dataset.ErrDatasetExists:
		e.Error = "ErrDatasetExists"
	case dataset.ErrNoDataset:
		e.Error = "ErrNoDataset"
	case dataset.ErrNoSample:
		e.Error = "ErrNoSample"
	case dataset.ErrNoName:
		e.Error = "ErrNoName"
	case dataset.ErrNoFilepath:
		e.Error = "ErrNoFilepath"
	case dataset.ErrSampleBound:
		e.Error = "ErrSampleBound"
	}
	switch et := err.(type) {
	case frame.InvalidNumberError:
		e.Error = "InvalidNumberError"
		e.Value = strconv.Itoa(et.Number)
	case frame.FieldAccessError:
		e.Error = "FieldAccessError"
		e.Value = et.Field
	case frame.ReservedFieldError:
		e.Error = "ReservedFieldError"
		e.Value = et.Field
	case frame.SchemaError:
		e.Error = "SchemaError"
		e.Value = et.Field
	case ErrNotFound:
		// Discard this wrapper and return the embedded error
		e.FromError(et.Err)
	case ErrBadRequest:
		e.FromError(et.Err)
	case ErrConflict:
		e.FromError(et.Err)
	}
}

// ToError converts e back to a frame or dataset error, if that is
// possible.  If not, returns a plain error with e.Message text.
func (e *ErrorResponse) ToError() error {
	switch e.Error {
	case "ErrNoFrames":
		return frame.ErrNoFrames
	case "ErrDatasetExists":
		return dataset.ErrDatasetExists
	case "ErrNoDataset":
		return dataset.ErrNoDataset
	case "ErrNoSample":
		return dataset.ErrNoSample
	case "ErrNoName":
		return dataset.ErrNoName
	case "ErrNoFilepath":
		return dataset.ErrNoFilepath
	case "ErrSampleBound":
		return dataset.ErrSampleBound
	case "InvalidNumberError":
		n, err := strconv.Atoi(e.Value)
		if err != nil {
			return errors.New(e.Message)
		}
		return frame.InvalidNumberError{Number: n}
	case "FieldAccessError":
		return frame.FieldAccessError{Field: e.Value}
	case "ReservedFieldError":
		return frame.ReservedFieldError{Field: e.Value}
	case "SchemaError":
		return frame.SchemaError{Field: e.Value}
	default:
		return errors.New(e.Message)
	}
}

// FromPanic populates an error response based on a panic.  Typical use
// is:
//
//     defer func() {
//         if obj := recover(); obj != nil {
//             resp := framedata.ErrorResponse{}
//             resp.FromPanic(obj)
//             // write resp out as makes sense
//         }
//    }
func (e *ErrorResponse) FromPanic(obj interface{}) {
	e.Error = "panic"
	if recoveredError, isError := obj.(error); isError {
		e.Message = recoveredError.Error()
	} else {
		e.Message = fmt.Sprintf("%+v", obj)
	}
	var stack [4096]byte
	len := runtime.Stack(stack[:], false)
	e.Stack = string(stack[:len])
}
