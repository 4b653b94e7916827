// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package framedata

import (
	"encoding/base64"
	"io"
	"mime"
	"reflect"
	"time"

	"github.com/ugorji/go/codec"
)

var timeType = reflect.TypeOf(time.Time{})

// CBORHandle returns a CBOR codec handle configured for this wire
// format.  Maps decode as map[string]interface{} so that decoded frame
// data is interchangeable with the JSON representation.
func CBORHandle() *codec.CborHandle {
	cbor := new(codec.CborHandle)
	cbor.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return cbor
}

// JSONHandle returns a JSON codec handle configured for this wire
// format.
func JSONHandle() *codec.JsonHandle {
	return new(codec.JsonHandle)
}

// Decode tries to decode a framedata object from a reader, such as an
// HTTP request or response.  out must be a pointer type.
func Decode(contentType string, r io.Reader, out interface{}) error {
	if contentType == "" {
		// RFC 7231 section 3.1.1.5
		contentType = "application/octet-stream"
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return err
	}

	// Promote to more specific types
	switch mediaType {
	case "text/json", "application/json", JSONMediaType, V1JSONMediaType:
		mediaType = V1JSONMediaType
	case "application/cbor", CBORMediaType, V1CBORMediaType:
		mediaType = V1CBORMediaType
	default:
		return ErrUnsupportedMediaType{Type: mediaType}
	}

	switch mediaType {
	case V1JSONMediaType:
		decoder := codec.NewDecoder(r, JSONHandle())
		err = decoder.Decode(out)
	case V1CBORMediaType:
		decoder := codec.NewDecoder(r, CBORHandle())
		err = decoder.Decode(out)
	default:
		err = ErrUnsupportedMediaType{Type: mediaType}
	}
	return err
}

// needsCBOREncoding decides whether an object needs to be encoded as
// CBOR.  It does iff any of its embedded values are time.Time, the one
// frame field type that does not survive a JSON round trip.  If this
// returns false, the object can be safely round-tripped as JSON, to
// the best of our knowledge.
func needsCBOREncoding(v reflect.Value) bool {
	if v.Type() == timeType {
		return true
	}

	switch v.Kind() {
	case reflect.Array, reflect.Slice:
		// needs encoding if any embedded value does
		for i := 0; i < v.Len(); i++ {
			if needsCBOREncoding(v.Index(i)) {
				return true
			}
		}
		return false

	case reflect.Map:
		// needs encoding if any key or value does
		for _, key := range v.MapKeys() {
			if needsCBOREncoding(key) {
				return true
			}
			if needsCBOREncoding(v.MapIndex(key)) {
				return true
			}
		}
		return false

	case reflect.Interface, reflect.Ptr:
		// needs encoding if its target does
		vv := v.Elem()
		if vv.IsValid() {
			return needsCBOREncoding(vv)
		}
		return false
	}

	// anything else either can be passed through as is,
	// or can't be passed through at all
	return false
}

// MarshalJSON returns a JSON representation of a data dictionary.  If
// any of the dictionary's embedded values is a time.Time, returns a
// base64-encoded CBOR string; otherwise returns a normal JSON object.
func (d DataDict) MarshalJSON() (out []byte, err error) {
	var v interface{}
	if needsCBOREncoding(reflect.ValueOf(d)) {
		// Do CBOR encoding to a byte array
		var intermediate []byte
		encoder := codec.NewEncoderBytes(&intermediate, CBORHandle())
		err = encoder.Encode(map[string]interface{}(d))
		if err != nil {
			return nil, err
		}

		// base64 encode that byte array, then JSON encode the
		// resulting string
		v = base64.StdEncoding.EncodeToString(intermediate)
	} else {
		// We will JSON encode the base object
		v = map[string]interface{}(d)
	}
	encoder := codec.NewEncoderBytes(&out, JSONHandle())
	err = encoder.Encode(v)
	return
}

// UnmarshalJSON converts a byte array back into a data dictionary.  If
// it is a string, it should be base64-encoded CBOR.  If it is an
// object it is decoded normally.
func (d *DataDict) UnmarshalJSON(in []byte) error {
	var h codec.Handle
	var b []byte
	if len(in) > 0 && in[0] == '"' {
		// This is a string.  Decode it from JSON...
		var s string
		decoder := codec.NewDecoderBytes(in, JSONHandle())
		err := decoder.Decode(&s)
		if err != nil {
			return err
		}

		// ...base64 decode it...
		b, err = base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}

		// ...and decode the recovered bytes as CBOR.
		h = CBORHandle()
	} else {
		// This is not a string and we will decode it as
		// straight JSON.
		h = JSONHandle()
		b = in
	}
	decoder := codec.NewDecoderBytes(b, h)
	return decoder.Decode((*map[string]interface{})(d))
}
