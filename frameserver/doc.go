// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package frameserver publishes a frame store as a REST service.  The
// frameclient package is a matching client.
//
// The complete REST API is defined in the framedata package.  In
// particular, note that the URLs described here are not actually part
// of the API.
//
// HTTP Considerations
//
// HTTP GET requests default to a JSON representation of the resource.
// Clients should use the standard HTTP Accept: header to request a
// different format.  See "MIME Types" below.
//
// This interface does not (currently) support HTTP caching or
// authentication headers.
//
// MIME Types
//
// This interface understands MIME types as follows:
//
//     application/vnd.diffeo.framestore.v1+json
//
// JSON representation of version 1 of this interface.
//
//     application/vnd.diffeo.framestore+json
//     application/json
//     text/json
//
// JSON representation of latest version of this interface.
//
//     application/vnd.diffeo.framestore.v1+cbor
//     application/vnd.diffeo.framestore+cbor
//     application/cbor
//
// CBOR representation, versioned the same way.
//
// URL Scheme
//
// Frame store objects follow their natural hierarchy and are addressed
// by name.  For instance, the sample "bar" in dataset "foo" has a
// resource URL of /dataset/foo/sample/bar.  If a name is not URL-safe
// printable ASCII, it must be base64 encoded using the URL-safe
// alphabet (RFC 4648 section 5), with no padding, and adding an
// additional - at the front of the name: /dataset/-Zm9v/sample/-YmFy
// is the same resource as the preceding one.  Correspondingly, a
// single - means "empty", and a name that begins with - must be
// URL-encoded.
//
// The following URLs are defined:
//
//     /
//     /dataset
//     /dataset/{dataset}
//     /dataset/{dataset}/sample
//     /dataset/{dataset}/sample/{sample}
//     /dataset/{dataset}/sample/{sample}/frame
//     /dataset/{dataset}/sample/{sample}/frame/{number}
//     /dataset/{dataset}/sample/{sample}/frame_query
//     /dataset/{dataset}/sample/{sample}/frame_save
//
// GET of a frame collection lists every frame.  POST to it stores one
// frame at the number named in the body.  DELETE removes all of a
// sample's frames.  POST to frame_query runs a filtered view and
// returns the matching frames; POST to frame_save stores a batch of
// frames in one round trip.
package frameserver
