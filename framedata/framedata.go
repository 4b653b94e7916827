// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package framedata defines common data structures shared between the
// frameserver and frameclient packages.  Encodings of these are passed
// across the wire as the application/vnd.diffeo.framestore.v1+json or
// application/vnd.diffeo.framestore.v1+cbor MIME types.
//
// In spite of the "v1" label this representation is not considered
// fully stable yet.
//
// API Usage
//
// HTTP GET the root document at its specified URL.  This will return a
// serialization of the RootData object.  That serialization has links
// to other resources; follow these links, possibly filling in template
// values, to get to other resources.
//
// Many of the URL fields are actually RFC 6570 URI templates.  This is
// a fancy way of saying that they are URL strings with a {parameter}
// in curly braces.  For instance, if the system is rooted at /, a JSON
// serialization of RootData will look like
//
//     {
//         "datasets_url": "/dataset",
//         "dataset_url": "/dataset/{dataset}"
//     }
//
// While the URL structure is predictable and formulaic, it is not
// actually part of the API contract.  The only specific guarantee is
// that retrieving the root resource will return a serialization of
// RootData.
//
// Encoding Considerations
//
// A name that appears in a URL string must be made of ASCII characters
// that can be represented unescaped.  Other names are escaped by
// encoding their byte representations using the base64 URL-safe
// encoding with no padding, and prepending a hyphen to the name.
// Names that would be otherwise safe and begin with hyphens are also
// encoded.
//
// Frame and sample records have a corresponding "data" field.  In JSON
// these can be conveyed as either an object or a string.  If a string,
// it is a base64 encoded CBOR encoding of the data object, using
// standard base64 alphabet and padding rules.  The CBOR encoding is
// required to preserve data types that cannot be conveyed in JSON,
// most notably timestamps in datetime-typed frame fields.  In the CBOR
// representation of the API the data field is always a native map.
//
// HTTP Considerations
//
// Each URL reference notes the applicable HTTP verbs.  In most cases
// simple resource references support GET and DELETE, and actions
// support POST.  Any resource that supports GET also supports HEAD.
//
// When a frame representation is PUT, any field present in its data is
// updated.  Fields absent from the uploaded data remain unchanged.  A
// corresponding GET request will return a complete representation.
//
// The current server implementation makes minimal use of HTTP status
// codes, but will usually correctly return 200 OK, 201 Created, 204 No
// Content, 400 Bad Request, 404 Not Found, 406 Not Acceptable, 409
// Conflict, and 415 Unsupported Media Type when these are correct.
//
// Errors
//
// Most errors should be returned as encodings of the ErrorResponse
// type.  This can round-trip all of the frame and dataset package
// errors but may return most other errors as plain strings that are
// not the same objects as other standard errors.
//
// If Go server code panics, this should be captured and returned as an
// ErrorResponse with error code "panic".
package framedata

// V1JSONMediaType is the preferred, most specific MIME type for the
// JSON representation of this content.
const V1JSONMediaType = "application/vnd.diffeo.framestore.v1+json"

// JSONMediaType requests the most recent version of the JSON
// representation of this content.
const JSONMediaType = "application/vnd.diffeo.framestore+json"

// V1CBORMediaType is the preferred, most specific MIME type for the
// CBOR representation of this content.
const V1CBORMediaType = "application/vnd.diffeo.framestore.v1+cbor"

// CBORMediaType requests the most recent version of the CBOR
// representation of this content.
const CBORMediaType = "application/vnd.diffeo.framestore+cbor"

// DataDict is an arbitrary field dictionary, as stored on a frame or a
// sample.  If any of the values have (possibly further embedded) a
// time.Time value, the JSON encoding is a base64-encoded CBOR string;
// otherwise it is a normal JSON dictionary.
type DataDict map[string]interface{}

// Resource is a base type for all resources in this module.
type Resource struct {
	// URL points at this resource.  If this record is a "short"
	// record, the contents of this URL are the full record.  This
	// field does not need to be provided when posting data.
	URL string `json:"url"`
}

// RootData is returned by the root path.
type RootData struct {
	Resource

	// DatasetsURL points at the dataset list.  This endpoint
	// supports HTTP GET to return a DatasetList, and HTTP POST to
	// submit a DatasetShort and create a new dataset, returning
	// the full Dataset.
	DatasetsURL string `json:"datasets_url"`

	// DatasetURL points at the representation of a single dataset.
	// This endpoint supports HTTP GET and DELETE, and its
	// representation is a Dataset.  This field is a URI template
	// with a single parameter, "dataset", which should be
	// substituted for the (possibly escaped) name of the dataset.
	DatasetURL string `json:"dataset_url"`
}

// DatasetShort provides minimal data to identify a single dataset.
type DatasetShort struct {
	Resource

	// Name holds the name of this dataset.  This is immutable.
	Name string `json:"name"`
}

// DatasetList is a list of DatasetShort.
type DatasetList struct {
	// Datasets is a list of the datasets available in the system.
	Datasets []DatasetShort `json:"datasets"`
}

// FieldDef describes one declared frame field in a dataset's schema.
type FieldDef struct {
	// Name is the field name.
	Name string `json:"name"`

	// Kind is the inferred value kind: "bool", "int", "float",
	// "string", "datetime", "list", "document", or "object".
	Kind string `json:"kind"`
}

// Dataset contains the details for a single dataset.  When submitting
// to create one, only the name is required.
type Dataset struct {
	DatasetShort

	// FrameFields lists the declared frame fields, in declaration
	// order.  The schema grows as frames with new fields are
	// saved; it cannot be edited directly through this API.
	FrameFields []FieldDef `json:"frame_fields"`

	// SampleCount is the number of samples in the dataset.
	SampleCount int `json:"sample_count"`

	// FrameCount is the number of stored frames across all of the
	// dataset's samples.
	FrameCount int `json:"frame_count"`

	// SamplesURL points at the list of samples in this dataset.
	// This endpoint supports HTTP GET, returning a SampleList, and
	// HTTP POST, to submit a Sample (only its filepath is used)
	// and return the created Sample.
	SamplesURL string `json:"samples_url"`

	// SampleURL points at the representation of a single sample.
	// This endpoint supports HTTP GET and DELETE, and its
	// representation is a Sample.  This is a URI template with a
	// single parameter, "sample", which should be substituted for
	// the sample's id.
	SampleURL string `json:"sample_url"`
}

// SampleShort provides minimal data to identify a single sample.
type SampleShort struct {
	Resource

	// ID holds the store-assigned id of this sample.  This field
	// does not need to be provided when posting data.
	ID string `json:"id"`
}

// SampleList is a list of SampleShort.
type SampleList struct {
	// Samples is a list of the samples in a dataset, sorted by
	// filepath.
	Samples []SampleShort `json:"samples"`
}

// Sample contains the details for a single sample.  When submitting to
// create one, only the filepath is required.
type Sample struct {
	SampleShort

	// Filepath is the media path this sample was created with.
	Filepath string `json:"filepath"`

	// FramesURL points at this sample's frames.  This endpoint
	// supports HTTP GET, returning a FrameList of every frame;
	// HTTP POST, submitting a single Frame to create it; and HTTP
	// DELETE, deleting every frame of the sample.
	FramesURL string `json:"frames_url"`

	// FrameURL points at a single frame by number.  This endpoint
	// supports HTTP GET, PUT, and DELETE, and its representation
	// is a Frame.  This is a URI template with a single parameter,
	// "number", the decimal frame number.  HTTP PUT merges the
	// submitted data fields into the frame, creating it if it does
	// not exist.
	FrameURL string `json:"frame_url"`

	// FrameQueryURL points at an endpoint that returns a filtered
	// view of this sample's frames.  It only supports HTTP POST,
	// submitting a FrameQuery and returning a FrameList.
	FrameQueryURL string `json:"frame_query_url"`

	// FrameSaveURL points at an endpoint that writes many frames
	// in one batch.  It only supports HTTP POST, submitting a
	// FrameList; every listed frame is merged (like a PUT of each)
	// and the whole batch is flushed in a single store write.
	FrameSaveURL string `json:"frame_save_url"`
}

// Frame carries one frame of one sample.  When submitting, Number is
// required unless it is implied by the URL.
type Frame struct {
	Resource

	// Number is the frame number, a positive integer.
	Number int `json:"frame_number"`

	// Data holds the frame's public fields.  System fields and the
	// frame number are never included.
	Data DataDict `json:"data,omitempty"`
}

// FrameList is a list of frames in ascending frame number order.
type FrameList struct {
	Frames []Frame `json:"frames"`
}

// FrameQuery describes a filtered view of a sample's frames.  All of
// its parts are optional; an empty query returns every frame with all
// of its fields.
//
// Conditions take one of two forms.  A literal value matches fields
// equal to it:
//
//     {"match": {"label": "dog"}}
//
// An object applies one comparison, named by its single key, one of
// "eq", "ne", "in", "gt", "gte", "lt", "lte", or "exists":
//
//     {"match": {"quality": {"gt": 0.5}}}
type FrameQuery struct {
	// Match keeps only frames whose fields satisfy every listed
	// condition, keyed by field name.
	Match map[string]interface{} `json:"match,omitempty"`

	// Select, when non-empty, restricts the returned records to
	// these fields.  The frame number always rides along.
	Select []string `json:"select,omitempty"`

	// Exclude drops these fields from the returned records.
	Exclude []string `json:"exclude,omitempty"`

	// Filters narrows array-valued fields, keyed by the dotted
	// path of the array.  Each value maps element field names to
	// conditions in the same form as Match.
	Filters map[string]map[string]interface{} `json:"filters,omitempty"`
}

// ErrorResponse can be a response to any method, generally accompanied
// by a failing HTTP status code.
type ErrorResponse struct {
	// Error is a short description of the failure.  This may be
	// the name or type of a frame or dataset API error, the string
	// "panic", or the string "error" for some other kind of error.
	Error string `json:"error"`

	// Message is a human-readable description of the failure.
	Message string `json:"message"`

	// Value is an extra parameter to the error if applicable.
	Value string `json:"value,omitempty"`

	// Stack holds a formatted backtrace, if the method failed due
	// to a panic.
	Stack string `json:"stack,omitempty"`
}
