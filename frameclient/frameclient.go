// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package frameclient provides an HTTP REST client for a remote frame
// store, talking to the matching server in the "frameserver" package.
//
// The server in github.com/diffeo/go-framestore/cmd/framed runs a
// compatible REST server.  Call New() with the base URL of that
// service; for instance,
//
//     c, err := frameclient.New(ctx, "http://localhost:5990/")
//
// Requests and responses travel as JSON by default.  Use
// NewWithMediaType with framedata.V1CBORMediaType to move frame data
// as CBOR instead, which round-trips timestamps and binary values
// more faithfully.
package frameclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/diffeo/go-framestore/framedata"
)

// Client is a handle to a remote frame store.
type Client struct {
	resource
	Representation framedata.RootData
}

// New creates a new client talking JSON to the frame store at baseURL.
func New(ctx context.Context, baseURL string) (*Client, error) {
	return NewWithMediaType(ctx, baseURL, framedata.V1JSONMediaType)
}

// NewWithMediaType creates a new client using the stated media type
// for requests and responses.
func NewWithMediaType(ctx context.Context, baseURL, mediaType string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{resource: resource{
		session: &session{
			HTTPClient: http.DefaultClient,
			MediaType:  mediaType,
		},
		URL: u,
	}}
	if err = c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh fetches the root document again.
func (c *Client) Refresh(ctx context.Context) error {
	c.Representation = framedata.RootData{}
	return c.Get(ctx, &c.Representation)
}

// CreateDataset creates a new, empty dataset.  It fails with
// dataset.ErrDatasetExists if the name is taken.
func (c *Client) CreateDataset(ctx context.Context, name string) (*Dataset, error) {
	ds := &Dataset{}
	err := c.PostTo(ctx, c.Representation.DatasetsURL, map[string]interface{}{},
		framedata.DatasetShort{Name: name}, &ds.Representation)
	if err != nil {
		return nil, err
	}
	ds.session = c.session
	ds.URL, err = c.URL.Parse(ds.Representation.URL)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// Dataset retrieves a handle to an existing dataset.  It fails with
// dataset.ErrNoDataset if there is no dataset with that name.
func (c *Client) Dataset(ctx context.Context, name string) (*Dataset, error) {
	var err error
	ds := &Dataset{}
	ds.session = c.session
	ds.URL, err = c.Template(c.Representation.DatasetURL, map[string]interface{}{"dataset": name})
	if err == nil {
		err = ds.Refresh(ctx)
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// Datasets lists the names of every dataset in the store, sorted.
func (c *Client) Datasets(ctx context.Context) ([]string, error) {
	resp := framedata.DatasetList{}
	err := c.GetFrom(ctx, c.Representation.DatasetsURL, map[string]interface{}{}, &resp)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(resp.Datasets))
	for i, ds := range resp.Datasets {
		names[i] = ds.Name
	}
	return names, nil
}

// DeleteDataset destroys a dataset, including all of its samples and
// frames.
func (c *Client) DeleteDataset(ctx context.Context, name string) error {
	return c.DeleteAt(ctx, c.Representation.DatasetURL,
		map[string]interface{}{"dataset": name}, nil)
}
