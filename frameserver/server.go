// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frameserver

import (
	"net/http"
	"time"

	"github.com/diffeo/go-framestore/dataset"
	"github.com/diffeo/go-framestore/framedata"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

// NewRouter creates a new HTTP handler that processes all frame store
// requests.  All resources are under the URL path root, e.g.
// /dataset/foo.  For more control over this setup, create a
// mux.Router and call PopulateRouter instead.
func NewRouter(root *dataset.Datasets) http.Handler {
	r := mux.NewRouter()
	PopulateRouter(r, root)
	return r
}

// PopulateRouter adds frame store routes to an existing
// github.com/gorilla/mux router object.  This can be used, for
// instance, to place the REST interface under a subpath:
//
//     import "github.com/diffeo/go-framestore/memstore"
//     import "github.com/gorilla/mux"
//     r := mux.Router()
//     s := r.PathPrefix("/frames").Subrouter()
//     root := dataset.New(memstore.New())
//     PopulateRouter(s, root)
func PopulateRouter(r *mux.Router, root *dataset.Datasets) {
	api := &restAPI{Root: root, Router: r}
	api.PopulateRouter(r)
}

// NewServer creates an HTTP handler that wraps the frame store routes
// in panic-recovery and request-logging middleware.  logger may be
// nil to disable request logging.
func NewServer(root *dataset.Datasets, logger *logrus.Logger) http.Handler {
	recovery := negroni.NewRecovery()
	recovery.PrintStack = false
	n := negroni.New(recovery)
	if logger != nil {
		n.Use(&requestLogger{Logger: logger})
	}
	n.UseHandler(NewRouter(root))
	return n
}

// restAPI holds the persistent state for the frame store REST API.
type restAPI struct {
	Root   *dataset.Datasets
	Router *mux.Router
}

// PopulateRouter adds all frame store URL paths to a router.
func (api *restAPI) PopulateRouter(r *mux.Router) {
	api.PopulateDataset(r)
	r.Path("/").Name("root").Handler(&resourceHandler{
		Representation: framedata.RootData{},
		Context:        api.Context,
		Get:            api.RootDocument,
	})
}

func (api *restAPI) RootDocument(ctx *reqContext) (interface{}, error) {
	resp := framedata.RootData{}
	err := buildURLs(api.Router).
		URL(&resp.DatasetsURL, "datasets").
		Template(&resp.DatasetURL, "dataset", "dataset").
		Error
	return resp, err
}

// requestLogger is negroni middleware that writes a log line per
// request at debug level.
type requestLogger struct {
	Logger *logrus.Logger
}

func (l *requestLogger) ServeHTTP(w http.ResponseWriter, req *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, req)
	fields := logrus.Fields{
		"method":  req.Method,
		"path":    req.URL.Path,
		"elapsed": time.Since(start),
	}
	if res, ok := w.(negroni.ResponseWriter); ok {
		fields["status"] = res.Status()
	}
	l.Logger.WithFields(fields).Debug("Handled request")
}
