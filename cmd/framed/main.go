// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package framed provides the frame store daemon.  It serves the
// go-framestore REST interface over a chosen storage backend; see the
// frameserver package for the wire protocol and the frameclient
// package for a matching Go client.
package main

import (
	"context"
	"flag"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/diffeo/go-framestore/backend"
	"github.com/diffeo/go-framestore/dataset"
	"github.com/diffeo/go-framestore/doccache"
	"github.com/diffeo/go-framestore/frameserver"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

func main() {
	var err error

	httpBind := flag.String("http", ":5151",
		"[ip]:port for HTTP REST interface")
	backend := backend.Backend{Implementation: "memory", Address: ""}
	flag.Var(&backend, "backend", "impl[:address] of the storage backend")
	configFile := flag.String("config", "", "daemon configuration YAML file")
	logRequests := flag.Bool("log-requests", false, "log all requests")
	flag.Parse()

	config := daemonConfig{MetricsInterval: 15}
	if *configFile != "" {
		if err = loadConfigYaml(*configFile, &config); err != nil {
			logrus.WithFields(logrus.Fields{
				"err": err,
			}).Fatal("Could not load YAML configuration")
			return
		}
	}

	ctx := context.Background()
	store, err := backend.Store(ctx)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"err": err,
		}).Fatal("Could not create storage backend")
		return
	}
	if config.CacheSize >= 0 {
		store = doccache.New(store, config.CacheSize)
	}
	root := dataset.New(store)

	var reqLogger *logrus.Logger
	if *logRequests {
		stdlog := logrus.StandardLogger()
		reqLogger = &logrus.Logger{
			Out:       stdlog.Out,
			Formatter: stdlog.Formatter,
			Hooks:     stdlog.Hooks,
			Level:     logrus.DebugLevel,
		}
	}

	go observe(ctx, root, time.Duration(config.MetricsInterval)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", frameserver.NewServer(root, reqLogger))

	logrus.WithFields(logrus.Fields{
		"bind":    *httpBind,
		"backend": backend.String(),
	}).Info("Serving HTTP")
	err = http.ListenAndServe(*httpBind, mux)
	logrus.WithFields(logrus.Fields{
		"err": err,
	}).Fatal("HTTP server exited")
}

// daemonConfig holds the settings the daemon reads from its -config
// file.
type daemonConfig struct {
	// CacheSize sets the number of recently used documents the
	// in-process read cache holds in front of the storage backend.
	// 0 picks the cache's default size; a negative value disables
	// the cache entirely.
	CacheSize int `yaml:"cache_size"`

	// MetricsInterval sets the number of seconds between polls of
	// per-dataset statistics for the /metrics endpoint.
	MetricsInterval int `yaml:"metrics_interval"`
}

func loadConfigYaml(filename string, config *daemonConfig) error {
	var err error
	var bytes []byte
	bytes, err = ioutil.ReadFile(filename)
	if err == nil {
		err = yaml.Unmarshal(bytes, config)
	}
	return err
}
