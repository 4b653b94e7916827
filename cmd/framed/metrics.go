// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"time"

	"github.com/diffeo/go-framestore/dataset"
	"github.com/prometheus/client_golang/prometheus"
)

var datasetSamples = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "diffeo",
		Subsystem: "framestore",
		Name:      "dataset_samples",
		Help:      "Samples stored per dataset",
	},
	[]string{
		"dataset",
	},
)

var datasetFrames = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "diffeo",
		Subsystem: "framestore",
		Name:      "dataset_frames",
		Help:      "Frame records stored per dataset",
	},
	[]string{
		"dataset",
	},
)

func init() {
	prometheus.MustRegister(datasetSamples, datasetFrames)
}

// observe polls per-dataset sizes into the prometheus gauges.  It runs
// until ctx is cancelled.
func observe(ctx context.Context, root *dataset.Datasets, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		names, err := root.List(ctx)
		if err != nil {
			continue
		}
		for _, name := range names {
			ds, err := root.Load(ctx, name)
			if err != nil {
				continue
			}
			labels := prometheus.Labels{"dataset": name}
			if n, err := ds.SampleCount(ctx); err == nil {
				datasetSamples.With(labels).Set(float64(n))
			}
			if n, err := ds.FrameCount(ctx); err == nil {
				datasetFrames.With(labels).Set(float64(n))
			}
		}
	}
}
