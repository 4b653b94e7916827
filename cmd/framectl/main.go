// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package framectl provides a load-generation and administration tool
// for the frame store service.
package main

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/diffeo/go-framestore/dataset"
	"github.com/diffeo/go-framestore/frameclient"
	"github.com/diffeo/go-framestore/framedata"
	"github.com/satori/go.uuid"
	"github.com/urfave/cli"
)

type benchWork struct {
	Client      *frameclient.Client
	Dataset     *frameclient.Dataset
	Concurrency int
}

func (bench *benchWork) Run(runner func()) {
	wg := sync.WaitGroup{}
	wg.Add(bench.Concurrency)
	for i := 0; i < bench.Concurrency; i++ {
		go func() {
			defer wg.Done()
			runner()
		}()
	}
	wg.Wait()
}

var bench benchWork

var labels = []string{"dog", "cat", "bird", "fish"}

var addFrames = cli.Command{
	Name:  "add",
	Usage: "create many samples with frames",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "samples",
			Value: 10,
			Usage: "number of samples to create",
		},
		cli.IntFlag{
			Name:  "frames",
			Value: 100,
			Usage: "number of frames per sample",
		},
	},
	Action: func(c *cli.Context) {
		samples := c.Int("samples")
		frames := c.Int("frames")
		numbers := make(chan int)
		go func() {
			for i := 1; i <= samples; i++ {
				numbers <- i
			}
			close(numbers)
		}()
		bench.Run(func() {
			ctx := context.Background()
			for <-numbers != 0 {
				filepath := "bench/" + uuid.NewV4().String() + ".mp4"
				sample, err := bench.Dataset.AddSample(ctx, filepath)
				if err != nil {
					return
				}
				batch := make([]framedata.Frame, frames)
				for i := range batch {
					batch[i] = framedata.Frame{
						Number: i + 1,
						Data: framedata.DataDict{
							"label":   labels[i%len(labels)],
							"quality": float64(i%10) / 10.0,
						},
					}
				}
				_ = sample.SaveFrames(ctx, batch)
			}
		})
	},
}

var queryFrames = cli.Command{
	Name:  "query",
	Usage: "run a filtered frame query against every sample",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "label",
			Value: "dog",
			Usage: "label value to match",
		},
	},
	Action: func(c *cli.Context) {
		label := c.String("label")
		ctx := context.Background()
		samples, err := bench.Dataset.Samples(ctx)
		if err != nil {
			return
		}
		work := make(chan *frameclient.Sample)
		go func() {
			for _, s := range samples {
				work <- s
			}
			close(work)
		}()
		bench.Run(func() {
			for s := range work {
				_, _ = s.Query(ctx, framedata.FrameQuery{
					Match: map[string]interface{}{"label": label},
				})
			}
		})
	},
}

var stats = cli.Command{
	Name:  "stats",
	Usage: "print the size of the dataset",
	Action: func(c *cli.Context) {
		ctx := context.Background()
		if err := bench.Dataset.Refresh(ctx); err != nil {
			return
		}
		fmt.Printf("dataset:  %v\n", bench.Dataset.Name())
		fmt.Printf("samples:  %v\n", bench.Dataset.SampleCount())
		fmt.Printf("frames:   %v\n", bench.Dataset.FrameCount())
		for _, field := range bench.Dataset.FrameFields() {
			fmt.Printf("field:    %v (%v)\n", field.Name, field.Kind)
		}
	},
}

var clear = cli.Command{
	Name:  "clear",
	Usage: "delete all of the samples",
	Action: func(c *cli.Context) {
		ctx := context.Background()
		samples, err := bench.Dataset.Samples(ctx)
		if err != nil {
			return
		}
		work := make(chan *frameclient.Sample)
		go func() {
			for _, s := range samples {
				work <- s
			}
			close(work)
		}()
		bench.Run(func() {
			for s := range work {
				_ = s.Delete(ctx)
			}
		})
	},
}

func main() {
	app := cli.NewApp()
	app.Usage = "benchmark the frame store service"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "url",
			Value: "http://localhost:5151/",
			Usage: "base URL of the frame store service",
		},
		cli.StringFlag{
			Name:  "dataset",
			Value: "bench",
			Usage: "dataset name to work in",
		},
		cli.IntFlag{
			Name:  "concurrency",
			Value: runtime.NumCPU(),
			Usage: "run this many jobs in parallel",
		},
	}
	app.Commands = []cli.Command{
		addFrames,
		queryFrames,
		stats,
		clear,
	}
	app.Before = func(c *cli.Context) (err error) {
		ctx := context.Background()
		bench.Client, err = frameclient.New(ctx, c.String("url"))
		if err != nil {
			return
		}

		name := c.String("dataset")
		bench.Dataset, err = bench.Client.Dataset(ctx, name)
		if err == dataset.ErrNoDataset {
			bench.Dataset, err = bench.Client.CreateDataset(ctx, name)
		}
		if err != nil {
			return
		}

		bench.Concurrency = c.Int("concurrency")

		return
	}
	app.RunAndExitOnError()
}
