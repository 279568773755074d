package main

import (
	"fmt"
	"io"
	"time"

	"hugrqir/internal/buildpipeline"
)

func printStageTimings(out io.Writer, label string, timings buildpipeline.Timings) error {
	if out == nil {
		return nil
	}
	if label != "" {
		if _, err := fmt.Fprintf(out, "%s:\n", label); err != nil {
			return err
		}
	}
	for _, stage := range buildpipeline.Stages {
		if !timings.Has(stage) {
			continue
		}
		if _, err := fmt.Fprintf(out, "  %-9s %8.1f ms\n", stage, toMillis(timings.Duration(stage))); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(out, "  %-9s %8.1f ms\n", "total", toMillis(timings.Total()))
	return err
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
