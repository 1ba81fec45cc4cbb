// Package sample streams averaged readings from a sampler device and
// summarizes them over a moving window.
package sample

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/itohio/bladc/pkg/device"
)

// Reading is one scaled ring average reported by a sampler.
type Reading struct {
	Timestamp time.Time
	Average   uint32 // Scaled mean, 0..3199
}

// Stream polls d every interval and sends each finished reading. The
// output channel is closed when ctx ends or the device fails.
func Stream(ctx context.Context, d device.Device, interval time.Duration, bufSize int) <-chan Reading {
	if bufSize <= 0 {
		bufSize = 100
	}
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	out := make(chan Reading, bufSize)

	go func() {
		defer close(out)

		for {
			avg, err := device.Poll(ctx, d, interval)
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					log.Printf("Failed to read sampler: %v", err)
				}
				return
			}

			select {
			case out <- Reading{Timestamp: time.Now(), Average: avg}:
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
				log.Printf("Stream output channel full, dropping reading")
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}()

	return out
}
