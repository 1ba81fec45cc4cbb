package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/itohio/bladc/pkg/config"
	"github.com/itohio/bladc/pkg/device"
	"github.com/itohio/bladc/pkg/sample"
)

// monitor prints one line per reading with the moving window statistics.
func monitor(ctx context.Context, d device.Device, cfg *config.Config, w io.Writer) error {
	if err := initADC(ctx, d); err != nil {
		return err
	}

	readings := sample.Stream(ctx, d, cfg.Poll.Interval, 0)
	summaries := sample.NewAveragingConverter(cfg.Poll.Window, 0)(readings)

	for s := range summaries {
		fmt.Fprintf(w, "%s avg=%d mean=%.1f min=%d max=%d n=%d\n",
			s.Timestamp.Format("15:04:05.000"), s.Average, s.Mean, s.Min, s.Max, s.N)
	}
	return nil
}

// repl forwards each input line to the device and prints the response.
func repl(ctx context.Context, d device.Device, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	fmt.Fprint(w, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "quit", "exit":
			return nil
		default:
			lines, err := d.Exec(ctx, line)
			for _, l := range lines {
				fmt.Fprintln(w, l)
			}
			if err != nil {
				fmt.Fprintf(w, "error: %v\n", err)
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(w, "> ")
	}
	return scanner.Err()
}
