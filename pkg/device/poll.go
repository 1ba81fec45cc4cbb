package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/itohio/bladc/pkg/shell"
)

// ErrNoReading is returned when a response carries neither a reading nor
// the not-finished notice.
var ErrNoReading = errors.New("no adc reading in response")

var averagePrefix = strings.TrimSuffix(shell.AverageFormat, "%d")

// ParseAverage extracts the scaled average from read_adc output. ready is
// false when the firmware reported that sampling is still in progress.
func ParseAverage(lines []string) (avg uint32, ready bool, err error) {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == shell.NotFinished {
			return 0, false, nil
		}
		if !strings.HasPrefix(line, averagePrefix) {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(line, averagePrefix), 10, 32)
		if err != nil {
			return 0, false, fmt.Errorf("invalid average %q: %w", line, err)
		}
		return uint32(v), true, nil
	}
	return 0, false, ErrNoReading
}

// Poll runs read_adc every interval until a reading arrives or ctx ends.
func Poll(ctx context.Context, d Device, interval time.Duration) (uint32, error) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		lines, err := d.Exec(ctx, "read_adc")
		if err != nil {
			return 0, fmt.Errorf("read_adc failed: %w", err)
		}

		avg, ready, err := ParseAverage(lines)
		if err != nil {
			return 0, err
		}
		if ready {
			return avg, nil
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}
