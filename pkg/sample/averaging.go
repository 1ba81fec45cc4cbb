package sample

import "log"

// Summary describes the readings currently in the averaging window.
type Summary struct {
	Reading
	Mean float64 // Mean of Average over the window
	Min  uint32
	Max  uint32
	N    int // Readings in the window
}

// Converter turns a stream of readings into window summaries.
type Converter func(in <-chan Reading) <-chan Summary

// NewAveragingConverter creates a converter that emits, for every input
// reading, the summary of the last windowSize readings.
func NewAveragingConverter(windowSize int, bufSize int) Converter {
	if windowSize <= 0 {
		windowSize = 1 // No averaging if invalid
	}
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan Reading) <-chan Summary {
		out := make(chan Summary, bufSize)

		go func() {
			defer close(out)

			window := make([]Reading, 0, windowSize)
			for r := range in {
				window = append(window, r)
				if len(window) > windowSize {
					window = window[1:] // Remove oldest
				}

				select {
				case out <- summarize(window):
				default:
					log.Printf("Averaging converter output channel full")
				}
			}
		}()

		return out
	}
}

// summarize reduces a window of readings. The timestamp and average of
// the newest reading are carried over.
func summarize(window []Reading) Summary {
	if len(window) == 0 {
		return Summary{}
	}

	s := Summary{
		Reading: window[len(window)-1],
		Min:     window[0].Average,
		Max:     window[0].Average,
		N:       len(window),
	}

	var sum float64
	for _, r := range window {
		sum += float64(r.Average)
		s.Min = min(s.Min, r.Average)
		s.Max = max(s.Max, r.Average)
	}
	s.Mean = sum / float64(len(window))
	return s
}
