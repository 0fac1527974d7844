// Package metrics records payment lifecycle counters and latencies.
package metrics

import "time"

// Recorder receives lifecycle events. labels carries at least "network".
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
	// AddAmount adds amount, in Pi, to the running total of name.
	AddAmount(name string, amount float64, labels map[string]string)
}
