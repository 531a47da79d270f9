package formulas

import (
	"github.com/markcheno/go-talib"
)

// SMA calculates a simple moving average over a value series.
// The first window-1 entries of the result are NaN, matching talib behavior.
// Returns nil when the series is shorter than the window.
func SMA(values []float64, window int) []float64 {
	if window < 1 || len(values) < window {
		return nil
	}
	return talib.Sma(values, window)
}

// LastSMA returns the most recent SMA value, or nil when there is not
// enough data to fill one window.
func LastSMA(values []float64, window int) *float64 {
	sma := SMA(values, window)
	if len(sma) == 0 {
		return nil
	}
	last := sma[len(sma)-1]
	if isNaN(last) {
		return nil
	}
	return &last
}

func isNaN(f float64) bool {
	return f != f
}
