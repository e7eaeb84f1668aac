// Package util provides small helpers shared across the backend.
package util

import (
	"math"
	"os"
	"time"
)

// GetEnvDefault is a convenience function for handling env vars
func GetEnvDefault(key, defVal string) string {
	val, ex := os.LookupEnv(key) // get the env var
	if !ex {                     // not found return default
		return defVal
	}
	return val // return value for env var
}

// Round1 rounds to one decimal place. All "days" fields are rounded this
// way before emission.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// DaysBetween returns the fractional number of days from a to b.
func DaysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}

// UTCNow returns the current time in UTC truncated to whole seconds, the
// resolution stored by the scanning pipeline.
var UTCNow = func() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
