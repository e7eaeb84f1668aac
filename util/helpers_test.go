package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvDefault(t *testing.T) {
	t.Setenv("VULNDASH_TEST_VAR", "set")
	assert.Equal(t, "set", GetEnvDefault("VULNDASH_TEST_VAR", "fallback"))
	assert.Equal(t, "fallback", GetEnvDefault("VULNDASH_TEST_VAR_MISSING", "fallback"))
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 1.5, Round1(1.45))
	assert.Equal(t, 1.4, Round1(1.44))
	assert.Equal(t, 0.0, Round1(0.04))
	assert.Equal(t, -2.5, Round1(-2.45))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(36 * time.Hour)
	assert.Equal(t, 1.5, DaysBetween(a, b))
	assert.Equal(t, -1.5, DaysBetween(b, a))
}
