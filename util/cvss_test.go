package util

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vulndash/vulndash-backend/model"
)

func TestCalculateCVSSScore(t *testing.T) {
	// Log4Shell, CVSS 3.1 base 10.0.
	score := CalculateCVSSScore("CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H")
	assert.Equal(t, 10.0, score)

	assert.Zero(t, CalculateCVSSScore(""))
	assert.Zero(t, CalculateCVSSScore("not a vector"))
	assert.Zero(t, CalculateCVSSScore("CVSS:3.1/garbage"))
}

func TestSeverityFromScore(t *testing.T) {
	assert.Equal(t, model.SeverityCritical, SeverityFromScore(9.0))
	assert.Equal(t, model.SeverityHigh, SeverityFromScore(7.5))
	assert.Equal(t, model.SeverityMedium, SeverityFromScore(4.0))
	assert.Equal(t, model.SeverityLow, SeverityFromScore(3.9))
	assert.Equal(t, model.SeverityLow, SeverityFromScore(0))
}

func TestSeverityFromVector(t *testing.T) {
	assert.Equal(t, model.SeverityCritical,
		SeverityFromVector("CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H"))
	assert.Equal(t, model.SeverityLow, SeverityFromVector(""))
}

func TestTicketSeverity(t *testing.T) {
	// A recorded severity always wins, even over a higher-scoring vector.
	assert.Equal(t, model.SeverityMedium, TicketSeverity(model.TicketDetails{
		Severity:   model.SeverityMedium,
		CVSSVector: "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H",
	}))

	// Missing severity falls back to the vector, then to the base score.
	assert.Equal(t, model.SeverityCritical, TicketSeverity(model.TicketDetails{
		CVSSVector: "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H",
	}))
	assert.Equal(t, model.SeverityHigh, TicketSeverity(model.TicketDetails{
		CVSSBaseScore: 7.5,
	}))
	assert.Equal(t, model.SeverityLow, TicketSeverity(model.TicketDetails{}))
}
