package connection

import (
	"time"

	"github.com/desertthunder/likedsync/internal/models"
)

const (
	// healthWarningWindow is how close to expiry a connection is flagged as
	// needing attention.
	healthWarningWindow = 10 * time.Minute

	// staleConnectionAge is how long a connection may go untouched before
	// the security classifier considers it implausibly old. A live
	// connection is refreshed well within this window.
	staleConnectionAge = 90 * 24 * time.Hour
)

// ComputeHealth classifies connection health from token expiry distance and
// the presence of both token references. Pure function of its inputs; it
// never mutates the connection.
func ComputeHealth(conn *models.Connection, now time.Time) models.HealthReport {
	if conn == nil {
		return models.HealthReport{Status: models.HealthUnknown}
	}

	expiresIn := conn.ExpiresIn(now)
	report := models.HealthReport{
		ExpiresInMinutes: int(expiresIn.Minutes()),
	}

	switch {
	case conn.AccessTokenRef == "" || conn.RefreshTokenRef == "":
		report.Status = models.HealthError
	case expiresIn <= 0:
		report.Status = models.HealthError
	case expiresIn <= healthWarningWindow:
		report.Status = models.HealthWarning
	default:
		report.Status = models.HealthHealthy
	}

	return report
}

// securityCheck contributes a bounded amount to the risk score when its
// condition holds.
type securityCheck struct {
	issue  string
	weight int
	failed func(conn *models.Connection, now time.Time) bool
}

var securityChecks = []securityCheck{
	{
		issue:  "access token field contains raw secret material",
		weight: 40,
		failed: func(conn *models.Connection, _ time.Time) bool {
			return conn.AccessTokenRef != "" && conn.AccessTokenRef != models.RedactedPlaceholder && looksLikeSecret(conn.AccessTokenRef)
		},
	},
	{
		issue:  "refresh token field contains raw secret material",
		weight: 40,
		failed: func(conn *models.Connection, _ time.Time) bool {
			return conn.RefreshTokenRef != "" && conn.RefreshTokenRef != models.RedactedPlaceholder && looksLikeSecret(conn.RefreshTokenRef)
		},
	},
	{
		issue:  "vault reference ids missing",
		weight: 25,
		failed: func(conn *models.Connection, _ time.Time) bool {
			return conn.AccessTokenRef == "" || conn.RefreshTokenRef == ""
		},
	},
	{
		issue:  "connection untouched for an implausibly long time",
		weight: 15,
		failed: func(conn *models.Connection, now time.Time) bool {
			return !conn.UpdatedAt.IsZero() && now.Sub(conn.UpdatedAt) > staleConnectionAge
		},
	},
}

// looksLikeSecret flags values long enough to plausibly be a bearer token
// rather than an opaque vault reference id.
func looksLikeSecret(value string) bool {
	return len(value) > 64
}

// ValidateSecurity inspects the stored connection's token representation and
// access-pattern recency, contributing each finding to a bounded risk score.
// Read-only; the connection is never mutated.
func ValidateSecurity(conn *models.Connection, now time.Time) models.SecurityReport {
	report := models.SecurityReport{Issues: []string{}}

	if conn == nil {
		report.IsValid = true
		report.RiskLevel = models.RiskLow
		return report
	}

	for _, check := range securityChecks {
		if check.failed(conn, now) {
			report.Issues = append(report.Issues, check.issue)
			report.Score += check.weight
		}
	}
	if report.Score > 100 {
		report.Score = 100
	}

	switch {
	case report.Score >= 70:
		report.RiskLevel = models.RiskCritical
	case report.Score >= 40:
		report.RiskLevel = models.RiskHigh
	case report.Score >= 15:
		report.RiskLevel = models.RiskMedium
	default:
		report.RiskLevel = models.RiskLow
	}

	report.IsValid = report.Score < 40
	return report
}
