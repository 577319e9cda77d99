// package formatter renders connection status, validation results, and sync
// summaries for the CLI (plain text, JSON, CSV)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/likedsync/internal/connection"
	"github.com/desertthunder/likedsync/internal/models"
)

// ToJSON renders any value as indented JSON.
func ToJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// StatusText renders a connection state snapshot as plain text.
func StatusText(state connection.State, now time.Time) []byte {
	var buf bytes.Buffer

	if state.IsConnected {
		buf.WriteString("Connection: ✓ connected\n")
	} else {
		buf.WriteString("Connection: ✗ not connected\n")
	}

	if conn := state.Connection; conn != nil {
		buf.WriteString(fmt.Sprintf("Account: %s", conn.AccountID))
		if conn.DisplayName != "" {
			buf.WriteString(fmt.Sprintf(" (%s)", conn.DisplayName))
		}
		buf.WriteString("\n")
		if conn.Optimistic {
			buf.WriteString("Status: optimistic (awaiting server confirmation)\n")
		}
		buf.WriteString(fmt.Sprintf("Token expires: %s\n", formatExpiry(conn.ExpiresAt, now)))
	}

	buf.WriteString(fmt.Sprintf("Health: %s\n", state.HealthStatus))

	if !state.LastCheckedAt.IsZero() {
		buf.WriteString(fmt.Sprintf("Last checked: %s ago\n", now.Sub(state.LastCheckedAt).Round(time.Second)))
	}
	if state.Err != "" {
		buf.WriteString(fmt.Sprintf("Error: %s\n", state.Err))
	}

	return buf.Bytes()
}

func formatExpiry(expiresAt, now time.Time) string {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return fmt.Sprintf("expired %s ago", (-remaining).Round(time.Minute))
	}
	return fmt.Sprintf("in %s", remaining.Round(time.Minute))
}

// ValidationText renders a validation result as plain text.
func ValidationText(result models.ValidationResult) []byte {
	var buf bytes.Buffer

	if result.IsValid {
		buf.WriteString("Session: ✓ valid\n")
	} else {
		buf.WriteString("Session: ✗ invalid\n")
	}
	if result.WasCleared {
		buf.WriteString("Local credentials were cleared\n")
	}
	buf.WriteString(fmt.Sprintf("Reason: %s\n", result.Reason))
	buf.WriteString(fmt.Sprintf("Retries used: %d\n", result.RetriesUsed))
	buf.WriteString(fmt.Sprintf("Elapsed: %s\n", result.Elapsed.Round(time.Millisecond)))

	return buf.Bytes()
}

// SyncText renders a sync summary as plain text.
func SyncText(summary *models.SyncSummary) []byte {
	var buf bytes.Buffer

	mode := "incremental"
	if summary.FullSync {
		mode = "full"
	}
	buf.WriteString(fmt.Sprintf("Sync complete (%s)\n", mode))
	buf.WriteString(fmt.Sprintf("Tracks processed: %d\n", summary.TracksProcessed))
	buf.WriteString(fmt.Sprintf("New tracks added: %d\n", summary.NewTracksAdded))
	if summary.Duration > 0 {
		buf.WriteString(fmt.Sprintf("Duration: %s\n", summary.Duration.Round(time.Millisecond)))
	}

	return buf.Bytes()
}

// SecurityText renders a security report as plain text.
func SecurityText(report models.SecurityReport) []byte {
	var buf bytes.Buffer

	if report.IsValid {
		buf.WriteString("Token storage: ✓ ok\n")
	} else {
		buf.WriteString("Token storage: ✗ issues found\n")
	}
	buf.WriteString(fmt.Sprintf("Risk level: %s (score %d)\n", report.RiskLevel, report.Score))
	for _, issue := range report.Issues {
		buf.WriteString(fmt.Sprintf("  - %s\n", issue))
	}

	return buf.Bytes()
}

// TracksToCSV converts cached tracks to CSV with columns: ID, Title, Artist, Album, ISRC, AddedAt
func TracksToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "ISRC", "AddedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		addedAt := ""
		if !track.AddedAt.IsZero() {
			addedAt = strconv.FormatInt(track.AddedAt.Unix(), 10)
		}
		record := []string{track.ID, track.Title, track.Artist, track.Album, track.ISRC, addedAt}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}
