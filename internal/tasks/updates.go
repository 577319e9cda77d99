package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchLibrary Phase = iota
	CacheTracks
	Finalize
)

func (p Phase) String() string {
	switch p {
	case FetchLibrary:
		return "fetch_library"
	case CacheTracks:
		return "cache_tracks"
	case Finalize:
		return "finalize"
	default:
		return ""
	}
}

func fetchPageUpdate(step, total int) ProgressUpdate {
	message := "Fetching liked songs..."
	if total > 0 {
		message = fmt.Sprintf("Fetching liked songs (%d/%d)...", step, total)
	}
	return ProgressUpdate{
		Phase:   FetchLibrary,
		Step:    step,
		Total:   total,
		Message: message,
	}
}

func cacheTracksUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CacheTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Caching tracks (%d/%d)...", step, total),
	}
}

func finalizeUpdate(added, processed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finalize,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Sync complete: %d new of %d processed", added, processed),
	}
}
