// package connection implements the connection state store: the single
// owner of the third-party connection's status, with pub/sub notification,
// request coalescing, a check cooldown, and proactive token refresh
// scheduling.
package connection

import (
	"time"

	"github.com/desertthunder/likedsync/internal/models"
)

// State is a snapshot of the connection's status. Snapshots are values;
// only the store's internal update method mutates the live state, so a
// snapshot handed to a subscriber never changes underneath it.
type State struct {
	IsConnected   bool
	IsLoading     bool
	Connection    *models.Connection
	Err           string
	LastCheckedAt time.Time
	HealthStatus  models.HealthStatus
}

// NewState returns the initial disconnected state with unknown health.
func NewState() State {
	return State{HealthStatus: models.HealthUnknown}
}

// clone deep-copies the snapshot so subscribers cannot reach the store's
// connection record.
func (s State) clone() State {
	out := s
	if s.Connection != nil {
		conn := *s.Connection
		out.Connection = &conn
	}
	return out
}
