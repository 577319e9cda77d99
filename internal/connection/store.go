package connection

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/likedsync/internal/models"
	"github.com/desertthunder/likedsync/internal/repositories"
	"github.com/desertthunder/likedsync/internal/services"
	"github.com/desertthunder/likedsync/internal/session"
	"github.com/desertthunder/likedsync/internal/shared"
)

// Listener receives state snapshots: once immediately on subscribe, then on
// every transition, in the order the underlying operations resolve.
type Listener func(State)

// inflight is the shared handle for a coalesced operation. The result is
// written before done closes, so every waiter observes the same value.
type inflight[T any] struct {
	done   chan struct{}
	result models.OperationResult[T]
}

// StoreOpts configures a Store. Zero durations pick up the defaults from
// the connection config section.
type StoreOpts struct {
	Backend          services.Backend
	Accessor         *session.Accessor
	Validator        *session.Validator
	Markers          *repositories.MarkerRepository
	Logger           *log.Logger
	Cooldown         time.Duration
	RefreshThreshold time.Duration
	RefreshPolicy    shared.RetryPolicy
	Now              func() time.Time
}

// Store owns the one ConnectionState for the process. It is an explicit
// instance handed to consumers rather than a package-level singleton, so
// independent stores can coexist in tests.
//
// All writes to the state go through the internal update method; every
// public operation resolves to an OperationResult value and never panics
// into a subscriber.
type Store struct {
	backend   services.Backend
	accessor  *session.Accessor
	validator *session.Validator
	markers   *repositories.MarkerRepository
	logger    *log.Logger
	now       func() time.Time

	cooldown         time.Duration
	refreshThreshold time.Duration
	refreshPolicy    shared.RetryPolicy

	mu          sync.Mutex
	notifyMu    sync.Mutex
	state       State
	subscribers map[int]Listener
	nextSubID   int

	lastCheckAt   time.Time
	lastCheck     *models.OperationResult[*models.Connection]
	checkInflight *inflight[*models.Connection]
	syncInflight  *inflight[*models.SyncSummary]

	refreshTimer *time.Timer
	refreshAt    time.Time
	closed       bool
}

// NewStore creates a connection state store in the initial disconnected,
// unknown-health state.
func NewStore(opts StoreOpts) *Store {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 5 * time.Second
	}
	if opts.RefreshThreshold <= 0 {
		opts.RefreshThreshold = 30 * time.Minute
	}
	if opts.RefreshPolicy.MaxRetries == 0 {
		opts.RefreshPolicy = shared.DefaultRetryPolicy()
	}

	return &Store{
		backend:          opts.Backend,
		accessor:         opts.Accessor,
		validator:        opts.Validator,
		markers:          opts.Markers,
		logger:           opts.Logger,
		now:              opts.Now,
		cooldown:         opts.Cooldown,
		refreshThreshold: opts.RefreshThreshold,
		refreshPolicy:    opts.RefreshPolicy,
		state:            NewState(),
		subscribers:      make(map[int]Listener),
	}
}

// Subscribe registers a listener and immediately invokes it with the current
// state. The returned function unsubscribes; an abandoned subscriber simply
// stops listening while in-flight operations complete and update shared
// state.
func (s *Store) Subscribe(listener Listener) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = listener
	snapshot := s.state.clone()
	s.mu.Unlock()

	listener(snapshot)

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// update is the single writer of the store's state. It enforces the state
// invariants: LastCheckedAt is monotonically non-decreasing, and loading
// always begins with the previous error cleared. notifyMu serializes whole
// transitions so subscribers observe them strictly in resolve order.
func (s *Store) update(mutate func(*State)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	prev := s.state
	next := prev.clone()
	mutate(&next)

	if next.LastCheckedAt.Before(prev.LastCheckedAt) {
		next.LastCheckedAt = prev.LastCheckedAt
	}
	if next.IsLoading {
		next.Err = ""
	}

	s.state = next
	listeners := make([]Listener, 0, len(s.subscribers))
	for id := 0; id < s.nextSubID; id++ {
		if l, ok := s.subscribers[id]; ok {
			listeners = append(listeners, l)
		}
	}
	snapshot := next.clone()
	s.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

// CheckConnection fetches the stored connection. Non-forced calls within the
// cooldown window of the last check are served from cache without I/O;
// concurrent calls while a check is in flight join the in-flight operation
// rather than issuing a second round trip.
func (s *Store) CheckConnection(ctx context.Context, force bool) models.OperationResult[*models.Connection] {
	s.mu.Lock()
	if infl := s.checkInflight; infl != nil {
		s.mu.Unlock()
		<-infl.done
		return infl.result
	}
	if !force && s.lastCheck != nil && s.now().Sub(s.lastCheckAt) < s.cooldown {
		cached := *s.lastCheck
		cached.Metadata.ServedFromCache = true
		s.mu.Unlock()
		return cached
	}
	infl := &inflight[*models.Connection]{done: make(chan struct{})}
	s.checkInflight = infl
	s.mu.Unlock()

	result := s.doCheck(ctx)

	s.mu.Lock()
	s.lastCheck = &result
	s.lastCheckAt = s.now()
	s.checkInflight = nil
	s.mu.Unlock()

	infl.result = result
	close(infl.done)
	return result
}

// doCheck performs the authoritative round trip and applies the result.
// A missing connection is a valid disconnected state, not an error.
func (s *Store) doCheck(ctx context.Context) models.OperationResult[*models.Connection] {
	start := s.now()
	s.update(func(st *State) { st.IsLoading = true })

	conn, err := s.backend.GetConnection(ctx)
	checkedAt := s.now()

	if err != nil {
		s.logger.Warn("connection check failed", "err", err)
		result := models.Fail[*models.Connection](err)
		result.Metadata.Duration = checkedAt.Sub(start)
		s.update(func(st *State) {
			st.IsLoading = false
			st.Err = result.Error
			st.LastCheckedAt = checkedAt
		})
		return result
	}

	s.update(func(st *State) {
		st.IsLoading = false
		st.Err = ""
		st.Connection = conn
		st.IsConnected = conn != nil
		st.LastCheckedAt = checkedAt
		if conn == nil {
			st.HealthStatus = models.HealthUnknown
		} else {
			st.HealthStatus = ComputeHealth(conn, checkedAt).Status
		}
	})

	if conn != nil {
		s.scheduleRefresh(conn)
	}

	result := models.Ok(conn)
	result.Metadata.Duration = checkedAt.Sub(start)
	return result
}

// Connect completes the OAuth flow by exchanging the authorization code
// through the backend, which vaults the provider tokens.
func (s *Store) Connect(ctx context.Context, code string) models.OperationResult[*models.Connection] {
	s.update(func(st *State) { st.IsLoading = true })

	conn, err := s.backend.ExchangeCode(ctx, code)
	if err != nil {
		result := models.Fail[*models.Connection](err)
		s.update(func(st *State) {
			st.IsLoading = false
			st.Err = result.Error
		})
		return result
	}

	now := s.now()
	if s.markers != nil {
		if err := s.markers.Set(repositories.MarkerAccountID, conn.AccountID); err != nil {
			s.logger.Warn("failed to record account marker", "err", err)
		}
		// The flow nonce is single-use; the exchange consumed it.
		if err := s.markers.Clear(repositories.MarkerOAuthState); err != nil {
			s.logger.Warn("failed to clear oauth state marker", "err", err)
		}
	}

	s.update(func(st *State) {
		st.IsLoading = false
		st.Err = ""
		st.Connection = conn
		st.IsConnected = true
		st.LastCheckedAt = now
		st.HealthStatus = ComputeHealth(conn, now).Status
	})

	result := models.Ok(conn)
	s.mu.Lock()
	s.lastCheck = &result
	s.lastCheckAt = now
	s.mu.Unlock()

	s.scheduleRefresh(conn)
	return result
}

// Disconnect deletes the stored connection and resets local state. The
// reset runs even when the backend delete fails, so a half-broken backend
// cannot wedge the client in a connected state it can no longer use.
func (s *Store) Disconnect(ctx context.Context) models.OperationResult[bool] {
	s.update(func(st *State) { st.IsLoading = true })
	s.stopRefreshTimer()

	err := s.backend.DeleteConnection(ctx)

	if s.markers != nil {
		for _, key := range []string{
			repositories.MarkerOAuthState,
			repositories.MarkerAccountID,
			repositories.MarkerLastSyncAt,
			repositories.MarkerLastFullSyncAt,
		} {
			if clearErr := s.markers.Clear(key); clearErr != nil {
				s.logger.Warn("failed to clear marker", "key", key, "err", clearErr)
			}
		}
	}

	s.mu.Lock()
	s.lastCheck = nil
	s.lastCheckAt = time.Time{}
	s.mu.Unlock()

	s.update(func(st *State) {
		st.IsLoading = false
		st.Connection = nil
		st.IsConnected = false
		st.HealthStatus = models.HealthUnknown
		if err != nil {
			st.Err = err.Error()
		} else {
			st.Err = ""
		}
	})

	if err != nil {
		return models.Fail[bool](err)
	}
	return models.Ok(true)
}

// SetConnectedOptimistically marks the state connected immediately after an
// OAuth redirect, ahead of the next authoritative check. The connection is
// an explicit placeholder (redacted refs, Optimistic flag) so downstream
// consumers can choose to re-verify rather than trust it. A placeholder
// never replaces a server-confirmed connection: the flip applies only while
// the state is disconnected or already optimistic.
func (s *Store) SetConnectedOptimistically(accountID, displayName string) {
	s.mu.Lock()
	confirmed := s.state.Connection != nil && !s.state.Connection.Optimistic
	s.mu.Unlock()
	if confirmed {
		s.logger.Debug("ignoring optimistic flip over a confirmed connection", "account", accountID)
		return
	}

	now := s.now()
	conn := models.NewOptimisticConnection(accountID, displayName, now)

	s.update(func(st *State) {
		st.IsLoading = false
		st.Err = ""
		st.Connection = conn
		st.IsConnected = true
		st.HealthStatus = models.HealthHealthy
	})
}

// SyncLikedSongs triggers a server-side liked songs sync. The operation
// self-serializes: a second call while a sync is in flight joins the
// existing one instead of double-processing the same remote library.
func (s *Store) SyncLikedSongs(ctx context.Context, forceFull bool) models.OperationResult[*models.SyncSummary] {
	s.mu.Lock()
	if infl := s.syncInflight; infl != nil {
		s.mu.Unlock()
		<-infl.done
		return infl.result
	}
	infl := &inflight[*models.SyncSummary]{done: make(chan struct{})}
	s.syncInflight = infl
	s.mu.Unlock()

	result := s.doSync(ctx, forceFull)

	s.mu.Lock()
	s.syncInflight = nil
	s.mu.Unlock()

	infl.result = result
	close(infl.done)
	return result
}

func (s *Store) doSync(ctx context.Context, forceFull bool) models.OperationResult[*models.SyncSummary] {
	start := s.now()
	s.update(func(st *State) { st.IsLoading = true })

	summary, err := s.backend.SyncLikedSongs(ctx, forceFull)

	if err != nil {
		result := models.Fail[*models.SyncSummary](err)
		result.Metadata.Duration = s.now().Sub(start)
		s.update(func(st *State) {
			st.IsLoading = false
			st.Err = result.Error
		})
		return result
	}

	now := s.now()
	summary.SyncedAt = now
	if s.markers != nil {
		if err := s.markers.SetTime(repositories.MarkerLastSyncAt, now); err != nil {
			s.logger.Warn("failed to record sync watermark", "err", err)
		}
		if forceFull {
			if err := s.markers.SetTime(repositories.MarkerLastFullSyncAt, now); err != nil {
				s.logger.Warn("failed to record full sync watermark", "err", err)
			}
		}
	}

	s.update(func(st *State) {
		st.IsLoading = false
		st.Err = ""
	})

	result := models.Ok(summary)
	result.Metadata.Duration = now.Sub(start)
	return result
}

// PerformHealthCheck verifies backend reachability and reclassifies the
// connection's health, feeding the result back into the state.
func (s *Store) PerformHealthCheck(ctx context.Context) models.OperationResult[models.HealthReport] {
	s.update(func(st *State) { st.IsLoading = true })

	err := s.backend.HealthCheck(ctx)

	s.mu.Lock()
	conn := s.state.Connection
	s.mu.Unlock()

	report := ComputeHealth(conn, s.now())
	if err != nil {
		report.Status = models.HealthError
	}

	s.update(func(st *State) {
		st.IsLoading = false
		st.HealthStatus = report.Status
		if err != nil {
			st.Err = err.Error()
		}
	})

	if err != nil {
		result := models.Fail[models.HealthReport](err)
		result.Data = report
		return result
	}
	return models.Ok(report)
}

// ValidateSecurity runs the read-only security classifier over the current
// connection. It performs no I/O; ctx is accepted so every store operation
// shares one call shape.
func (s *Store) ValidateSecurity(_ context.Context) models.OperationResult[models.SecurityReport] {
	s.mu.Lock()
	conn := s.state.Connection
	s.mu.Unlock()

	report := ValidateSecurity(conn, s.now())
	return models.Ok(report)
}

// ValidateOnStartup delegates startup validation to the session validator,
// then runs an authoritative check when the session survived.
func (s *Store) ValidateOnStartup(ctx context.Context) models.ValidationResult {
	if s.validator == nil {
		return models.ValidationResult{IsValid: true, Reason: "no validator configured"}
	}

	result := s.validator.ValidateOnStartup(ctx)
	if result.WasCleared {
		s.update(func(st *State) {
			st.Connection = nil
			st.IsConnected = false
			st.HealthStatus = models.HealthUnknown
			st.Err = ""
		})
	}
	return result
}

// Close stops the refresh timer. In-flight operations still complete and
// update shared state.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stopRefreshTimer()
}
