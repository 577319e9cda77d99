package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/likedsync/internal/connection"
	"github.com/desertthunder/likedsync/internal/repositories"
	"github.com/desertthunder/likedsync/internal/services"
	"github.com/desertthunder/likedsync/internal/session"
	"github.com/desertthunder/likedsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Database-backed dependencies are built lazily by ensure(), so commands
// that never touch local state (setup before first run, version) don't
// require an existing database.
type Runner struct {
	config     *shared.Config
	logger     *log.Logger
	output     io.Writer
	httpClient *http.Client

	db       *sql.DB
	markers  *repositories.MarkerRepository
	tracks   *repositories.TrackRepository
	sessions services.SessionStore
	backend  services.Backend
	spotify  *services.SpotifyService
	accessor *session.Accessor
	store    *connection.Store
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client
	Backend    services.Backend
	Sessions   services.SessionStore
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		logger:     opts.Logger,
		output:     opts.Output,
		httpClient: opts.HTTPClient,
		backend:    opts.Backend,
		sessions:   opts.Sessions,
	}
}

// ensure builds the database-backed dependency graph on first use.
func (r *Runner) ensure() error {
	if r.store != nil {
		return nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database (run setup first?): %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.db = db
	r.markers = repositories.NewMarkerRepository(db)
	r.tracks = repositories.NewTrackRepository(db)

	if r.sessions == nil {
		r.sessions = repositories.NewSessionFile("")
	}

	if r.backend == nil {
		backend, err := services.NewBackendClient(r.config.Backend.BaseURL, r.config.Backend.AnonKey, r.httpClient, r.sessions)
		if err != nil {
			return err
		}
		r.backend = backend
	}

	if spotify, err := services.NewSpotifyService(r.config.Credentials.Spotify.ClientID, r.config.Credentials.Spotify.RedirectURI); err == nil {
		r.spotify = spotify
	} else {
		r.logger.Debug("spotify service unavailable", "err", err)
	}

	r.accessor = session.NewAccessor(r.backend, r.logger)

	conf := r.config.Connection
	validator := session.NewValidator(r.accessor, r.backend, r.markers, r.sessions, r.logger, session.ValidatorOptions{
		FetchTimeout:     time.Duration(conf.FetchTimeoutSeconds) * time.Second,
		RoundTripTimeout: time.Duration(conf.FetchTimeoutSeconds) * time.Second,
		GlobalTimeout:    time.Duration(conf.GlobalTimeoutSeconds) * time.Second,
		MaxRetries:       conf.MaxRetries,
		RetryDelay:       time.Duration(conf.RetryDelayMillis) * time.Millisecond,
	})

	r.store = connection.NewStore(connection.StoreOpts{
		Backend:          r.backend,
		Accessor:         r.accessor,
		Validator:        validator,
		Markers:          r.markers,
		Logger:           r.logger,
		Cooldown:         conf.Cooldown(),
		RefreshThreshold: conf.RefreshThreshold(),
	})

	return nil
}

// Close releases the runner's resources.
func (r *Runner) Close() {
	if r.store != nil {
		r.store.Close()
	}
	if r.db != nil {
		r.db.Close()
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, connectCommand, disconnectCommand, statusCommand, checkCommand,
		syncCommand, validateCommand, refreshCommand, healthCommand, securityCommand, tracksCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
