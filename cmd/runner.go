package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/soundscope/soundscope/internal/formatter"
	"github.com/soundscope/soundscope/internal/repositories"
	"github.com/soundscope/soundscope/internal/services"
	"github.com/soundscope/soundscope/internal/shared"
	"github.com/soundscope/soundscope/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	catalog services.Catalog
	logger  *log.Logger
	output  io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config  *shared.Config
	Catalog services.Catalog
	Logger  *log.Logger
	Output  io.Writer
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

	return &Runner{
		config:  opts.Config,
		catalog: opts.Catalog,
		logger:  opts.Logger,
		output:  opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, searchCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openDatabase opens the configured SQLite database and applies pending migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, err
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Setup initializes the database and runs migrations, creating a config file
// from the embedded template when none exists.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
		} else {
			r.config = config
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err := shared.LoadConfig(configPath); err == nil {
				r.config = config
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}

// ConfigCreate writes the embedded example config to the given path.
func (r *Runner) ConfigCreate(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.writePlain("✓ Config file created at %s\n", path)
	r.writePlain("Fill in credentials.spotify.client_id and client_secret before searching.\n")
	return nil
}

// searchOutput is the JSON document emitted for one search.
type searchOutput struct {
	Artist   any                `json:"artist"`
	Ingested bool               `json:"ingested"`
	Tracks   any                `json:"tracks"`
	Means    map[string]float64 `json:"feature_means,omitempty"`
}

// Search runs the full pipeline for one artist name and renders the result.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: artist name", shared.ErrMissingArgument)
	}

	if configPath := cmd.String("config"); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if config, err := shared.LoadConfig(configPath); err == nil {
				r.config = config
			}
		}
	}

	engine, cleanup, err := r.buildEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase.String())
		}
	}()

	result, err := engine.Search(ctx, progress, name)
	close(progress)
	<-done

	if err != nil {
		if errors.Is(err, shared.ErrArtistNotFound) {
			r.writePlain("No artist found matching %q\n", name)
			return nil
		}
		return err
	}

	return r.renderResult(cmd, result)
}

// buildEngine wires the catalog service, store and engine for one command.
func (r *Runner) buildEngine() (tasks.SearchEngine, func(), error) {
	catalog := r.catalog
	if catalog == nil {
		creds := r.config.Credentials.Spotify
		if creds.ClientID == "" || creds.ClientSecret == "" {
			return nil, nil, fmt.Errorf("%w: set credentials.spotify in config.toml", shared.ErrMissingCredentials)
		}

		svc, err := services.NewSpotifyService(map[string]string{
			"client_id":     creds.ClientID,
			"client_secret": creds.ClientSecret,
		}, &services.SpotifyOpts{
			RateLimit: r.config.Ingest.RateLimit,
			Timeout:   timeoutSeconds(r.config.Ingest.TimeoutSeconds),
		})
		if err != nil {
			return nil, nil, err
		}
		catalog = svc
	}

	db, err := r.openDatabase()
	if err != nil {
		return nil, nil, err
	}

	repo := repositories.NewCatalogRepository(db)
	engine := tasks.NewCatalogEngine(catalog, repo, &tasks.EngineOpts{
		Workers: r.config.Ingest.Workers,
		Logger:  r.logger,
	})

	return engine, func() { db.Close() }, nil
}

// renderResult writes the search result in the requested format.
func (r *Runner) renderResult(cmd *cli.Command, result *tasks.SearchResult) error {
	means := tasks.FeatureMeans(result.Rows)

	switch {
	case cmd.Bool("csv"):
		data, err := formatter.TableToCSV(result.Rows)
		if err != nil {
			return err
		}
		if cmd.Bool("means") {
			meansData, err := formatter.MeansToCSV(means, tasks.NormalizedFeatures)
			if err != nil {
				return err
			}
			data = append(data, '\n')
			data = append(data, meansData...)
		}
		return r.writeRendered(cmd, data)

	case cmd.Bool("json"):
		output := searchOutput{
			Artist:   result.Artist,
			Ingested: result.Ingested,
			Tracks:   result.Rows,
		}
		if cmd.Bool("means") {
			output.Means = means
		}
		data, err := formatter.MarshalJSON(output, cmd.Bool("pretty"))
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		data = append(data, '\n')
		return r.writeRendered(cmd, data)

	default:
		r.writePlainHeader(fmt.Sprintf("%s — %d tracks", result.Artist.Name, len(result.Rows)))
		if result.Ingested {
			r.writePlain("Catalog ingested on this search.\n")
		} else {
			r.writePlain("Served from local catalog.\n")
		}
		for _, feature := range tasks.NormalizedFeatures {
			if mean, ok := means[feature]; ok {
				r.writePlain("%-18s %.4f\n", feature, mean)
			}
		}
		return nil
	}
}

// writeRendered sends rendered bytes to --output or the runner's writer.
func (r *Runner) writeRendered(cmd *cli.Command, data []byte) error {
	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteFile(path, data); err != nil {
			return err
		}
		r.writePlain("✓ Output written to %s\n", path)
		return nil
	}

	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
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

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
