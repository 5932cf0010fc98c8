package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/desertthunder/mixtape/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	backend    *Backend
	host       services.PlaylistHost
	catalog    services.Catalog
	generator  services.TextGenerator
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Backend, Host, Catalog and Generator are built from Config on first use when nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Backend    *Backend
	Host       services.PlaylistHost
	Catalog    services.Catalog
	Generator  services.TextGenerator
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
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
		configPath: opts.ConfigPath,
		backend:    opts.Backend,
		host:       opts.Host,
		catalog:    opts.Catalog,
		generator:  opts.Generator,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, generateCommand, usageCommand, playlistsCommand, serveCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and the components it builds afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close releases the storage backend.
func (r *Runner) Close() {
	if r.backend != nil {
		r.backend.Close()
		r.backend = nil
	}
}

// storage opens the configured backend once.
func (r *Runner) storage(ctx context.Context) (*Backend, error) {
	if r.backend != nil {
		return r.backend, nil
	}
	if r.config == nil {
		return nil, errNoBackend
	}

	b, err := OpenBackend(ctx, r.config)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("storage ready", "driver", b.Driver, "redis", r.config.Redis.URL != "")
	r.backend = b
	return b, nil
}

// hosting returns the playlist host and catalog, defaulting both to Spotify.
func (r *Runner) hosting() (services.PlaylistHost, services.Catalog, error) {
	if r.host != nil && r.catalog != nil {
		return r.host, r.catalog, nil
	}

	spotify, err := services.NewSpotifyService(r.config.Credentials.Spotify.Map(), services.WithLogger(r.logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	if r.host == nil {
		r.host = spotify
	}
	if r.catalog == nil {
		r.catalog = spotify
	}
	return r.host, r.catalog, nil
}

// pipeline wires the generation stages from config.
func (r *Runner) pipeline(ctx context.Context) (*tasks.PlaylistEngine, *Backend, error) {
	backend, err := r.storage(ctx)
	if err != nil {
		return nil, nil, err
	}

	host, catalog, err := r.hosting()
	if err != nil {
		return nil, nil, err
	}

	if r.generator == nil {
		gen, err := services.NewGenerator(ctx, r.config)
		if err != nil {
			r.logger.Warn("text generator unavailable, runs will fail at generation", "error", err)
		} else {
			r.generator = gen
		}
	}

	if backend.Cache != nil {
		catalog = services.NewCachedCatalog(catalog, backend.Cache, r.config.Redis.SearchCacheTTL(), r.logger)
	}

	cfg := r.config
	engine := tasks.NewPlaylistEngine(tasks.Components{
		Gate:      tasks.NewQuotaGate(backend.Users, backend.Usage, cfg.Quota.FreeMonthlyLimit, r.logger),
		Generator: tasks.NewDraftGenerator(r.generator, cfg.LLM.Timeout(), r.logger),
		Parser:    tasks.NewDraftParser(r.logger),
		Resolver: tasks.NewTrackResolver(catalog, tasks.ResolverOpts{
			NumWorkers:    cfg.Resolver.Workers,
			RateLimit:     cfg.Resolver.RateLimit,
			SearchTimeout: cfg.Resolver.SearchTimeout(),
		}, r.logger),
		Assembler: tasks.NewPlaylistAssembler(host, tasks.AssemblerOpts{
			Timeout:       cfg.Assembler.Timeout(),
			MaxCoverBytes: cfg.Assembler.MaxCoverBytes,
		}, r.logger),
		Persister: tasks.NewResultPersister(backend.Records, tasks.NewUsageAccountant(backend.Usage), r.logger),
		Host:      host,
		Owners:    backend.Users,
	}, r.logger)

	return engine, backend, nil
}

// userID resolves the --user flag, falling back to [shared.UserConfig.DefaultID].
func (r *Runner) userID(cmd *cli.Command) (string, error) {
	if id := cmd.String("user"); id != "" {
		return id, nil
	}
	if r.config != nil && r.config.User.DefaultID != "" {
		return r.config.User.DefaultID, nil
	}
	return "", fmt.Errorf("%w: --user is required when user.default_id is not set", shared.ErrMissingArgument)
}

// configFile is the path config changes are saved to.
func (r *Runner) configFile() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}

// saveTokens stores an OAuth token in the config file the runner was loaded from.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return errors.New("config is nil")
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if err := shared.SaveConfig(r.configFile(), r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
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

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
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
