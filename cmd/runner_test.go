package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/desertthunder/mixtape/internal/tasks"
	tu "github.com/desertthunder/mixtape/internal/testing"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

type fixture struct {
	runner  *Runner
	store   *tu.MemoryStore
	host    *tu.MockHost
	gen     *tu.MockGenerator
	output  *bytes.Buffer
	config  *shared.Config
	cfgPath string
}

func newFixture(t *testing.T, tracks int) *fixture {
	t.Helper()

	store := tu.NewMemoryStore()
	store.AddUser("u1", models.TierFree, "spotify-user")

	config := shared.DefaultConfig()
	config.Quota.FreeMonthlyLimit = 2
	config.Resolver.RateLimit = 1000
	config.User.DefaultID = "u1"

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := shared.SaveConfig(cfgPath, config); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	f := &fixture{
		store:   store,
		host:    &tu.MockHost{},
		gen:     &tu.MockGenerator{Response: tu.FixtureJSON("late night set", tracks)},
		output:  &bytes.Buffer{},
		config:  config,
		cfgPath: cfgPath,
	}
	f.runner = NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: cfgPath,
		Backend:    &Backend{Users: store, Usage: store, Records: store, Driver: "memory"},
		Host:       f.host,
		Catalog:    tu.NewMockCatalog(tu.FixtureCandidates(tracks)...),
		Generator:  f.gen,
		Output:     f.output,
	})
	return f
}

func (f *fixture) run(args ...string) error {
	app := &cli.Command{
		Name:     "mixtape",
		Commands: f.runner.register(),
		Writer:   f.output,
	}
	return app.Run(context.Background(), append([]string{"mixtape"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			host := &tu.MockHost{}
			catalog := tu.NewMockCatalog()
			gen := &tu.MockGenerator{}
			backend := &Backend{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Backend:    backend,
				Host:       host,
				Catalog:    catalog,
				Generator:  gen,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.backend != backend {
				t.Error("expected backend to be set")
			}
			if runner.host != host || runner.catalog != catalog {
				t.Error("expected host and catalog to be set")
			}
			if runner.generator != gen {
				t.Error("expected generator to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("configFile defaults to config.toml", func(t *testing.T) {
			if got := NewRunner(RunnerOpts{}).configFile(); got != "config.toml" {
				t.Errorf("expected config.toml, got %s", got)
			}
			if got := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"}).configFile(); got != "/test/path/config.toml" {
				t.Errorf("expected configured path, got %s", got)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		want := map[string]bool{"setup": false, "auth": false, "generate": false, "usage": false, "playlists": false, "serve": false, "cache": false}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			want[cmd.Name] = true
		}
		for name, found := range want {
			if !found {
				t.Errorf("command %s not registered", name)
			}
		}
	})

	t.Run("userID", func(t *testing.T) {
		f := newFixture(t, 10)
		resolve := func(args ...string) (string, error) {
			var got string
			cmd := &cli.Command{
				Name:  "probe",
				Flags: []cli.Flag{userFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					var err error
					got, err = f.runner.userID(cmd)
					return err
				},
			}
			err := cmd.Run(context.Background(), append([]string{"probe"}, args...))
			return got, err
		}

		if got, err := resolve(); err != nil || got != "u1" {
			t.Errorf("default user = %q, %v; want u1", got, err)
		}
		if got, err := resolve("--user", "u9"); err != nil || got != "u9" {
			t.Errorf("flag user = %q, %v; want u9", got, err)
		}

		f.config.User.DefaultID = ""
		if _, err := resolve(); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("saveTokens", func(t *testing.T) {
		t.Run("saves tokens successfully", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")

			config := shared.DefaultConfig()
			config.Credentials.Spotify.ClientID = "test_id"
			config.Credentials.Spotify.ClientSecret = "test_secret"
			if err := shared.SaveConfig(configPath, config); err != nil {
				t.Fatalf("failed to create test config: %v", err)
			}

			runner := NewRunner(RunnerOpts{Config: config, ConfigPath: configPath})
			token := &oauth2.Token{AccessToken: "new_access_token", RefreshToken: "new_refresh_token"}
			if err := runner.saveTokens(token); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			loadedConfig, err := shared.LoadConfig(configPath)
			if err != nil {
				t.Fatalf("failed to reload config: %v", err)
			}
			if loadedConfig.Credentials.Spotify.AccessToken != "new_access_token" {
				t.Errorf("expected access token to be updated, got %s", loadedConfig.Credentials.Spotify.AccessToken)
			}
			if loadedConfig.Credentials.Spotify.RefreshToken != "new_refresh_token" {
				t.Errorf("expected refresh token to be updated, got %s", loadedConfig.Credentials.Spotify.RefreshToken)
			}
			if loadedConfig.Credentials.Spotify.ClientID != "test_id" {
				t.Errorf("expected client id to survive, got %s", loadedConfig.Credentials.Spotify.ClientID)
			}
		})

		t.Run("handles nil config error", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/tmp/test.toml"})
			runner.config = nil

			err := runner.saveTokens(&oauth2.Token{AccessToken: "test"})
			if err == nil || !strings.Contains(err.Error(), "config is nil") {
				t.Errorf("expected nil config error, got %v", err)
			}
		})

		t.Run("handles SaveConfig failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config:     shared.DefaultConfig(),
				ConfigPath: filepath.Join(t.TempDir(), "missing", "dir", "config.toml"),
			})

			err := runner.saveTokens(&oauth2.Token{AccessToken: "test"})
			if err == nil || !strings.Contains(err.Error(), "failed to save config") {
				t.Errorf("expected save config error, got %v", err)
			}
		})

		t.Run("handles Update error", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config:     shared.DefaultConfig(),
				ConfigPath: filepath.Join(t.TempDir(), "config.toml"),
			})

			err := runner.saveTokens(nil)
			if err == nil || !strings.Contains(err.Error(), "failed to update spotify configuration") {
				t.Errorf("expected update error, got %v", err)
			}
			if !errors.Is(err, shared.ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials in chain, got %v", err)
			}
		})
	})
}

func TestGenerate(t *testing.T) {
	t.Run("creates playlist and records it", func(t *testing.T) {
		f := newFixture(t, 12)

		err := f.run("generate", "--name", "Late Night", "--genre", "jazz", "--genre", " soul ", "--tracks", "12", "--token", "tok")
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}

		if !strings.Contains(f.output.String(), `✓ Created "Late Night" with 12 tracks`) {
			t.Errorf("unexpected output: %s", f.output.String())
		}
		if f.host.Creates() != 1 {
			t.Errorf("expected one playlist, got %d", f.host.Creates())
		}

		records := f.store.Records()
		if len(records) != 1 {
			t.Fatalf("expected one record, got %d", len(records))
		}
		if got := records[0].Criteria().Genres; len(got) != 2 || got[1] != "soul" {
			t.Errorf("genres = %v", got)
		}

		w, _ := f.store.StoredWindow("u1")
		if w.Count != 1 {
			t.Errorf("usage count = %d, want 1", w.Count)
		}
	})

	t.Run("json output", func(t *testing.T) {
		f := newFixture(t, 10)

		if err := f.run("generate", "--name", "Mix", "--token", "tok", "--json", "--tracks", "10"); err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if !strings.Contains(f.output.String(), `"playlist"`) {
			t.Errorf("expected JSON result, got %s", f.output.String())
		}
	})

	t.Run("rejects invalid criteria before any work", func(t *testing.T) {
		f := newFixture(t, 10)

		err := f.run("generate", "--name", "Tiny", "--tracks", "3", "--token", "tok")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if f.gen.Calls() != 0 {
			t.Errorf("generator should not run, got %d calls", f.gen.Calls())
		}
	})

	t.Run("requires a token", func(t *testing.T) {
		f := newFixture(t, 10)

		err := f.run("generate", "--name", "Mix", "--tracks", "10")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("quota exhausted returns failure", func(t *testing.T) {
		f := newFixture(t, 10)
		w := models.NewUsageWindow("u1", time.Now())
		w.Count = 2
		f.store.SetWindow(w)

		err := f.run("generate", "--name", "Mix", "--tracks", "10", "--token", "tok")
		var failure tasks.Failure
		if !errors.As(err, &failure) || failure.Kind != tasks.QuotaExceeded {
			t.Fatalf("expected quota failure, got %v", err)
		}
		if !strings.Contains(f.output.String(), "✗ Failed: quota_exceeded") {
			t.Errorf("unexpected output: %s", f.output.String())
		}
		if f.host.Creates() != 0 {
			t.Error("no playlist should be created")
		}
	})
}

func TestCriteriaFromCommand(t *testing.T) {
	parse := func(t *testing.T, args ...string) models.PlaylistCriteria {
		t.Helper()
		var got models.PlaylistCriteria
		cmd := generateCommand(NewRunner(RunnerOpts{}))
		cmd.Action = func(ctx context.Context, cmd *cli.Command) error {
			var err error
			got, err = criteriaFromCommand(cmd)
			return err
		}
		if err := cmd.Run(context.Background(), append([]string{"generate"}, args...)); err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		return got
	}

	t.Run("defaults", func(t *testing.T) {
		got := parse(t, "--name", "Mix")
		if got.TrackCount != 20 || got.Uniqueness != 3 || got.IsPublic {
			t.Errorf("unexpected defaults: %+v", got)
		}
	})

	t.Run("flags override criteria file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "criteria.toml")
		content := "name = \"From File\"\ngenres = [\"ambient\"]\nmoods = [\"calm\"]\ntrack_count = 30\nis_public = true\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		got := parse(t, "--from", path, "--genre", "techno")
		if got.Name != "From File" || got.TrackCount != 30 || !got.IsPublic {
			t.Errorf("file values lost: %+v", got)
		}
		if len(got.Genres) != 1 || got.Genres[0] != "techno" {
			t.Errorf("genres = %v, want [techno]", got.Genres)
		}
		if len(got.Moods) != 1 || got.Moods[0] != "calm" {
			t.Errorf("moods = %v, want [calm]", got.Moods)
		}
	})

	t.Run("cover is base64 encoded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cover.jpg")
		if err := os.WriteFile(path, []byte("image-bytes"), 0644); err != nil {
			t.Fatal(err)
		}

		got := parse(t, "--name", "Mix", "--cover", path)
		if got.CoverImage != base64.StdEncoding.EncodeToString([]byte("image-bytes")) {
			t.Errorf("cover = %q", got.CoverImage)
		}
	})
}

func TestUsageAndPlaylists(t *testing.T) {
	f := newFixture(t, 10)
	if err := f.run("generate", "--name", "First", "--tracks", "10", "--token", "tok"); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	t.Run("usage show", func(t *testing.T) {
		f.output.Reset()
		if err := f.run("usage", "show"); err != nil {
			t.Fatalf("usage failed: %v", err)
		}
		for _, want := range []string{"Tier:      free", "Generated: 1 of 2", "Remaining: 1"} {
			if !strings.Contains(f.output.String(), want) {
				t.Errorf("usage output missing %q: %s", want, f.output.String())
			}
		}
	})

	t.Run("usage show unknown user", func(t *testing.T) {
		err := f.run("usage", "show", "--user", "ghost")
		if !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("playlists list", func(t *testing.T) {
		f.output.Reset()
		if err := f.run("playlists", "list"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(f.output.String(), "1. First (10 tracks)") {
			t.Errorf("unexpected list output: %s", f.output.String())
		}
	})

	t.Run("playlists list empty", func(t *testing.T) {
		f.output.Reset()
		if err := f.run("playlists", "list", "--user", "nobody"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(f.output.String(), "No playlists generated yet.") {
			t.Errorf("unexpected list output: %s", f.output.String())
		}
	})

	t.Run("playlists export", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")
		if err := f.run("playlists", "export", "--format", "csv", "--output", path); err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if !strings.Contains(tu.MustReadFile(t, path), ",First,") {
			t.Errorf("csv missing record")
		}
	})

	t.Run("cache commands need an admin", func(t *testing.T) {
		err := f.run("cache", "stats")
		if !errors.Is(err, shared.ErrNotImplemented) {
			t.Errorf("expected ErrNotImplemented, got %v", err)
		}
	})
}

func TestSetupUser(t *testing.T) {
	f := newFixture(t, 10)

	err := f.run("setup", "user", "--email", "ada@example.com", "--name", "Ada", "--tier", "premium", "--default")
	if err != nil {
		t.Fatalf("setup user failed: %v", err)
	}

	id := f.config.User.DefaultID
	if id == "" || id == "u1" {
		t.Fatalf("default user not updated: %q", id)
	}
	if tier, err := f.store.Tier(context.Background(), id); err != nil || tier != models.TierPremium {
		t.Errorf("tier = %v, %v", tier, err)
	}

	loaded, err := shared.LoadConfig(f.cfgPath)
	if err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if loaded.User.DefaultID != id {
		t.Errorf("saved default = %q, want %q", loaded.User.DefaultID, id)
	}

	if err := f.run("setup", "user", "--email", "x@example.com", "--name", "X", "--tier", "gold"); err == nil {
		t.Error("expected error for unknown tier")
	}
}

func TestAuthToken(t *testing.T) {
	f := newFixture(t, 10)

	f.config.Server.JWTSecret = ""
	if err := f.run("auth", "token"); !errors.Is(err, shared.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	f.config.Server.JWTSecret = "secret"
	f.output.Reset()
	if err := f.run("auth", "token", "--ttl", "1h"); err != nil {
		t.Fatalf("auth token failed: %v", err)
	}
	if parts := strings.Split(strings.TrimSpace(f.output.String()), "."); len(parts) != 3 {
		t.Errorf("expected a JWT, got %q", f.output.String())
	}
}

func TestSetupDatabase(t *testing.T) {
	config := shared.DefaultConfig()
	config.Database.Driver = "sqlite"
	config.Database.Path = ":memory:"
	config.Redis.URL = ""

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Config: config, Output: output})
	t.Cleanup(runner.Close)

	app := &cli.Command{Name: "mixtape", Commands: runner.register()}
	if err := app.Run(context.Background(), []string{"mixtape", "setup", "database", "--status"}); err != nil {
		t.Fatalf("setup database failed: %v", err)
	}

	for _, want := range []string{"✓ 0000 create_users", "✓ 0003 create_search_cache"} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("status missing %q: %s", want, output.String())
		}
	}
	if runner.backend == nil || runner.backend.CacheAdmin == nil {
		t.Fatal("expected sqlite backend with a cache admin")
	}

	output.Reset()
	app = &cli.Command{Name: "mixtape", Commands: runner.register()}
	if err := app.Run(context.Background(), []string{"mixtape", "cache", "stats"}); err != nil {
		t.Fatalf("cache stats failed: %v", err)
	}
	if !strings.Contains(output.String(), "Cached searches: 0") {
		t.Errorf("unexpected cache stats: %s", output.String())
	}
}
