package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the config template to the runner's config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configFile()
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlain("Next: fill in credentials.spotify and an LLM api_key, then run 'mixtape setup database'\n")
	return nil
}

// SetupDatabase initializes the configured database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	target := r.config.Database.Path
	if r.config.Database.Driver == "postgres" {
		target = "postgres"
	}
	r.logger.Info("initializing database", "driver", r.config.Database.Driver, "target", target)

	backend, err := r.storage(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	if cmd.Bool("rollback") || cmd.Bool("status") {
		if backend.SQL == nil {
			return fmt.Errorf("%w: migration history is only tracked for sqlite", shared.ErrNotImplemented)
		}
	}

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(ctx, backend.SQL); err != nil {
			return err
		}
		r.writePlain("✓ Rolled back latest migration\n")
	}

	if cmd.Bool("status") {
		statuses, err := shared.Migrations(ctx, backend.SQL)
		if err != nil {
			return err
		}
		r.writePlainHeader("Migrations")
		for _, s := range statuses {
			mark := "✗"
			if s.Applied {
				mark = "✓"
			}
			r.writePlain("%s %04d %s\n", mark, s.Version, s.Name)
		}
		return nil
	}

	r.logger.Infof("setup complete for database: %v", target)
	return r.writePlain("✓ Database ready (%s)\n", backend.Driver)
}

// SetupUser creates a local user.
func (r *Runner) SetupUser(ctx context.Context, cmd *cli.Command) error {
	tier, err := models.ParseTier(cmd.String("tier"))
	if err != nil {
		return err
	}

	user := models.NewUser(0, cmd.String("email"), cmd.String("name"))
	user.SetTier(tier)
	user.SetExternalID(cmd.String("external-id"))

	backend, err := r.storage(ctx)
	if err != nil {
		return err
	}
	if err := backend.Users.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Info("user created", "id", user.ID(), "tier", tier)
	r.writePlain("✓ Created user %s (%s, %s)\n", user.ID(), user.Email(), tier)

	if cmd.Bool("default") {
		r.config.User.DefaultID = user.ID()
		path := r.configFile()
		if err := shared.SaveConfig(path, r.config); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		r.writePlain("✓ Saved as default user in %s\n", path)
	}
	return nil
}
