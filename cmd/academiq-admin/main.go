// Command academiq-admin provides operational tooling for the AcademIQ
// service: migrations, development seeding, and user/role inspection.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/academiq/academiq-api/config"
	"github.com/academiq/academiq-api/internal/bootstrap"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultMigrationTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run legacy store database migrations",
			run:         runMigrateCommand,
		},
		"db-seed": {
			name:        "db-seed",
			description: "Run migrations and seed development accounts",
			run:         runDBSeed,
		},
		"adduser": {
			name:        "adduser",
			description: "Create a user with a role in the primary and legacy stores",
			run:         runAddUser,
		},
		"roles": {
			name:        "roles",
			description: "List distinct roles present in the legacy store",
			run:         runListRoles,
		},
		"show-user": {
			name:        "show-user",
			description: "Show the resolved role record for a user",
			run:         runShowUser,
		},
		"clear-session": {
			name:        "clear-session",
			description: "Delete a login session by ID",
			run:         runClearSession,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: academiq-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(os.Stdout, "  %-16s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
