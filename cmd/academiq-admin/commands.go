package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/academiq/academiq-api/internal/bootstrap"
	"github.com/academiq/academiq-api/internal/data"
	"github.com/academiq/academiq-api/internal/devseed"
	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	"github.com/academiq/academiq-api/internal/ports"
)

type migrateOptions struct {
	Timeout time.Duration
}

func runMigrateCommand(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	opts := migrateOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "maximum time to wait for migrations")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	inf, err := connectInfra(ctx, infraOptions{NeedDB: true})
	if err != nil {
		return err
	}
	defer closeInfra(ctx, inf)

	runCtx, cancel := context.WithTimeout(ctx.Ctx, opts.Timeout)
	defer cancel()

	return bootstrap.RunMigrations(runCtx, inf.DB, ctx.Logger)
}

func runDBSeed(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("db-seed", flag.ContinueOnError)
	skipMigrations := fs.Bool("skip-migrations", false, "seed without running migrations first")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	inf, err := connectInfra(ctx, infraOptions{NeedDB: true, NeedRedis: true})
	if err != nil {
		return err
	}
	defer closeInfra(ctx, inf)

	if !*skipMigrations {
		if migrateErr := bootstrap.RunMigrations(ctx.Ctx, inf.DB, ctx.Logger); migrateErr != nil {
			return migrateErr
		}
	}

	svcs := devseed.Services{DB: inf.DB}
	if inf.RoleDocs != nil {
		svcs.RoleDocs = inf.RoleDocs
	}
	return devseed.Run(ctx.Ctx, svcs, ctx.Logger)
}

type addUserOptions struct {
	ID    string
	Email string
	Role  string
}

func runAddUser(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	opts := addUserOptions{}
	fs.StringVar(&opts.ID, "id", "", "stable user identifier (required)")
	fs.StringVar(&opts.Email, "email", "", "user email address")
	fs.StringVar(&opts.Role, "role", "student", "role to assign (student, parent, teacher, admin)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	if opts.ID == "" {
		return errors.New("adduser requires -id")
	}
	role, ok := domainsession.ParseRole(opts.Role)
	if !ok {
		return fmt.Errorf("unknown role %q", opts.Role)
	}

	inf, err := connectInfra(ctx, infraOptions{NeedDB: true, NeedRedis: true})
	if err != nil {
		return err
	}
	defer closeInfra(ctx, inf)

	rec := domainsession.RoleRecord{
		UserID: opts.ID,
		Role:   string(role),
		Profile: map[string]any{
			"email":      opts.Email,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		},
	}

	repo := data.NewLegacyUserRepo(inf.DB)
	if createErr := repo.CreateUser(ctx.Ctx, rec); createErr != nil {
		if !errors.Is(createErr, data.ErrUserExists) {
			return fmt.Errorf("create legacy user: %w", createErr)
		}
		ctx.Logger.WarnContext(ctx.Ctx, "legacy user already exists", "user_id", opts.ID)
	}
	if role == domainsession.RoleStudent {
		if profileErr := repo.CreateStudentProfile(ctx.Ctx, opts.ID, opts.Email); profileErr != nil {
			return fmt.Errorf("create student profile: %w", profileErr)
		}
	}

	if inf.RoleDocs != nil {
		if docErr := inf.RoleDocs.CreateRoleRecord(ctx.Ctx, rec); docErr != nil {
			return fmt.Errorf("create role document: %w", docErr)
		}
	}

	ctx.Logger.InfoContext(ctx.Ctx, "user created", "user_id", opts.ID, "role", role)
	return nil
}

func runListRoles(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("roles", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	inf, err := connectInfra(ctx, infraOptions{NeedDB: true})
	if err != nil {
		return err
	}
	defer closeInfra(ctx, inf)

	stored, err := data.NewLegacyUserRepo(inf.DB).DistinctRoles(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}

	assigned := make(map[string]bool, len(stored))
	for _, role := range stored {
		assigned[role] = true
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if writeErr := writef(w, "ROLE\tASSIGNED\n"); writeErr != nil {
		return writeErr
	}
	for _, role := range domainsession.Roles() {
		if writeErr := writef(w, "%s\t%t\n", role, assigned[string(role)]); writeErr != nil {
			return writeErr
		}
	}
	if flushErr := w.Flush(); flushErr != nil {
		return fmt.Errorf("flush output: %w", flushErr)
	}
	return nil
}

type showUserOptions struct {
	ID string
}

func runShowUser(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("show-user", flag.ContinueOnError)
	opts := showUserOptions{}
	fs.StringVar(&opts.ID, "id", "", "user identifier to look up (required)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if opts.ID == "" {
		return errors.New("show-user requires -id")
	}

	inf, err := connectInfra(ctx, infraOptions{NeedDB: true, NeedRedis: true})
	if err != nil {
		return err
	}
	defer closeInfra(ctx, inf)

	rec, source, lookupErr := lookupRoleRecord(ctx.Ctx, inf, opts.ID)
	if lookupErr != nil {
		return lookupErr
	}

	role := rec.Role
	if role == "" {
		role = "(none)"
	}
	if writeErr := writef(os.Stdout, "user:\t%s\nrole:\t%s\nsource:\t%s\n", rec.UserID, role, source); writeErr != nil {
		return writeErr
	}
	for key, value := range rec.Profile {
		if writeErr := writef(os.Stdout, "%s:\t%v\n", key, value); writeErr != nil {
			return writeErr
		}
	}
	return nil
}

// lookupRoleRecord mirrors the resolver's store ordering: the role document
// store first, then the legacy relational store.
func lookupRoleRecord(ctx context.Context, inf *infra, id string) (domainsession.RoleRecord, string, error) {
	if inf.RoleDocs != nil {
		rec, err := inf.RoleDocs.GetRoleRecord(ctx, id)
		if err == nil {
			return rec, "primary", nil
		}
		if !errors.Is(err, ports.ErrRoleRecordNotFound) {
			return domainsession.RoleRecord{}, "", fmt.Errorf("primary store lookup: %w", err)
		}
	}

	rec, err := data.NewLegacyUserRepo(inf.DB).GetRoleRecord(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrRoleRecordNotFound) {
			return domainsession.RoleRecord{}, "", fmt.Errorf("user %q not found in any store", id)
		}
		return domainsession.RoleRecord{}, "", fmt.Errorf("legacy store lookup: %w", err)
	}
	return rec, "legacy", nil
}

type clearSessionOptions struct {
	ID string
}

func runClearSession(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("clear-session", flag.ContinueOnError)
	opts := clearSessionOptions{}
	fs.StringVar(&opts.ID, "id", "", "session identifier to delete (required)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if opts.ID == "" {
		return errors.New("clear-session requires -id")
	}

	inf, err := connectInfra(ctx, infraOptions{NeedRedis: true})
	if err != nil {
		return err
	}
	defer closeInfra(ctx, inf)

	if inf.Sessions == nil {
		return errors.New("clear-session requires a configured redis session store")
	}
	if deleteErr := inf.Sessions.Delete(ctx.Ctx, opts.ID); deleteErr != nil {
		return fmt.Errorf("delete session: %w", deleteErr)
	}

	ctx.Logger.InfoContext(ctx.Ctx, "session deleted", "session_id", opts.ID)
	return nil
}
