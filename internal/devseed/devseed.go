// Package devseed populates development environments with demo accounts:
// one user per role in the primary document store, plus legacy rows so the
// fallback lookup path has data to serve.
package devseed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/academiq/academiq-api/internal/data"
	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	"github.com/academiq/academiq-api/internal/ports"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	// DB is the legacy store connection. Optional; nil skips legacy seeding.
	DB *sql.DB
	// RoleDocs is the primary role-record writer. Optional; nil skips
	// document seeding.
	RoleDocs ports.RoleWriter
}

// demoUser is one seeded account.
type demoUser struct {
	UserID string
	Email  string
	Role   domainsession.Role
}

func demoUsers() []demoUser {
	return []demoUser{
		{UserID: "demo-student", Email: "student@academiq.dev", Role: domainsession.RoleStudent},
		{UserID: "demo-parent", Email: "parent@academiq.dev", Role: domainsession.RoleParent},
		{UserID: "demo-teacher", Email: "teacher@academiq.dev", Role: domainsession.RoleTeacher},
		{UserID: "demo-admin", Email: "admin@academiq.dev", Role: domainsession.RoleAdmin},
		// Exercises the fallback path: present in the legacy store only,
		// with no role recorded.
		{UserID: "demo-unassigned", Email: "unassigned@academiq.dev"},
	}
}

// Run executes the development seeding workflow. Existing records are left in
// place; seeding is idempotent.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	failures := 0
	for _, user := range demoUsers() {
		if err := seedUser(ctx, svcs, user); err != nil {
			logger.WarnContext(ctx, "seeding user failed", "user_id", user.UserID, "error", err)
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("seeding completed with %d failure(s)", failures)
	}
	logger.InfoContext(ctx, "development seed data applied", "users", len(demoUsers()))
	return nil
}

func seedUser(ctx context.Context, svcs Services, user demoUser) error {
	if svcs.DB != nil {
		if err := seedLegacyUser(ctx, svcs.DB, user); err != nil {
			return err
		}
	}

	// The unassigned demo user exists only in the legacy store.
	if svcs.RoleDocs == nil || user.Role == "" {
		return nil
	}

	rec := domainsession.RoleRecord{
		UserID: user.UserID,
		Role:   string(user.Role),
		Profile: map[string]any{
			"email":      user.Email,
			"created_at": time.Now().UTC().Format(time.RFC3339),
			"seeded":     true,
		},
	}
	if err := svcs.RoleDocs.CreateRoleRecord(ctx, rec); err != nil {
		return fmt.Errorf("create role document: %w", err)
	}
	return nil
}

func seedLegacyUser(ctx context.Context, db *sql.DB, user demoUser) error {
	repo := data.NewLegacyUserRepo(db)
	err := repo.CreateUser(ctx, domainsession.RoleRecord{
		UserID:  user.UserID,
		Role:    string(user.Role),
		Profile: map[string]any{"email": user.Email},
	})
	if err != nil && !errors.Is(err, data.ErrUserExists) {
		return fmt.Errorf("create legacy user: %w", err)
	}

	if user.Role == domainsession.RoleStudent {
		if profileErr := repo.CreateStudentProfile(ctx, user.UserID, user.Email); profileErr != nil {
			return fmt.Errorf("create student profile: %w", profileErr)
		}
	}
	return nil
}
