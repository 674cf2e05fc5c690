package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/academiq/academiq-api/internal/data/pgxutil"
	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	apperrors "github.com/academiq/academiq-api/internal/errors"
	"github.com/academiq/academiq-api/internal/ports"
	"github.com/jackc/pgx/v5"
)

// ErrUserExists is returned when creating a legacy user that already exists.
var ErrUserExists = errors.New("user already exists")

// LegacyUserRepo reads and writes the legacy users table, the pre-migration
// data source consulted when the primary document store has no role record.
type LegacyUserRepo struct {
	DB *sql.DB
}

var (
	_ ports.LegacyRoleStore = (*LegacyUserRepo)(nil)
	_ ports.RoleLister      = (*LegacyUserRepo)(nil)
)

// NewLegacyUserRepo creates a new LegacyUserRepo.
func NewLegacyUserRepo(db *sql.DB) *LegacyUserRepo {
	return &LegacyUserRepo{DB: db}
}

// GetRoleRecord looks up the legacy row for an identity. A NULL role column
// returns a record with an empty role, which resolves through the fallback
// branch.
func (r *LegacyUserRepo) GetRoleRecord(ctx context.Context, identityID string) (domainsession.RoleRecord, error) {
	if identityID == "" {
		return domainsession.RoleRecord{}, ports.ErrRoleRecordNotFound
	}

	var (
		role  sql.NullString
		email sql.NullString
	)
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx,
			`SELECT role, email FROM users WHERE user_id = $1`,
			identityID,
		).Scan(&role, &email)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainsession.RoleRecord{}, ports.ErrRoleRecordNotFound
		}
		return domainsession.RoleRecord{}, apperrors.MapDBError(err)
	}

	return domainsession.RoleRecord{
		UserID:  identityID,
		Role:    role.String,
		Profile: map[string]any{"email": email.String},
	}, nil
}

// DistinctRoles returns the distinct non-null roles present in the legacy
// table, sorted.
func (r *LegacyUserRepo) DistinctRoles(ctx context.Context) ([]string, error) {
	var roles []string
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT DISTINCT role FROM users WHERE role IS NOT NULL ORDER BY role`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var role string
			if scanErr := rows.Scan(&role); scanErr != nil {
				return scanErr
			}
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return roles, nil
}

// CreateUser inserts a legacy user row.
func (r *LegacyUserRepo) CreateUser(ctx context.Context, rec domainsession.RoleRecord) error {
	if rec.UserID == "" {
		return errors.New("user ID is required")
	}

	email, _ := rec.Profile["email"].(string)
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx,
			`INSERT INTO users (user_id, email, role) VALUES ($1, $2, NULLIF($3, ''))`,
			rec.UserID, email, rec.Role,
		)
		return execErr
	})
	if err != nil {
		mapped := apperrors.MapDBError(err)
		var appErr *apperrors.AppError
		if errors.As(mapped, &appErr) && appErr.Code == apperrors.ErrCodeConflict {
			return fmt.Errorf("%w: %s", ErrUserExists, rec.UserID)
		}
		return mapped
	}
	return nil
}

// CreateStudentProfile inserts the student profile row created alongside a
// student registration.
func (r *LegacyUserRepo) CreateStudentProfile(ctx context.Context, userID, email string) error {
	if userID == "" {
		return errors.New("user ID is required")
	}

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx,
			`INSERT INTO students (user_id, email) VALUES ($1, $2)
			 ON CONFLICT (user_id) DO NOTHING`,
			userID, email,
		)
		return execErr
	})
	if err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}
