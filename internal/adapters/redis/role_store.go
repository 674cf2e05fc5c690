package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	"github.com/academiq/academiq-api/internal/ports"
	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/redis/go-redis/v9"
)

const defaultRoleField = "role"

// RoleDocStore is the primary role-record document store. User documents are
// JSON blobs keyed by identity id; the role field is extracted with a
// JMESPath expression so document schema drift is configuration, not code.
type RoleDocStore struct {
	client   redis.UniversalClient
	prefix   string
	roleExpr string
}

var (
	_ ports.RoleStore  = (*RoleDocStore)(nil)
	_ ports.RoleWriter = (*RoleDocStore)(nil)
)

// RoleDocStoreOptions configures a RoleDocStore.
type RoleDocStoreOptions struct {
	// Prefix is the key prefix for user documents. Defaults to "user:".
	Prefix string
	// RoleField is the JMESPath expression locating the role inside the
	// document. Defaults to "role".
	RoleField string
}

// NewRoleDocStore creates a role document store over the given client.
func NewRoleDocStore(client redis.UniversalClient, opts RoleDocStoreOptions) (*RoleDocStore, error) {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "user:"
	}
	expr := opts.RoleField
	if expr == "" {
		expr = defaultRoleField
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, fmt.Errorf("compile role field expression %q: %w", expr, err)
	}
	return &RoleDocStore{client: client, prefix: prefix, roleExpr: expr}, nil
}

// GetRoleRecord loads the user document and extracts its role field. A
// missing document maps to ports.ErrRoleRecordNotFound; a missing or
// non-string role field yields an empty role, which resolves through the
// fallback branch.
func (s *RoleDocStore) GetRoleRecord(ctx context.Context, identityID string) (domainsession.RoleRecord, error) {
	if identityID == "" {
		return domainsession.RoleRecord{}, ports.ErrRoleRecordNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+identityID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainsession.RoleRecord{}, ports.ErrRoleRecordNotFound
		}
		return domainsession.RoleRecord{}, fmt.Errorf("redis get: %w", err)
	}

	var doc map[string]any
	if unmarshalErr := json.Unmarshal([]byte(data), &doc); unmarshalErr != nil {
		return domainsession.RoleRecord{}, fmt.Errorf("unmarshal user document: %w", unmarshalErr)
	}

	rec := domainsession.RoleRecord{UserID: identityID, Profile: doc}
	if raw, searchErr := jmespath.Search(s.roleExpr, doc); searchErr == nil {
		if role, ok := raw.(string); ok {
			rec.Role = role
		}
	}
	return rec, nil
}

// CreateRoleRecord writes the role record as a user document. Profile fields
// ride along; the role field always wins over a profile entry of the same
// name.
func (s *RoleDocStore) CreateRoleRecord(ctx context.Context, rec domainsession.RoleRecord) error {
	if rec.UserID == "" {
		return errors.New("role record user ID cannot be empty")
	}

	doc := make(map[string]any, len(rec.Profile)+2)
	for k, v := range rec.Profile {
		doc[k] = v
	}
	doc["user_id"] = rec.UserID
	doc[defaultRoleField] = rec.Role

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal user document: %w", err)
	}
	// Role records have no TTL; they live until the account is removed.
	return s.client.Set(ctx, s.prefix+rec.UserID, data, 0).Err()
}
