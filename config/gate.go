package config

import (
	"fmt"
	"strings"
	"time"
)

// FallbackMode selects what role an authenticated session gets when its role
// record cannot be fetched or parsed.
type FallbackMode string

const (
	// FallbackModeStudent recovers failed lookups to the student role. This
	// keeps navigation alive at the cost of granting the least-privileged
	// dashboard to unknown users.
	FallbackModeStudent FallbackMode = "student"
	// FallbackModeNone leaves the role unresolved; guarded routes treat the
	// session as role-less and deny or redirect per the route policy.
	FallbackModeNone FallbackMode = "none"
)

// UnmarshalText implements encoding.TextUnmarshaler for FallbackMode.
func (f *FallbackMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "student", "none":
		*f = FallbackMode(v)
		return nil
	default:
		return fmt.Errorf("invalid FallbackMode: %q (valid options: student, none)", v)
	}
}

// GateConfig tunes session resolution and the access gate.
type GateConfig struct {
	// FallbackRole picks the recovery posture for failed role lookups.
	FallbackRole FallbackMode `env:"FALLBACK_ROLE" envDefault:"student"`

	// RoleField is the JMESPath expression that extracts the role from a
	// stored role document.
	RoleField string `env:"ROLE_FIELD" envDefault:"role"`

	// RolePrefix is the Redis key prefix for role documents.
	RolePrefix string `env:"ROLE_PREFIX" envDefault:"user:"`

	// ResolveTimeout bounds how long a request waits for a loading session
	// to settle before answering with a retriable loading response.
	ResolveTimeout time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"5s"`

	// FetchTimeout bounds a single role record fetch.
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to gate configuration values.
func (g *GateConfig) Sanitize() {
	if g.FallbackRole == "" {
		g.FallbackRole = FallbackModeStudent
	}
	if g.RoleField == "" {
		g.RoleField = "role"
	}
	if g.RolePrefix == "" {
		g.RolePrefix = "user:"
	}
	if g.ResolveTimeout <= 0 {
		g.ResolveTimeout = 5 * time.Second
	}
	if g.FetchTimeout <= 0 {
		g.FetchTimeout = 10 * time.Second
	}
}
