// Package mocks provides mock implementations for testing the session and
// role resolution ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the interfaces in internal/ports. The generated files are committed so
// tests build without a codegen step; regenerate after interface changes with:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	store := mocks.NewMockRoleStore(ctrl)
//	store.EXPECT().GetRoleRecord(gomock.Any(), "user-1").Return(rec, nil)
package mocks

// Generate mock for RoleStore, the primary role record lookup.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=role_store_mock.go github.com/academiq/academiq-api/internal/ports RoleStore

// Generate mock for LegacyRoleStore, the secondary lookup consulted when the
// primary store has no record.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=legacy_role_store_mock.go github.com/academiq/academiq-api/internal/ports LegacyRoleStore

// Generate mock for SessionStore, the login session persistence port.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_store_mock.go github.com/academiq/academiq-api/internal/ports SessionStore
