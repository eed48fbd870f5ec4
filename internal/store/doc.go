// Package store provides persistent storage for wallet identities.
//
// # Architecture
//
// The store package is interface-driven. Consumers depend on the narrowest
// interface they need:
//
//   - IdentityStore: point lookups of staff and registrations by address
//   - RegistrationStore: atomic student id allocation plus insert
//   - AdminStore: approval transitions, staff provisioning, audit log
//   - Store: all of the above plus Ping and Close
//
// SQLiteStore (modernc.org/sqlite) is the default backend. PostgresStore
// (pgx) serves multi-instance deployments. MockStore is an in-memory
// implementation for unit tests.
//
// # Addresses
//
// Every address handed to the store must already be canonical (lowercase,
// 0x-prefixed). The store compares addresses byte for byte.
//
// # Student IDs
//
// CreateRegistration reads the largest numeric student id, applies the
// StudentIDPolicy and inserts the row in one transaction. SQLite serializes
// allocation with a process mutex and a single connection; Postgres takes
// pg_advisory_xact_lock. UNIQUE constraints on wallet_address and
// student_id remain the final guard, and a student id collision is retried
// a bounded number of times.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateRegistration: Address already registered
//   - ErrDuplicateStaff: Address already provisioned as staff
//   - ErrStatusConflict: Approval transition from an unexpected status
//
// All other failures are wrapped backend errors.
//
// # Testing
//
// Use NewMockStore() for unit tests:
//
//	s := store.NewMockStore()
//	s.SetErr(errors.New("db down")) // simulate an unavailable backend
//
// Use NewSQLiteStore with a path under t.TempDir() for integration tests.
// Postgres tests run only when ONEBLOCK_TEST_POSTGRES_DSN is set.
package store
