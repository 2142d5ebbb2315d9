// Package repositories implements SQLite persistence.
//
// Key Implementations:
//   - [LoginKeyRepository] : per-account login keys that let a later logon skip
//     secondary verification
//
// The schema is created by the embedded migrations in the shared package; run
// `badgeidle setup database` or open the database with shared.OpenMigrated.
package repositories
