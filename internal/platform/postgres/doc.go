// Package postgres implements the store interfaces on PostgreSQL.
//
// Stores accept a store.DBTX so the same code runs on a *sql.DB or inside a
// transaction opened by Transactor. Row locks (SELECT ... FOR UPDATE) give
// per-key read-modify-write atomicity: concurrent reviews of the same
// (user, item) pair serialize on the mastery row, per-user work serializes
// on the learner_accounts row, and a partial unique index keeps at most one
// open session per user.
//
// MapError translates driver errors into store errors. Lock timeouts,
// serialization failures and deadlocks become transient errors that the
// retrying transactor can replay.
//
// The schema lives in embedded goose migrations; see Migrate.
package postgres
