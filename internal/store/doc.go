// Package store persists OAuth credentials in SQLite.
//
// Each mailbox owner has at most one row; writes are single-statement
// upserts keyed by owner, so concurrent refreshes cannot duplicate records.
// The token set itself is stored as one JSON document in the
// authorized-user format.
package store
