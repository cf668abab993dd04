// Package config loads the process-wide configuration for inboxdraft.
//
// Configuration comes from environment variables (optionally seeded from a
// .env file) and is materialized once into an immutable Config struct that
// is handed to every component at construction time.
package config
