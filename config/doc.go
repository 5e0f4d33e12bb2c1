// Package config provides configuration loading and validation for stashbox.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (STASHBOX_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with STASHBOX_ prefix:
//   - server.port → STASHBOX_SERVER_PORT
//   - database.dsn → STASHBOX_DATABASE_DSN
//   - storage.minio.secret_key → STASHBOX_STORAGE_MINIO_SECRET_KEY
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port, public_url, base_path and max_upload_size
//   - Service: cleanup and telemetry timeouts in seconds
//   - Database: type (sqlite, postgres, mysql), DSN, pool size, table names
//   - Storage: backend (filesystem or minio) and its settings
//   - Tokens: access tokens seeded on migrate, inline or from a JSON file
//   - CORS: cross-origin resource sharing settings
//   - Metrics: whether /metrics is served
//   - Log: level and format (text or json)
package config
