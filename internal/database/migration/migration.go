package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_storage_records",
		SQL: `CREATE TABLE IF NOT EXISTS storage_records (
  id          UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  access      SMALLINT    NOT NULL,
  owner_class TEXT        NOT NULL,
  owner_id    TEXT        NOT NULL,
  attribute   TEXT        NOT NULL,
  file_path   TEXT        NOT NULL,
  file_name   TEXT        NOT NULL,
  size        BIGINT      NOT NULL CHECK (size >= 0),
  mime_type   TEXT        NOT NULL,
  status      SMALLINT    NOT NULL DEFAULT 1,
  tenant      TEXT        NOT NULL DEFAULT '',
  shared_with JSONB       NOT NULL DEFAULT '[]'::jsonb,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  created_by  TEXT        NOT NULL DEFAULT '',
  updated_by  TEXT        NOT NULL DEFAULT '',
  UNIQUE (file_path, file_name)
);`,
	},
	{
		Name: "create_index_storage_records_access",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_storage_records_access ON storage_records (access);`,
	},
	{
		Name: "create_index_storage_records_owner",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_storage_records_owner ON storage_records (owner_class, owner_id, attribute);`,
	},
	{
		Name: "create_table_access_tokens",
		SQL: `CREATE TABLE IF NOT EXISTS access_tokens (
  token             TEXT        PRIMARY KEY CHECK (token ~ '^[a-zA-Z0-9]+$'),
  storage_record_id UUID        NOT NULL REFERENCES storage_records (id),
  user_id           TEXT        NOT NULL,
  source_ip         TEXT        NOT NULL,
  expires_at        TIMESTAMPTZ NOT NULL,
  created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (storage_record_id, user_id, source_ip)
);`,
	},
	{
		Name: "create_index_access_tokens_expires_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_access_tokens_expires_at ON access_tokens (expires_at);`,
	},
}

// EnsureMigrated checks if the 'storage_records' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, loc *time.Location, dbHost string) error {
	start := time.Now()

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.storage_records') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		logJSON(loc, map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(loc, map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_start",
		"status":    "in_progress",
		"db_host":   dbHost,
	})

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			logJSON(loc, map[string]any{
				"component":        "database",
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(loc, map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(loc, map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(loc *time.Location, data map[string]any) {
	data["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal migration log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
