package strategy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore is the production DurableStore: strategy documents, the
// strategy index, and global settings each live in their own table,
// queried once at boot. Strategy documents and global settings are one
// JSON document column per row; the index is typed columns, with
// required_variables and fan_out stored as JSON.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool against dsn. The connection is
// not verified until the first query (ListActiveStrategyDocuments, et al.)
// runs during LoadAllFromStore.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

const selectActiveStrategiesSQL = `
SELECT slug, yaml_content
FROM strategies
WHERE active = true`

func (p *PostgresStore) ListActiveStrategyDocuments(ctx context.Context) (map[string]map[string]any, error) {
	rows, err := p.db.QueryContext(ctx, selectActiveStrategiesSQL)
	if err != nil {
		return nil, fmt.Errorf("querying strategies: %w", err)
	}
	defer rows.Close()

	docs := make(map[string]map[string]any)
	for rows.Next() {
		var slug string
		var raw []byte
		if err := rows.Scan(&slug, &raw); err != nil {
			return nil, fmt.Errorf("scanning strategy row: %w", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decoding strategy %q document: %w", slug, err)
		}
		docs[slug] = doc
	}
	return docs, rows.Err()
}

const selectStrategyIndexSQL = `
SELECT slug, category, time_window, depth, title, description,
       priority, active, required_variables, fan_out
FROM strategy_index`

func (p *PostgresStore) LoadIndex(ctx context.Context) ([]map[string]any, error) {
	rows, err := p.db.QueryContext(ctx, selectStrategyIndexSQL)
	if err != nil {
		return nil, fmt.Errorf("querying strategy index: %w", err)
	}
	defer rows.Close()

	var entries []map[string]any
	for rows.Next() {
		var (
			slug, category, timeWindow, depth string
			title, description                sql.NullString
			priority                           int
			active                             bool
			requiredVariablesRaw, fanOutRaw    []byte
		)
		if err := rows.Scan(&slug, &category, &timeWindow, &depth, &title, &description,
			&priority, &active, &requiredVariablesRaw, &fanOutRaw); err != nil {
			return nil, fmt.Errorf("scanning strategy index row: %w", err)
		}

		var requiredVariables any
		if len(requiredVariablesRaw) > 0 {
			if err := json.Unmarshal(requiredVariablesRaw, &requiredVariables); err != nil {
				return nil, fmt.Errorf("decoding required_variables for %q: %w", slug, err)
			}
		}
		var fanOut any
		if len(fanOutRaw) > 0 {
			if err := json.Unmarshal(fanOutRaw, &fanOut); err != nil {
				return nil, fmt.Errorf("decoding fan_out for %q: %w", slug, err)
			}
		} else {
			fanOut = "none"
		}

		entries = append(entries, map[string]any{
			"slug":                slug,
			"category":            category,
			"time_window":         timeWindow,
			"depth":               depth,
			"title":               title.String,
			"description":         description.String,
			"priority":            priority,
			"active":              active,
			"required_variables":  requiredVariables,
			"fan_out":             fanOut,
		})
	}
	return entries, rows.Err()
}

const selectGlobalSettingsSQL = `
SELECT settings_json FROM global_settings WHERE id = 1`

func (p *PostgresStore) LoadGlobalSettings(ctx context.Context) (map[string]any, error) {
	var raw []byte
	if err := p.db.QueryRowContext(ctx, selectGlobalSettingsSQL).Scan(&raw); err != nil {
		return nil, fmt.Errorf("querying global settings: %w", err)
	}
	var settings map[string]any
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("decoding global settings: %w", err)
	}
	return settings, nil
}
