package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 2

// Schema creates the results database.
//
// Times and durations are stored as integer nanoseconds so both SQLite
// drivers read back the same values. rule_ids holds the fired rule ids as
// ",3,17," for LIKE filtering; fired holds the full records as JSON.
// cache_key was added in version 2; see AddCacheKeyColumn.
const Schema = `
CREATE TABLE IF NOT EXISTS results (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    scene_id TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    cache_key TEXT NOT NULL DEFAULT '',

    fired TEXT NOT NULL,
    rule_ids TEXT NOT NULL,
    intentions TEXT NOT NULL,
    defaulted INTEGER NOT NULL,
    overridden INTEGER NOT NULL,

    error TEXT,

    evaluated_at INTEGER NOT NULL,
    duration INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_evaluated_at ON results(evaluated_at);
CREATE INDEX IF NOT EXISTS idx_results_fingerprint ON results(fingerprint);
CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
`

// HasCacheKeyColumn reports whether a version 1 table still lacks cache_key.
const HasCacheKeyColumn = `
SELECT COUNT(*) FROM pragma_table_info('results') WHERE name = 'cache_key';
`

// AddCacheKeyColumn upgrades a version 1 table. Existing rows keep an empty
// key and are never reused as cached results.
const AddCacheKeyColumn = `
ALTER TABLE results ADD COLUMN cache_key TEXT NOT NULL DEFAULT '';
`

// CacheKeyIndex backs Latest. It is created after the upgrade.
const CacheKeyIndex = `
CREATE INDEX IF NOT EXISTS idx_results_cache ON results(scene_id, cache_key);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const selectColumns = `id, run_id, scene_id, fingerprint, cache_key, fired, intentions,
	defaulted, overridden, error, evaluated_at, duration`
