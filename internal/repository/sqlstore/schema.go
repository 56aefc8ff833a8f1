package sqlstore

// Statement is one named DDL step.
type Statement struct {
	Name string
	SQL  string
}

// Schema returns the DDL creating the key-value table for the dialect.
// Every statement is idempotent.
func Schema(d Dialect) []Statement {
	switch d {
	case DialectPostgres:
		return []Statement{
			{
				Name: "create_table_kv_entries",
				SQL: `CREATE TABLE IF NOT EXISTS kv_entries (
  key        TEXT        PRIMARY KEY,
  value      TEXT        NOT NULL,
  version    BIGINT      NOT NULL DEFAULT 1 CHECK (version > 0),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
			},
			{
				Name: "create_index_kv_entries_key_pattern",
				SQL:  `CREATE INDEX IF NOT EXISTS idx_kv_entries_key_pattern ON kv_entries (key text_pattern_ops);`,
			},
		}
	default:
		return []Statement{
			{
				Name: "create_table_kv_entries",
				SQL: `CREATE TABLE IF NOT EXISTS kv_entries (
  key        TEXT    PRIMARY KEY,
  value      TEXT    NOT NULL,
  version    INTEGER NOT NULL DEFAULT 1 CHECK (version > 0),
  updated_at TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
			},
		}
	}
}

// TableExistsQuery returns a query yielding a single boolean-ish column that is
// true when the key-value table already exists.
func TableExistsQuery(d Dialect) string {
	switch d {
	case DialectPostgres:
		return "SELECT to_regclass('public.kv_entries') IS NOT NULL"
	default:
		return "SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = 'kv_entries'"
	}
}
