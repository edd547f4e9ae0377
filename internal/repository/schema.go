package repository

// Schema definitions for the downpay database.
// Compatible with both SQLite and PostgreSQL.

// schemaRuleTables stores each rule table version; rules are kept as JSON
// in table order.
const schemaRuleTables = `
CREATE TABLE IF NOT EXISTS rule_tables (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    rules TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_tables_tenant ON rule_tables(tenant_id);
CREATE INDEX IF NOT EXISTS idx_rule_tables_enabled ON rule_tables(tenant_id, enabled);
`

const schemaEvaluations = `
CREATE TABLE IF NOT EXISTS evaluations (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    quote_id TEXT NOT NULL,
    table_id TEXT NOT NULL,
    table_version TEXT NOT NULL,
    down_payment BIGINT NOT NULL,
    min_down_payment BIGINT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    quote TEXT,
    result TEXT NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluations_tenant ON evaluations(tenant_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_quote ON evaluations(tenant_id, quote_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_timestamp ON evaluations(tenant_id, timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaRuleTables,
		schemaEvaluations,
	}
}
