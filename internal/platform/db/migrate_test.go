package db

import (
	"regexp"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/mandi-erp/mandi/migrations"
)

func TestPendingMigrationsSkipsAppliedAndSorts(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_indexes.up.sql": {Data: []byte("CREATE INDEX a ON b (c);")},
		"0001_init.up.sql":    {Data: []byte("CREATE TABLE b (c INT);")},
		"0001_init.down.sql":  {Data: []byte("DROP TABLE b;")},
		"0003_extra.up.sql":   {Data: []byte("SELECT 1;")},
		"README.md":           {Data: []byte("notes")},
	}

	pending, err := PendingMigrations(fsys, map[string]bool{"0001_init": true})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "0002_indexes", pending[0].Version)
	require.Equal(t, "0003_extra", pending[1].Version)
	require.Contains(t, pending[0].SQL, "CREATE INDEX")
}

func TestEmbeddedSchemaDeclaresLedgerTables(t *testing.T) {
	pending, err := PendingMigrations(migrations.FS, nil)
	require.NoError(t, err)
	require.NotEmpty(t, pending)
	require.Equal(t, "0001_init", pending[0].Version)
	for _, table := range []string{"vehicle_inventory", "stock_movements", "invoice_items", "hamali_cash_payments", "idempotency_keys"} {
		require.Contains(t, pending[0].SQL, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}

func TestEmbeddedSchemaKeepsOptionalValuesNullable(t *testing.T) {
	pending, err := PendingMigrations(migrations.FS, nil)
	require.NoError(t, err)
	schema := pending[0].SQL

	for _, column := range []string{"hamali_rate_per_kg", "hamali_rate_per_bag", "starting_weight", "starting_bags"} {
		re := regexp.MustCompile(`(?m)^\s+` + column + ` [A-Z]+[^\n]*$`)
		decl := re.FindString(schema)
		require.NotEmpty(t, decl, column)
		require.NotContains(t, decl, "NOT NULL", column)
		require.NotContains(t, decl, "DEFAULT", column)
	}
	require.Contains(t, schema, "CHECK (hamali_rate_per_kg IS NULL OR hamali_rate_per_bag IS NULL)")
}

func TestEmbeddedSchemaStoresFullPrecision(t *testing.T) {
	pending, err := PendingMigrations(migrations.FS, nil)
	require.NoError(t, err)
	require.False(t, strings.Contains(pending[0].SQL, "NUMERIC("), "numeric columns must not fix a scale")
}
