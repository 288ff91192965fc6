package syncengine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteHistoryProducesMatchingJSONAndSQLFiles(t *testing.T) {
	root := t.TempDir()
	plan := &Plan{Steps: []Step{
		{Kind: AddColumn, Table: "widgets", SQL: "ALTER TABLE widgets ADD COLUMN name VARCHAR(255)"},
		{Kind: DropColumn, Table: "widgets", SQL: "ALTER TABLE widgets DROP COLUMN legacy_flag", Note: "deprecated for 2 cycles"},
	}}

	jsonPath, sqlPath, err := writeHistory(root, plan)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "var", "migrations", "history"), filepath.Dir(jsonPath))

	jsonBytes, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var doc historyDocument
	require.NoError(t, json.Unmarshal(jsonBytes, &doc))

	assert.NotEmpty(t, doc.Timestamp)
	assert.Equal(t, 2, doc.OperationsCount)
	require.Len(t, doc.Operations, 2)
	assert.Equal(t, "add_column", doc.Operations[0].Type)
	assert.False(t, doc.Operations[0].Destructive)
	assert.Equal(t, "drop_column", doc.Operations[1].Type)
	assert.True(t, doc.Operations[1].Destructive)
	assert.Equal(t, "deprecated for 2 cycles", doc.Operations[1].Description)

	sqlBytes, err := os.ReadFile(sqlPath)
	require.NoError(t, err)
	sqlText := string(sqlBytes)
	assert.Contains(t, sqlText, "-- add_column: widgets")
	assert.Contains(t, sqlText, "widgets")
	assert.Contains(t, sqlText, "legacy_flag")
}

func TestWriteHistoryCreatesNestedDirectories(t *testing.T) {
	root := filepath.Join(t.TempDir(), "a", "b")
	_, _, err := writeHistory(root, &Plan{})
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, "var", "migrations", "history"))
}

func TestCanonicalizeStatementRestoresParsableDDL(t *testing.T) {
	p := parser.New()
	out := canonicalizeStatement(p, "alter table widgets add column name varchar(255)")
	assert.NotEmpty(t, out)
}

func TestCanonicalizeStatementFallsBackOnUnparsableInput(t *testing.T) {
	p := parser.New()
	raw := "THIS IS NOT VALID SQL AT ALL ;;;"
	out := canonicalizeStatement(p, raw)
	assert.Equal(t, raw, out)
}
