package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queelius/arkiv/pkg/types"
)

// cliResult holds the outcome of one CLI invocation.
type cliResult struct {
	code   int
	stdout string
	stderr string
}

// runCLI runs arkiv with an isolated config directory.
func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--config-dir", filepath.Join(t.TempDir(), "config")}, args...)
	code := run(context.Background(), args, &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func conversations(t *testing.T, dir string) string {
	t.Helper()
	return writeFile(t, dir, "conversations.jsonl",
		`{"mimetype": "text/plain", "content": "hi", "metadata": {"role": "user"}}`,
		`{"mimetype": "text/plain", "content": "hello", "metadata": {"role": "assistant"}}`,
		`{"mimetype": "text/plain", "content": "bye", "metadata": {"role": "user"}}`,
	)
}

func TestVersion(t *testing.T) {
	res := runCLI(t, "version")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "arkiv v")
	assert.Contains(t, res.stdout, modulePath)
}

func TestImportAndQuery(t *testing.T) {
	dir := t.TempDir()
	input := conversations(t, dir)
	db := filepath.Join(dir, "archive.db")

	res := runCLI(t, "import", input, "--db", db)
	require.Equal(t, exitSuccess, res.code, res.stderr)
	var imported struct {
		Collections []struct {
			Name        string `json:"name"`
			RecordCount int    `json:"record_count"`
		} `json:"collections"`
		TotalRecords int `json:"total_records"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &imported))
	assert.Equal(t, 3, imported.TotalRecords)
	require.Len(t, imported.Collections, 1)
	assert.Equal(t, "conversations", imported.Collections[0].Name)

	res = runCLI(t, "query", db,
		"SELECT json_extract(metadata, '$.role') AS role, COUNT(*) AS n FROM records GROUP BY role ORDER BY role")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &rows))
	assert.Equal(t, []map[string]any{
		{"role": "assistant", "n": float64(1)},
		{"role": "user", "n": float64(2)},
	}, rows)
}

func TestImportCollectionAndSchemaFlags(t *testing.T) {
	dir := t.TempDir()
	input := conversations(t, dir)
	schemaPath := writeFile(t, t.TempDir(), "curated.yaml",
		"chats:",
		"  metadata_keys:",
		"    role:",
		"      type: string",
		"      description: Who spoke",
	)
	db := filepath.Join(dir, "archive.db")

	res := runCLI(t, "import", input, "--db", db, "--collection", "chats", "--schema", schemaPath)
	require.Equal(t, exitSuccess, res.code, res.stderr)

	res = runCLI(t, "schema", db, "--collection", "chats")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	var s types.NamedSchema
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &s))
	assert.Equal(t, "chats", s.Collection)
	assert.Equal(t, "Who spoke", s.MetadataKeys["role"].Description)
	assert.Equal(t, 3, s.MetadataKeys["role"].Count)
}

func TestSchemaAndInfoOfJSONL(t *testing.T) {
	input := conversations(t, t.TempDir())

	res := runCLI(t, "schema", input)
	require.Equal(t, exitSuccess, res.code, res.stderr)
	var keys map[string]types.SchemaEntry
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &keys))
	assert.Equal(t, types.TypeString, keys["role"].Type)
	assert.Equal(t, []any{"assistant", "user"}, keys["role"].Values)

	res = runCLI(t, "info", input)
	require.Equal(t, exitSuccess, res.code, res.stderr)
	var info types.Info
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))
	assert.Equal(t, 3, info.TotalRecords)
	assert.Equal(t, 3, info.Collections["conversations"].RecordCount)
	assert.Contains(t, info.Collections["conversations"].MetadataKeys, "role")
}

func TestInfoOfDatabase(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "archive.db")
	require.Equal(t, exitSuccess, runCLI(t, "import", conversations(t, dir), "--db", db).code)

	res := runCLI(t, "info", db)
	require.Equal(t, exitSuccess, res.code, res.stderr)
	var info types.Info
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))
	assert.Equal(t, 3, info.TotalRecords)
}

func TestImportReadmeDirectoryAndExport(t *testing.T) {
	src := t.TempDir()
	conversations(t, src)
	writeFile(t, src, "README.md",
		"---",
		"name: My archive",
		"contents:",
		"  - path: conversations.jsonl",
		"    description: Chat logs",
		"---",
		"",
		"Personal chats.",
	)
	db := filepath.Join(t.TempDir(), "archive.db")

	res := runCLI(t, "import", src, "--db", db)
	require.Equal(t, exitSuccess, res.code, res.stderr)

	out := filepath.Join(t.TempDir(), "out")
	res = runCLI(t, "export", db, "--output", out)
	require.Equal(t, exitSuccess, res.code, res.stderr)

	for _, name := range []string{"conversations.jsonl", "README.md", "schema.yaml"} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}
	readme, err := os.ReadFile(filepath.Join(out, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), "name: My archive")
	assert.Contains(t, string(readme), "Chat logs")
	assert.Contains(t, string(readme), "Personal chats.")
}

func TestUserErrors(t *testing.T) {
	dir := t.TempDir()
	input := conversations(t, dir)
	db := filepath.Join(dir, "archive.db")
	require.Equal(t, exitSuccess, runCLI(t, "import", input, "--db", db).code)
	notDB := writeFile(t, dir, "garbage.db", strings.Repeat("not a database ", 20))

	tests := []struct {
		name       string
		args       []string
		wantStderr string
	}{
		{"jsonl passed to query", []string{"query", input, "SELECT 1"}, "arkiv import conversations.jsonl"},
		{"jsonl passed to export", []string{"export", input}, "not a SQLite database"},
		{"database passed to import", []string{"import", db}, "is a database file"},
		{"mutating query", []string{"query", db, "DELETE FROM records"}, "only SELECT"},
		{"empty query", []string{"query", db, "  "}, "must not be empty"},
		{"missing database", []string{"query", filepath.Join(dir, "missing.db"), "SELECT 1"}, "database not found"},
		{"file that is not a database", []string{"info", notDB}, "not a SQLite database"},
		{"unknown collection", []string{"schema", db, "--collection", "nope"}, "collection not found"},
		{"missing input", []string{"import", filepath.Join(dir, "missing.jsonl"), "--db", db}, "missing.jsonl"},
		{"directory without readme", []string{"import", t.TempDir(), "--db", db}, "has no README.md"},
		{"unknown command", []string{"frobnicate"}, "unknown command"},
		{"wrong arg count", []string{"query", db}, "accepts 2 arg"},
		{"unknown flag", []string{"query", "--nope", db, "SELECT 1"}, "unknown flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, tt.args...)
			assert.Equal(t, exitUserError, res.code, res.stderr)
			assert.Contains(t, res.stderr, tt.wantStderr)
		})
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "links.jsonl",
		`{"url": "https://example.com", "content": "a"}`,
		`{"uri": "https://example.org", "content": "b"}`,
	)

	res := runCLI(t, "detect", path)
	require.Equal(t, exitSuccess, res.code, res.stderr)
	var report struct {
		Valid         bool     `json:"valid"`
		UnknownFields []string `json:"unknown_fields"`
		Warnings      []string `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	assert.True(t, report.Valid)
	assert.Equal(t, []string{"url"}, report.UnknownFields)
	assert.NotEmpty(t, report.Warnings)

	res = runCLI(t, "detect", "--strict", path)
	assert.Equal(t, exitUserError, res.code)
	assert.Empty(t, res.stderr, "strict failure prints only the report")
	assert.Contains(t, res.stdout, `"valid": true`)

	res = runCLI(t, "detect", "--fix", path)
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"fixed": 1`)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"uri":"https://example.com"`)
}

func TestConfigFile(t *testing.T) {
	t.Run("default config is written", func(t *testing.T) {
		configDir := filepath.Join(t.TempDir(), "config")
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"--config-dir", configDir, "info", conversations(t, t.TempDir())}, &stdout, &stderr)
		require.Equal(t, exitSuccess, code, stderr.String())

		data, err := os.ReadFile(filepath.Join(configDir, configFileExt))
		require.NoError(t, err)
		assert.Contains(t, string(data), "max_enum_values: 20")
	})

	t.Run("database from config", func(t *testing.T) {
		configDir := t.TempDir()
		dir := t.TempDir()
		db := filepath.Join(dir, "configured.db")
		require.NoError(t, os.WriteFile(filepath.Join(configDir, configFileExt),
			[]byte(fmt.Sprintf("database: %s\n", db)), 0o644))

		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"--config-dir", configDir, "import", conversations(t, dir)}, &stdout, &stderr)
		require.Equal(t, exitSuccess, code, stderr.String())
		_, err := os.Stat(db)
		assert.NoError(t, err)
	})

	t.Run("invalid log level", func(t *testing.T) {
		configDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(configDir, configFileExt), []byte("log_level: loud\n"), 0o644))

		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"--config-dir", configDir, "info", conversations(t, t.TempDir())}, &stdout, &stderr)
		assert.Equal(t, exitUserError, code)
		assert.Contains(t, stderr.String(), "log_level")
	})

	t.Run("enum threshold from config", func(t *testing.T) {
		configDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(configDir, configFileExt), []byte("max_enum_values: 1\n"), 0o644))

		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"--config-dir", configDir, "schema", conversations(t, t.TempDir())}, &stdout, &stderr)
		require.Equal(t, exitSuccess, code, stderr.String())
		var keys map[string]types.SchemaEntry
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &keys))
		assert.Empty(t, keys["role"].Values)
		assert.Equal(t, "user", keys["role"].Example)
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"explicit user error", userError(errors.New("bad")), exitUserError},
		{"explicit system error", sysError(types.ErrNotDatabase), exitSysError},
		{"wrapped sentinel", fmt.Errorf("query: %w", types.ErrMutatingQuery), exitUserError},
		{"missing file", fmt.Errorf("open: %w", os.ErrNotExist), exitUserError},
		{"unknown failure", errors.New("disk on fire"), exitSysError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
