package integration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type importResult struct {
	Collections []struct {
		Name        string `json:"name"`
		File        string `json:"file"`
		RecordCount int    `json:"record_count"`
	} `json:"collections"`
	TotalRecords int `json:"total_records"`
}

type schemaEntry struct {
	Type        string `json:"type"`
	Count       int    `json:"count"`
	Values      []any  `json:"values"`
	Example     any    `json:"example"`
	Description string `json:"description"`
}

type collectionSchema struct {
	RecordCount  int                    `json:"record_count"`
	MetadataKeys map[string]schemaEntry `json:"metadata_keys"`
}

func writeArchive(env *TestEnv) string {
	env.WriteFile("src/conversations.jsonl",
		`{"mimetype": "text/plain", "content": "hi", "timestamp": "2024-01-01T10:00:00Z", "metadata": {"role": "user", "turn": 1}}`,
		`{"mimetype": "text/plain", "content": "hello", "timestamp": "2024-01-01T10:00:05Z", "metadata": {"role": "assistant", "turn": 2}}`,
		``,
		`not json`,
		`{"mimetype": "text/plain", "content": "bye", "url": "https://example.com", "metadata": {"role": "user", "turn": 3}}`,
	)
	env.WriteFile("src/bookmarks.jsonl",
		`{"uri": "https://go.dev", "metadata": {"tags": ["go", "lang"]}}`,
	)
	env.WriteFile("src/schema.yaml",
		"conversations:",
		"  metadata_keys:",
		"    role:",
		"      type: string",
		"      description: Who wrote the message",
	)
	return env.WriteFile("src/README.md",
		"---",
		"name: Personal archive",
		"description: Chats and bookmarks",
		"contents:",
		"  - path: conversations.jsonl",
		"    description: Chat logs",
		"  - path: bookmarks.jsonl",
		"---",
		"",
		"# Personal archive",
	)
}

func TestArchiveLifecycle(t *testing.T) {
	env := NewTestEnv(t)
	readme := writeArchive(env)

	res := ParseJSON[importResult](t, env.MustRunArkiv("import", readme).Stdout)
	assert.Equal(t, 4, res.TotalRecords)
	require.Len(t, res.Collections, 2)
	assert.Equal(t, "conversations", res.Collections[0].Name)
	assert.Equal(t, 3, res.Collections[0].RecordCount)

	_, err := os.Stat(env.Database)
	require.NoError(t, err, "import should use the configured database")

	t.Run("query", func(t *testing.T) {
		rows := ParseJSON[[]map[string]any](t, env.MustRunArkiv("query", env.Database,
			"SELECT content FROM records WHERE collection = 'conversations' AND json_extract(metadata, '$.role') = 'user' ORDER BY id").Stdout)
		assert.Equal(t, []map[string]any{{"content": "hi"}, {"content": "bye"}}, rows)
	})

	t.Run("unknown fields merge into metadata", func(t *testing.T) {
		rows := ParseJSON[[]map[string]any](t, env.MustRunArkiv("query", env.Database,
			"SELECT json_extract(metadata, '$.url') AS url FROM records WHERE content = 'bye'").Stdout)
		assert.Equal(t, []map[string]any{{"url": "https://example.com"}}, rows)
	})

	t.Run("schema", func(t *testing.T) {
		s := ParseJSON[map[string]collectionSchema](t, env.MustRunArkiv("schema", env.Database).Stdout)
		role := s["conversations"].MetadataKeys["role"]
		assert.Equal(t, "string", role.Type)
		assert.Equal(t, 3, role.Count)
		assert.Equal(t, "Who wrote the message", role.Description)
		assert.Equal(t, []any{"assistant", "user"}, role.Values)
		assert.Equal(t, "array", s["bookmarks"].MetadataKeys["tags"].Type)
	})

	t.Run("export and reimport", func(t *testing.T) {
		out := filepath.Join(env.TempDir, "exported")
		env.MustRunArkiv("export", env.Database, "--output", out)

		records := ReadJSONLFile[Record](t, filepath.Join(out, "conversations.jsonl"))
		require.Len(t, records, 3)
		assert.Equal(t, "hi", records[0].Content)
		assert.Equal(t, "2024-01-01T10:00:00Z", records[0].Timestamp)
		assert.Equal(t, float64(1), records[0].Metadata["turn"])

		schemaYAML, err := os.ReadFile(filepath.Join(out, "schema.yaml"))
		require.NoError(t, err)
		assert.Contains(t, string(schemaYAML), "Who wrote the message")

		readmeText, err := os.ReadFile(filepath.Join(out, "README.md"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(readmeText), "---\nname: Personal archive\n"))

		second := filepath.Join(env.TempDir, "second.db")
		again := ParseJSON[importResult](t, env.MustRunArkiv("import", out, "--db", second).Stdout)
		assert.Equal(t, 4, again.TotalRecords)

		s := ParseJSON[map[string]collectionSchema](t, env.MustRunArkiv("schema", second).Stdout)
		assert.Equal(t, "Who wrote the message", s["conversations"].MetadataKeys["role"].Description)
	})

	t.Run("info", func(t *testing.T) {
		info := ParseJSON[struct {
			TotalRecords int `json:"total_records"`
		}](t, env.MustRunArkiv("info", env.Database).Stdout)
		assert.Equal(t, 4, info.TotalRecords)
	})
}

func TestResyncReplacesCollection(t *testing.T) {
	env := NewTestEnv(t)
	path := env.WriteFile("notes.jsonl",
		`{"content": "a", "metadata": {"kind": "draft"}}`,
		`{"content": "b", "metadata": {"kind": "final"}}`,
	)
	env.MustRunArkiv("import", path)

	env.WriteFile("notes.jsonl", `{"content": "c"}`)
	env.MustRunArkiv("import", path)

	rows := ParseJSON[[]map[string]any](t, env.MustRunArkiv("query", env.Database,
		"SELECT content FROM records ORDER BY id").Stdout)
	assert.Equal(t, []map[string]any{{"content": "c"}}, rows)

	s := ParseJSON[map[string]collectionSchema](t, env.MustRunArkiv("schema", env.Database).Stdout)
	assert.Equal(t, 1, s["notes"].RecordCount)
	assert.Empty(t, s["notes"].MetadataKeys, "vanished attributes are removed")
}

func TestExitCodes(t *testing.T) {
	env := NewTestEnv(t)
	path := env.WriteFile("notes.jsonl", `{"content": "a"}`)
	env.MustRunArkiv("import", path)

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStderr string
	}{
		{"version", []string{"version"}, 0, ""},
		{"jsonl where a database is expected", []string{"query", path, "SELECT 1"}, 1, "arkiv import notes.jsonl"},
		{"mutating query", []string{"query", env.Database, "DROP TABLE records"}, 1, "only SELECT"},
		{"data-modifying WITH", []string{"query", env.Database, "WITH x AS (SELECT 1) DELETE FROM records"}, 1, "only SELECT"},
		{"missing database", []string{"info", filepath.Join(env.TempDir, "missing.db")}, 1, "database not found"},
		{"database passed to import", []string{"import", env.Database}, 1, "is a database file"},
		{"no arguments", []string{"export"}, 1, "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := env.RunArkiv(tt.args...)
			assert.Equal(t, tt.wantCode, result.ExitCode, "stderr: %s", result.Stderr)
			if tt.wantStderr != "" {
				assert.Contains(t, result.Stderr, tt.wantStderr)
			}
		})
	}

	rows := ParseJSON[[]map[string]any](t, env.MustRunArkiv("query", env.Database, "SELECT COUNT(*) AS n FROM records").Stdout)
	assert.Equal(t, float64(1), rows[0]["n"], "rejected statements must not modify the database")
}
