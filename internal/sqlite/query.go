package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/queelius/arkiv/pkg/types"
)

// Query runs a read-only SQL statement and returns one map per row, keyed by
// column name. Only a single statement starting with SELECT or WITH is
// accepted; anything else fails with ErrMutatingQuery before it reaches the
// database. The statement runs on the read-only pool, so a data-modifying
// WITH is refused by SQLite itself.
func (b *Backend) Query(ctx context.Context, query string) ([]map[string]any, error) {
	if err := checkReadOnlyQuery(query); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkLocked(false); err != nil {
		return nil, err
	}

	rows, err := b.ro.QueryContext(ctx, query)
	if err != nil {
		return nil, queryError(err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// scanRows collects rows into maps. BLOB and TEXT values are returned as
// strings.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	results := []map[string]any{}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(err)
	}
	return results, nil
}

// queryError reports writes refused by query_only as ErrMutatingQuery.
func queryError(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_READONLY {
		return fmt.Errorf("%w: %v", types.ErrMutatingQuery, err)
	}
	return fmt.Errorf("query failed: %w", err)
}

// checkReadOnlyQuery accepts a single statement whose first keyword, after
// comments and whitespace, is SELECT or WITH.
func checkReadOnlyQuery(query string) error {
	switch strings.ToUpper(leadingKeyword(query)) {
	case "":
		return types.ErrEmptyQuery
	case "SELECT", "WITH":
	default:
		return types.ErrMutatingQuery
	}
	if end := statementEnd(query); end >= 0 {
		rest := query[end+1:]
		for {
			rest = skipTrivia(rest)
			if !strings.HasPrefix(rest, ";") {
				break
			}
			rest = rest[1:]
		}
		if rest != "" {
			return fmt.Errorf("%w: only one statement is allowed", types.ErrMutatingQuery)
		}
	}
	return nil
}

// leadingKeyword returns the first word of query, skipping -- and /* */
// comments.
func leadingKeyword(query string) string {
	s := skipTrivia(query)
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	switch end {
	case -1:
		return s
	case 0:
		// Not a word; return the offending character.
		_, size := utf8.DecodeRuneInString(s)
		return s[:size]
	}
	return s[:end]
}

// skipTrivia strips leading whitespace and comments. An unterminated comment
// consumes the rest of s.
func skipTrivia(s string) string {
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s[2:], "*/")
			if i < 0 {
				return ""
			}
			s = s[i+4:]
		default:
			return s
		}
	}
}

// statementEnd returns the index of the first semicolon of query that is not
// inside a string literal, quoted identifier or comment, or -1.
func statementEnd(query string) int {
	for i := 0; i < len(query); i++ {
		switch c := query[i]; c {
		case '\'', '"', '`', '[':
			closer := c
			if c == '[' {
				closer = ']'
			}
			j := strings.IndexByte(query[i+1:], closer)
			if j < 0 {
				return -1
			}
			i += j + 1
		case '-':
			if strings.HasPrefix(query[i:], "--") {
				j := strings.IndexByte(query[i:], '\n')
				if j < 0 {
					return -1
				}
				i += j
			}
		case '/':
			if strings.HasPrefix(query[i:], "/*") {
				j := strings.Index(query[i+2:], "*/")
				if j < 0 {
					return -1
				}
				i += j + 3
			}
		case ';':
			return i
		}
	}
	return -1
}
