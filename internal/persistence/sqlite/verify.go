package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrCorrupt is matched by the error Check returns when SQLite reports damage.
var ErrCorrupt = errors.New("sqlite: database is corrupt")

// CorruptionError carries the diagnostic rows of a failed check.
type CorruptionError struct {
	Path   string
	Issues []string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("sqlite: %s is corrupt: %s", e.Path, strings.Join(e.Issues, "; "))
}

func (e *CorruptionError) Unwrap() error { return ErrCorrupt }

// Check opens path read-only and runs quick_check, or integrity_check when full
// is set. A healthy database yields exactly one "ok" row.
func Check(ctx context.Context, path string, full bool) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(2000)", path))
	if err != nil {
		return fmt.Errorf("sqlite: open %s read-only: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	pragma := "PRAGMA quick_check"
	if full {
		pragma = "PRAGMA integrity_check"
	}
	rows, err := db.QueryContext(ctx, pragma)
	if err != nil {
		// A file that is not a database fails here rather than in the rows.
		if strings.Contains(err.Error(), "not a database") {
			return &CorruptionError{Path: path, Issues: []string{err.Error()}}
		}
		return fmt.Errorf("sqlite: %s: %w", pragma, err)
	}
	defer func() { _ = rows.Close() }()

	var issues []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("sqlite: scan check row: %w", err)
		}
		issues = append(issues, line)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: read check rows: %w", err)
	}

	switch {
	case len(issues) == 1 && strings.EqualFold(issues[0], "ok"):
		return nil
	case len(issues) == 0:
		return &CorruptionError{Path: path, Issues: []string{"check returned no rows"}}
	default:
		return &CorruptionError{Path: path, Issues: issues}
	}
}
