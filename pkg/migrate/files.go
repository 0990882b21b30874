package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var (
	migrationNameRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	unsafeNameRe    = regexp.MustCompile(`[^a-z0-9_]+`)
)

type migrationFile struct {
	Version string
	Name    string
	Path    string
}

// listSQL returns the goose files in dir sorted by version. Any other *.sql
// file name is an error so a typo never silently skips a schema change.
func listSQL(dir string) ([]migrationFile, error) {
	if dir == "" {
		return nil, fmt.Errorf("migrations dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %q: %w", dir, err)
	}

	var files []migrationFile
	byVersion := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := migrationNameRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("migration %q: want YYYYMMDDHHMMSS_name.sql", name)
		}
		if other, dup := byVersion[m[1]]; dup {
			return nil, fmt.Errorf("migrations %q and %q share version %s", other, name, m[1])
		}
		byVersion[m[1]] = name
		files = append(files, migrationFile{Version: m[1], Name: m[2], Path: filepath.Join(dir, name)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// ValidateDir checks file naming, unique versions and goose Up/Down markers.
func ValidateDir(dir string) error {
	files, err := listSQL(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		body, err := os.ReadFile(f.Path)
		if err != nil {
			return fmt.Errorf("read migration %q: %w", f.Path, err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), marker) {
				return fmt.Errorf("migration %s_%s: missing %q", f.Version, f.Name, marker)
			}
		}
	}
	return nil
}

// CreateSQLMigration writes an empty goose migration named after name. The new
// version is always later than the newest existing one, even when the clock
// lags a hand-written file.
func CreateSQLMigration(dir, name string) (string, error) {
	safe := strings.Trim(unsafeNameRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_"), "_")
	if safe == "" {
		return "", fmt.Errorf("migration name %q is empty after sanitising", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migrations dir %q: %w", dir, err)
	}
	existing, err := listSQL(dir)
	if err != nil {
		return "", err
	}

	next := time.Now().UTC().Truncate(time.Second)
	if n := len(existing); n > 0 {
		latest, err := time.Parse(versionLayout, existing[n-1].Version)
		if err == nil && !next.After(latest) {
			next = latest.Add(time.Second)
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", next.Format(versionLayout), safe))
	body := fmt.Sprintf("-- +goose Up\n-- +goose StatementBegin\n-- %[1]s\n-- +goose StatementEnd\n\n-- +goose Down\n-- +goose StatementBegin\n-- rollback %[1]s\n-- +goose StatementEnd\n", safe)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}
