package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/haven/ledger/migrations"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"

	versionDigits = 6
)

var (
	nameSeparators = regexp.MustCompile(`[\s_-]+`)
	nameJunk       = regexp.MustCompile(`[^a-z0-9_]`)
)

// MigrationFile is a freshly written up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Timestamp   string
	UpPath      string
	DownPath    string
}

func (mf *MigrationFile) header(rollback bool) string {
	var b strings.Builder
	if rollback {
		fmt.Fprintf(&b, "-- Migration: %s (rollback)\n", mf.Name)
	} else {
		fmt.Fprintf(&b, "-- Migration: %s\n", mf.Name)
		if mf.Description != "" {
			fmt.Fprintf(&b, "-- Description: %s\n", mf.Description)
		}
	}
	fmt.Fprintf(&b, "-- Created: %s\n\n", mf.Timestamp)
	return b.String()
}

// CreateMigration writes the next numbered pair into dir, creating dir if
// needed. Versions are zero-padded sequence numbers like the shipped
// migrations.
func CreateMigration(dir, name, description string) (*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, errors.New("migration name must contain letters or digits")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	existing, err := ListMigrations(dir)
	if err != nil {
		return nil, err
	}
	next, err := nextVersion(existing)
	if err != nil {
		return nil, err
	}

	version := fmt.Sprintf("%0*d", versionDigits, next)
	base := filepath.Join(dir, version+"_"+slug)
	mf := &MigrationFile{
		Version:     version,
		Name:        slug,
		Description: description,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		UpPath:      base + upSuffix,
		DownPath:    base + downSuffix,
	}

	if err := writeNew(mf.UpPath, mf.header(false)); err != nil {
		return nil, err
	}
	if err := writeNew(mf.DownPath, mf.header(true)); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

// writeNew refuses to overwrite an existing file
func writeNew(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(content)
	return errors.Join(werr, f.Close())
}

func nextVersion(names []string) (int, error) {
	latest := 0
	for _, name := range names {
		prefix, _, _ := strings.Cut(name, "_")
		n, err := strconv.Atoi(prefix)
		if err != nil {
			return 0, fmt.Errorf("migration %q has a non-numeric version", name)
		}
		latest = max(latest, n)
	}
	return latest + 1, nil
}

// sanitizeName lowercases name, joins words with single underscores and
// drops everything else.
func sanitizeName(name string) string {
	s := nameSeparators.ReplaceAllString(strings.ToLower(name), "_")
	s = nameSeparators.ReplaceAllString(nameJunk.ReplaceAllString(s, ""), "_")
	return strings.Trim(s, "_")
}

// ListMigrations returns the sorted names of the up migrations in dir. A
// missing dir has none.
func ListMigrations(dir string) ([]string, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	return listUp(os.DirFS(dir))
}

// ListEmbedded returns the migrations compiled into the binary
func ListEmbedded() ([]string, error) {
	return listUp(migrations.FS)
}

func listUp(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	names := []string{}
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), upSuffix); ok && !e.IsDir() {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}
