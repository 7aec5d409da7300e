package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx. Probes take it so
// they can run on the same pinned session as the statement they describe.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ServerVersion represents a parsed MySQL version.
type ServerVersion struct {
	Raw           string // e.g. "8.0.35-27-Percona XtraDB Cluster"
	Major         int
	Minor         int
	Patch         int    // 0 for Aurora
	Flavor        string // "mysql", "percona", "percona-xtradb-cluster", "aurora-mysql", "mariadb"
	AuroraVersion string // e.g., "3.04.0" (empty for non-Aurora)
}

var (
	auroraVersionRe = regexp.MustCompile(`^(\d+)\.(\d+)\.mysql_aurora\.(\d+\.\d+\.\d+)`)
	versionRe       = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)
)

// String returns a human-readable version string.
func (v ServerVersion) String() string {
	if v.AuroraVersion != "" {
		return fmt.Sprintf("%d.%d (aurora-mysql %s)", v.Major, v.Minor, v.AuroraVersion)
	}
	return fmt.Sprintf("%d.%d.%d (%s)", v.Major, v.Minor, v.Patch, v.Flavor)
}

// IsAurora returns true if this is an Aurora MySQL instance.
func (v ServerVersion) IsAurora() bool {
	return v.Flavor == "aurora-mysql"
}

// IsMariaDB returns true for MariaDB servers.
func (v ServerVersion) IsMariaDB() bool {
	return v.Flavor == "mariadb"
}

// AtLeast returns true if the server version is >= the given version.
func (v ServerVersion) AtLeast(major, minor, patch int) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}

// UsesBinaryLogStatus reports whether the server spells the coordinates
// query as SHOW BINARY LOG STATUS. MySQL 8.2 deprecated SHOW MASTER STATUS
// and 8.4 removed it.
func (v ServerVersion) UsesBinaryLogStatus() bool {
	if v.IsMariaDB() || v.IsAurora() {
		return false
	}
	return v.AtLeast(8, 2, 0)
}

// GetServerVersion queries and parses the MySQL server version.
func GetServerVersion(ctx context.Context, q Queryer) (ServerVersion, error) {
	var raw string
	if err := q.QueryRowContext(ctx, "SELECT VERSION()").Scan(&raw); err != nil {
		return ServerVersion{}, fmt.Errorf("querying version: %w", err)
	}
	return ParseVersion(raw)
}

// ParseVersion parses a MySQL version string.
func ParseVersion(raw string) (ServerVersion, error) {
	v := ServerVersion{Raw: raw}

	// Aurora versions carry no numeric patch, so they are matched first.
	if m := auroraVersionRe.FindStringSubmatch(raw); len(m) >= 4 {
		v.Major, _ = strconv.Atoi(m[1])
		v.Minor, _ = strconv.Atoi(m[2])
		v.Flavor = "aurora-mysql"
		v.AuroraVersion = m[3]
		return v, nil
	}

	matches := versionRe.FindStringSubmatch(raw)
	if len(matches) < 4 {
		return v, fmt.Errorf("could not parse version: %s", raw)
	}

	v.Major, _ = strconv.Atoi(matches[1])
	v.Minor, _ = strconv.Atoi(matches[2])
	v.Patch, _ = strconv.Atoi(matches[3])

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "percona xtradb cluster"):
		v.Flavor = "percona-xtradb-cluster"
	case strings.Contains(lower, "percona"):
		v.Flavor = "percona"
	case strings.Contains(lower, "mariadb"):
		v.Flavor = "mariadb"
	default:
		v.Flavor = "mysql"
	}

	return v, nil
}

func escapeLike(name string) string {
	escaped := strings.ReplaceAll(name, "_", "\\_")
	return strings.ReplaceAll(escaped, "%", "\\%")
}

// GetVariable reads a single server variable.
// Returns the value, or empty string if the variable doesn't exist.
// SHOW commands don't support placeholders with every driver, so the name
// is LIKE-escaped and inlined.
func GetVariable(ctx context.Context, q Queryer, name string) (string, error) {
	var varName, value sql.NullString
	escapedName := escapeLike(name)

	query := fmt.Sprintf("SHOW GLOBAL VARIABLES LIKE '%s'", escapedName)
	err := q.QueryRowContext(ctx, query).Scan(&varName, &value)
	if err == nil && value.Valid && value.String != "" {
		return value.String, nil
	}

	// Some variables are only visible at session scope.
	query = fmt.Sprintf("SHOW VARIABLES LIKE '%s'", escapedName)
	err = q.QueryRowContext(ctx, query).Scan(&varName, &value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("query failed: %w", err)
	}

	if !value.Valid {
		return "", nil
	}

	return value.String, nil
}

// GetVariableInt reads a server variable and returns it as int64.
func GetVariableInt(ctx context.Context, q Queryer, name string) (int64, error) {
	val, err := GetVariable(ctx, q, name)
	if err != nil || val == "" {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}
