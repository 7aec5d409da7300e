package environment

import (
	"context"
	"fmt"
	"strings"

	"github.com/nethalo/dbexec/internal/mysql"
)

// Report describes whether the server's binary log can reconstruct the
// prior values of rows a statement changes.
type Report struct {
	Version  mysql.ServerVersion
	LogBin   bool
	Format   string // binlog_format
	GTIDMode string
	RowImage string // binlog_row_image
	ReadOnly bool

	// Deficiencies lists every reason rollback capture is impossible, in a
	// fixed order. Empty means capture is supported.
	Deficiencies []string
}

// Supported reports whether rollback capture can run.
func (r *Report) Supported() bool {
	return len(r.Deficiencies) == 0
}

// Probe reads the replication settings relevant to rollback capture. It only
// issues reads and never changes server state.
func Probe(ctx context.Context, q mysql.Queryer) (*Report, error) {
	r := &Report{}

	version, err := mysql.GetServerVersion(ctx, q)
	if err != nil {
		return nil, err
	}
	r.Version = version

	logBin, err := mysql.GetVariable(ctx, q, "log_bin")
	if err != nil {
		return nil, fmt.Errorf("reading log_bin: %w", err)
	}
	r.LogBin = isOn(logBin)

	if r.Format, err = mysql.GetVariable(ctx, q, "binlog_format"); err != nil {
		return nil, fmt.Errorf("reading binlog_format: %w", err)
	}
	if version.IsMariaDB() {
		// MariaDB has no gtid_mode; every binlog it writes carries GTIDs.
		r.GTIDMode = "ON"
	} else if r.GTIDMode, err = mysql.GetVariable(ctx, q, "gtid_mode"); err != nil {
		return nil, fmt.Errorf("reading gtid_mode: %w", err)
	}
	if r.RowImage, err = mysql.GetVariable(ctx, q, "binlog_row_image"); err != nil {
		return nil, fmt.Errorf("reading binlog_row_image: %w", err)
	}

	ro, _ := mysql.GetVariable(ctx, q, "read_only")
	r.ReadOnly = isOn(ro)

	r.Deficiencies = deficiencies(r)
	return r, nil
}

func deficiencies(r *Report) []string {
	var out []string
	if !r.LogBin {
		out = append(out, "binary log is not enabled (log_bin=OFF)")
	}
	if !strings.EqualFold(r.Format, "ROW") {
		out = append(out, fmt.Sprintf("binlog_format is %s, ROW is required", orUnset(r.Format)))
	}
	if !strings.EqualFold(r.GTIDMode, "ON") {
		out = append(out, fmt.Sprintf("gtid_mode is %s, ON is required", orUnset(r.GTIDMode)))
	}
	// MINIMAL and NOBLOB images drop the column values an undo statement needs.
	if r.RowImage != "" && !strings.EqualFold(r.RowImage, "FULL") {
		out = append(out, fmt.Sprintf("binlog_row_image is %s, FULL is required", r.RowImage))
	}
	return out
}

func isOn(v string) bool {
	return strings.EqualFold(v, "ON") || v == "1"
}

func orUnset(v string) string {
	if v == "" {
		return "unset"
	}
	return v
}
