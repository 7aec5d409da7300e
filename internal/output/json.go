package output

import (
	"encoding/json"
	"io"

	"github.com/nethalo/dbexec/internal/environment"
	"github.com/nethalo/dbexec/internal/executor"
	"github.com/nethalo/dbexec/internal/mysql"
)

// JSONRenderer produces machine-readable JSON output.
type JSONRenderer struct {
	w io.Writer
}

type jsonOutcomeOutput struct {
	Statement string            `json:"statement,omitempty"`
	Outcome   *executor.Outcome `json:"outcome"`
}

type jsonConnection struct {
	Address        string   `json:"address"`
	Version        string   `json:"version"`
	ReadOnly       bool     `json:"read_only"`
	LogBin         bool     `json:"log_bin"`
	BinlogFormat   string   `json:"binlog_format"`
	GTIDMode       string   `json:"gtid_mode"`
	BinlogRowImage string   `json:"binlog_row_image"`
	Position       string   `json:"binlog_position,omitempty"`
	Supported      bool     `json:"rollback_capture_supported"`
	Deficiencies   []string `json:"deficiencies,omitempty"`
}

func (r *JSONRenderer) RenderOutcome(statement string, out *executor.Outcome) {
	r.encode(jsonOutcomeOutput{Statement: statement, Outcome: out})
}

func (r *JSONRenderer) RenderConnection(conn mysql.ConnectionConfig, env *environment.Report, pos *mysql.Position) {
	out := jsonConnection{
		Address:        conn.Address(),
		Version:        env.Version.String(),
		ReadOnly:       env.ReadOnly,
		LogBin:         env.LogBin,
		BinlogFormat:   env.Format,
		GTIDMode:       env.GTIDMode,
		BinlogRowImage: env.RowImage,
		Supported:      env.Supported(),
		Deficiencies:   env.Deficiencies,
	}
	if pos != nil {
		out.Position = pos.String()
	}
	r.encode(out)
}

func (r *JSONRenderer) encode(v any) {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
