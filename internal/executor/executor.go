// Package executor runs one reviewed SQL statement against a server and
// reports a single outcome for it, capturing undo statements for DML when
// the binary log allows.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/nethalo/dbexec/internal/environment"
	"github.com/nethalo/dbexec/internal/migration"
	"github.com/nethalo/dbexec/internal/mysql"
	"github.com/nethalo/dbexec/internal/notify"
	"github.com/nethalo/dbexec/internal/parser"
	"github.com/nethalo/dbexec/internal/rollback"
	"github.com/nethalo/dbexec/internal/watchdog"
)

// ErrNoMigrator is reported when online migration is requested for an ALTER
// but no migration tool is configured.
var ErrNoMigrator = errors.New("online migration enabled but no migration tool configured")

// Statement is one execution request.
type Statement struct {
	SQL      string
	Conn     mysql.ConnectionConfig
	ViewerID string
}

// Connector opens a database handle for a connection config.
type Connector func(ctx context.Context, cfg mysql.ConnectionConfig) (*sql.DB, error)

// Migrator runs an ALTER through an online schema change tool.
type Migrator interface {
	Run(ctx context.Context, req migration.Request) *migration.Result
}

// Engine executes statements. The zero value connects with mysql.Connect,
// publishes nowhere and generates no rollback.
type Engine struct {
	Connect   Connector
	Notifier  notify.Notifier
	Generator rollback.Generator
	Migrator  Migrator

	// OnlineMigration routes ALTER TABLE through Migrator.
	OnlineMigration bool

	// Watchdog is the template for each statement's monitor. Open is
	// filled in per statement when unset.
	Watchdog watchdog.Watchdog

	Log logrus.FieldLogger
}

// Execute classifies and runs one statement. Every failure is reported in
// the outcome except an initial connect failure, which is also returned as
// a *ConnectionError.
func (e *Engine) Execute(ctx context.Context, st Statement) (*Outcome, error) {
	out := &Outcome{RunID: uuid.New()}
	log := e.logger().WithFields(logrus.Fields{
		"run_id": out.RunID.String(),
		"viewer": st.ViewerID,
	})

	stmt, err := parser.Classify(st.SQL)
	if err != nil {
		out.Status = StatusFail
		out.Log = fmt.Sprintf("status: execution failed\nerror: %v\n", err)
		log.WithError(err).Info("statement rejected")
		return out, nil
	}
	out.Category = stmt.Category
	log = log.WithField("category", string(stmt.Category))
	if stmt.Comment != "" {
		// Leading comments usually name the ticket or author of the change.
		log = log.WithField("provenance", stmt.Comment)
	}

	switch stmt.Category {
	case parser.Other:
		out.Status = StatusWarn
		out.Log = "status: warning\nerror: not a DML or DDL statement, refused\n"
		log.WithField("keyword", stmt.Keyword).Info("statement refused")
		return out, nil

	case parser.Use:
		// Each statement gets a fresh session, so switching schema here
		// would have no effect on anything that follows.
		out.Status = StatusSuccess
		out.Log = fmt.Sprintf("status: execution succeeded\nrows affected: 0\ntime taken: %s\n", formatRuntime(0))
		return out, nil

	case parser.DDL:
		if stmt.IsAlter() && e.OnlineMigration {
			if e.Migrator == nil {
				// Running it directly would take the blocking path the
				// caller opted out of.
				out.Status = StatusFail
				out.Log = "status: execution failed\nerror: " + ErrNoMigrator.Error() + "\n"
				log.Error(ErrNoMigrator)
				return out, nil
			}
			return e.migrate(ctx, st, stmt, out, log), nil
		}
		return e.executeDDL(ctx, st, stmt, out, log)
	}

	return e.executeDML(ctx, st, stmt, out, log)
}

func (e *Engine) migrate(ctx context.Context, st Statement, stmt *parser.Statement, out *Outcome, log logrus.FieldLogger) *Outcome {
	log.Info("running ALTER through online migration tool")
	res := e.Migrator.Run(ctx, migration.Request{
		Statement: stmt.Text,
		Conn:      st.Conn,
		ViewerID:  st.ViewerID,
	})

	out.Runtime = res.Runtime
	out.Log = res.Log
	if res.Err != nil {
		out.Status = StatusFail
		return out
	}
	out.Status = StatusSuccess
	out.Log += fmt.Sprintf("status: execution succeeded\nrows affected: 0\ntime taken: %s\n", formatRuntime(res.Runtime))
	return out
}

// session is the pinned connection one statement runs on.
type session struct {
	db       *sql.DB
	conn     *sql.Conn
	threadID uint64
}

func (s *session) close() error {
	return multierr.Combine(s.conn.Close(), s.db.Close())
}

func (e *Engine) open(ctx context.Context, cfg mysql.ConnectionConfig, log logrus.FieldLogger) (*session, error) {
	db, err := e.connector()(ctx, cfg)
	if err != nil {
		return nil, &ConnectionError{Address: cfg.Address(), Err: err}
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, &ConnectionError{Address: cfg.Address(), Err: err}
	}

	s := &session{db: db, conn: conn}
	if s.threadID, err = mysql.ConnectionID(ctx, conn); err != nil {
		// Only the watchdog needs the id.
		log.WithError(err).Warn("could not read connection id, lock monitoring disabled")
	}
	return s, nil
}

func (e *Engine) closeSession(s *session, log logrus.FieldLogger) {
	if err := s.close(); err != nil {
		log.WithError(err).Debug("closing session")
	}
}

// watch starts the lock monitor for the session. The returned stop func is
// always safe to call.
func (e *Engine) watch(ctx context.Context, st Statement, s *session, log logrus.FieldLogger) func() {
	if s.threadID == 0 {
		return func() {}
	}

	wd := e.Watchdog
	if wd.Open == nil {
		connect, cfg := e.connector(), st.Conn
		wd.Open = func(ctx context.Context) (*sql.DB, error) { return connect(ctx, cfg) }
	}
	if wd.Notifier == nil {
		wd.Notifier = e.Notifier
	}
	if wd.Log == nil {
		wd.Log = log
	}

	h := wd.Start(ctx, st.ViewerID, s.threadID)
	return func() {
		if !h.Stop() {
			log.Debug("watchdog did not exit within its grace period")
		}
	}
}

func (e *Engine) executeDDL(ctx context.Context, st Statement, stmt *parser.Statement, out *Outcome, log logrus.FieldLogger) (*Outcome, error) {
	s, err := e.open(ctx, st.Conn, log)
	if err != nil {
		return connectFailed(out, err, log), err
	}
	defer e.closeSession(s, log)

	stop := e.watch(ctx, st, s, log)
	res := runStatement(ctx, s.conn, stmt.Text)
	stop()

	return finish(out, res, log), nil
}

// executeDML brackets the statement with binlog positions read on its own
// session and turns the events between them into undo statements.
func (e *Engine) executeDML(ctx context.Context, st Statement, stmt *parser.Statement, out *Outcome, log logrus.FieldLogger) (*Outcome, error) {
	s, err := e.open(ctx, st.Conn, log)
	if err != nil {
		return connectFailed(out, err, log), err
	}
	defer e.closeSession(s, log)

	report, err := environment.Probe(ctx, s.conn)
	if err != nil {
		report = &environment.Report{
			Deficiencies: []string{fmt.Sprintf("could not probe replication environment: %v", err)},
		}
	}

	var before mysql.Position
	if report.Supported() {
		if before, err = mysql.ReadPosition(ctx, s.conn, report.Version); err != nil {
			report.Deficiencies = append(report.Deficiencies, fmt.Sprintf("could not read binlog position: %v", err))
		}
	}

	stop := e.watch(ctx, st, s, log)
	res := runStatement(ctx, s.conn, stmt.Text)
	stop()

	finish(out, res, log)
	if res.err != nil {
		return out, nil
	}

	var after mysql.Position
	if report.Supported() {
		if after, err = mysql.ReadPosition(ctx, s.conn, report.Version); err != nil {
			report.Deficiencies = append(report.Deficiencies, fmt.Sprintf("could not read binlog position: %v", err))
		}
	}

	if res.rows == 0 {
		return out, nil
	}

	if !report.Supported() {
		out.Log += "status: execution succeeded, rollback not captured\n" + strings.Join(report.Deficiencies, "\n") + "\n"
		log.WithField("deficiencies", report.Deficiencies).Warn("rollback not captured")
		return out, nil
	}

	if e.Generator == nil {
		return out, nil
	}

	flavor := ""
	if report.Version.IsMariaDB() {
		flavor = "mariadb"
	}
	stmts, err := e.Generator.Generate(ctx, rollback.Request{
		Conn:         st.Conn,
		Start:        before,
		End:          after,
		AffectedRows: res.rows,
		Flavor:       flavor,
		Tables:       parser.TargetTables(stmt.Text),
		Schema:       s.conn,
	})
	if err != nil {
		// The change is committed; failing the outcome would invite a re-run.
		out.Log += fmt.Sprintf("rollback generation failed: %v\n", err)
		log.WithError(err).Warn("rollback generation failed")
		return out, nil
	}

	out.Rollback = stmts
	log.WithFields(logrus.Fields{
		"start":      before.String(),
		"end":        after.String(),
		"statements": len(stmts),
	}).Info("rollback captured")
	return out, nil
}

func finish(out *Outcome, res result, log logrus.FieldLogger) *Outcome {
	out.Runtime = res.runtime
	out.Log = res.log()
	if res.err != nil {
		out.Status = StatusFail
		log.WithError(res.err).Warn("statement failed")
		return out
	}
	out.Status = StatusSuccess
	out.AffectedRows = res.rows
	log.WithFields(logrus.Fields{
		"rows":    res.rows,
		"runtime": formatRuntime(res.runtime),
	}).Info("statement executed")
	return out
}

func connectFailed(out *Outcome, err error, log logrus.FieldLogger) *Outcome {
	out.Status = StatusFail
	out.Log = fmt.Sprintf("status: execution failed\nerror: %v\n", err)
	log.WithError(err).Error("could not connect")
	return out
}

func (e *Engine) connector() Connector {
	if e.Connect != nil {
		return e.Connect
	}
	return mysql.Connect
}

func (e *Engine) logger() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}
