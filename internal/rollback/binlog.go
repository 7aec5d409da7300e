package rollback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	gomysql "github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/sirupsen/logrus"

	"github.com/nethalo/dbexec/internal/mysql"
)

// DefaultTimeout bounds how long Generate waits for the stream to reach the
// end position.
const DefaultTimeout = 30 * time.Second

// eventSource yields binlog events in order.
type eventSource interface {
	GetEvent(ctx context.Context) (*replication.BinlogEvent, error)
	Close()
}

type syncerSource struct {
	syncer   *replication.BinlogSyncer
	streamer *replication.BinlogStreamer
}

func (s *syncerSource) GetEvent(ctx context.Context) (*replication.BinlogEvent, error) {
	return s.streamer.GetEvent(ctx)
}

func (s *syncerSource) Close() { s.syncer.Close() }

// BinlogGenerator reads the statement's row events back from the server as
// a replica would and reverses them.
type BinlogGenerator struct {
	// ServerID identifies the pseudo-replica. Zero picks a random id that
	// differs from the server's own.
	ServerID uint32
	Timeout  time.Duration
	Log      logrus.FieldLogger

	open func(cfg replication.BinlogSyncerConfig, start gomysql.Position) (eventSource, error)
}

func openSyncer(cfg replication.BinlogSyncerConfig, start gomysql.Position) (eventSource, error) {
	syncer := replication.NewBinlogSyncer(cfg)
	streamer, err := syncer.StartSync(start)
	if err != nil {
		syncer.Close()
		return nil, err
	}
	return &syncerSource{syncer: syncer, streamer: streamer}, nil
}

// Generate streams events from req.Start up to req.End and returns the
// reverse statements, most recent change first.
func (g *BinlogGenerator) Generate(ctx context.Context, req Request) ([]string, error) {
	if req.End.Compare(req.Start) <= 0 {
		return nil, nil
	}

	log := g.Log
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg, err := g.syncerConfig(ctx, req, log)
	if err != nil {
		return nil, err
	}

	open := g.open
	if open == nil {
		open = openSyncer
	}

	log.WithFields(logrus.Fields{
		"start":     req.Start.String(),
		"end":       req.End.String(),
		"server_id": cfg.ServerID,
	}).Debug("reading binlog for rollback")

	src, err := open(cfg, gomysql.Position{Name: req.Start.File, Pos: req.Start.Pos})
	if err != nil {
		return nil, fmt.Errorf("starting binlog sync at %s: %w", req.Start, err)
	}
	defer src.Close()

	changes, err := collect(ctx, src, req, newColumnCache(req.Schema))
	if err != nil {
		return nil, err
	}

	stmts := make([]string, 0, len(changes))
	for i := len(changes) - 1; i >= 0; i-- {
		stmt, err := changes[i].reverse()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (g *BinlogGenerator) syncerConfig(ctx context.Context, req Request, log logrus.FieldLogger) (replication.BinlogSyncerConfig, error) {
	host := req.Conn.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := req.Conn.Port
	if port == 0 {
		port = 3306
	}

	serverID := g.ServerID
	if serverID == 0 {
		var own int64
		if req.Schema != nil {
			var err error
			own, err = mysql.GetVariableInt(ctx, req.Schema, "server_id")
			if err != nil {
				return replication.BinlogSyncerConfig{}, fmt.Errorf("reading server_id: %w", err)
			}
		}
		serverID = pickServerID(own)
	}

	flavor := req.Flavor
	if flavor == "" {
		flavor = gomysql.MySQLFlavor
	}

	return replication.BinlogSyncerConfig{
		ServerID: serverID,
		Flavor:   flavor,
		Host:     host,
		Port:     uint16(port),
		User:     req.Conn.User,
		Password: req.Conn.Password,
		Charset:  req.Conn.Charset,
		Logger:   log,

		// TIMESTAMP values are rendered as UTC strings; timestampLiteral
		// depends on it.
		TimestampStringLocation: time.UTC,
	}, nil
}

// pickServerID returns a random id in the upper range, away from the ids
// operators usually hand out, and never equal to own.
func pickServerID(own int64) uint32 {
	for {
		id := 1<<24 + rand.Uint32N(1<<30)
		if int64(id) != own {
			return id
		}
	}
}

// collect reads events until the stream passes req.End or the affected row
// count is reached.
func collect(ctx context.Context, src eventSource, req Request, cols *columnCache) ([]rowChange, error) {
	inScope := newScope(req.Conn.Database, req.Tables)
	file := req.Start.File
	var changes []rowChange

	for {
		ev, err := src.GetEvent(ctx)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("binlog stream did not reach %s: %w", req.End, err)
			}
			return nil, fmt.Errorf("reading binlog event: %w", err)
		}

		switch e := ev.Event.(type) {
		case *replication.RotateEvent:
			file = string(e.NextLogName)
			continue
		case *replication.RowsEvent:
			kind, ok := rowsKind(ev.Header.EventType)
			if !ok {
				break
			}
			schema, table := string(e.Table.Schema), string(e.Table.Table)
			if !inScope.includes(schema, table) {
				break
			}
			tc, err := cols.lookup(ctx, e.Table)
			if err != nil {
				return nil, err
			}
			for _, c := range splitRows(kind, tc, e.Rows) {
				changes = append(changes, c)
				if req.AffectedRows > 0 && int64(len(changes)) >= req.AffectedRows {
					return changes, nil
				}
			}
		}

		if ev.Header.LogPos == 0 {
			continue
		}
		at := mysql.Position{File: file, Pos: ev.Header.LogPos}
		if at.Compare(req.End) >= 0 {
			return changes, nil
		}
	}
}

func rowsKind(t replication.EventType) (changeKind, bool) {
	switch t {
	case replication.WRITE_ROWS_EVENTv0, replication.WRITE_ROWS_EVENTv1, replication.WRITE_ROWS_EVENTv2:
		return changeInsert, true
	case replication.UPDATE_ROWS_EVENTv0, replication.UPDATE_ROWS_EVENTv1, replication.UPDATE_ROWS_EVENTv2:
		return changeUpdate, true
	case replication.DELETE_ROWS_EVENTv0, replication.DELETE_ROWS_EVENTv1, replication.DELETE_ROWS_EVENTv2:
		return changeDelete, true
	}
	return 0, false
}

// splitRows pairs update images; update events alternate before, after.
func splitRows(kind changeKind, tc *mysql.TableColumns, rows [][]any) []rowChange {
	var out []rowChange
	switch kind {
	case changeInsert:
		for _, r := range rows {
			out = append(out, rowChange{kind: kind, table: tc, after: r})
		}
	case changeDelete:
		for _, r := range rows {
			out = append(out, rowChange{kind: kind, table: tc, before: r})
		}
	case changeUpdate:
		for i := 1; i < len(rows); i += 2 {
			out = append(out, rowChange{kind: kind, table: tc, before: rows[i-1], after: rows[i]})
		}
	}
	return out
}
