// Package migration runs ALTER statements through gh-ost, streaming its
// output to the viewer while it copies the table.
package migration

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/nethalo/dbexec/internal/mysql"
	"github.com/nethalo/dbexec/internal/notify"
	"github.com/nethalo/dbexec/internal/parser"
)

const (
	DefaultTool      = "gh-ost"
	DefaultSocketDir = "/tmp"

	maxLineSize = 1024 * 1024
)

// ErrLocked means another run already holds the (database, table) pair.
var ErrLocked = errors.New("another migration is running for this table")

// ErrNoDatabase means neither the connection nor the statement names a schema.
var ErrNoDatabase = errors.New("no database selected for migration")

// ToolError is a migration tool run that did not exit cleanly.
type ToolError struct {
	ExitCode int    // -1 when killed by a signal
	Detail   string // e.g. "exit status 1", "signal: killed"
}

func (e *ToolError) Error() string {
	return "migration tool failed: " + e.Detail
}

// Adapter invokes the migration tool.
type Adapter struct {
	Tool      string   // executable name or path
	Args      []string // extra arguments placed before the generated flags
	SocketDir string
	Notifier  notify.Notifier
	Log       logrus.FieldLogger
}

// Request is one ALTER to run.
type Request struct {
	Statement string // comment-stripped ALTER text
	Conn      mysql.ConnectionConfig
	ViewerID  string
}

// Result is the outcome of a run. Err is nil exactly when the tool exited 0.
type Result struct {
	Log     string
	Runtime time.Duration
	Err     error
}

// Invocation is the command line for one run.
type Invocation struct {
	Path   string
	Args   []string
	Socket string
}

// Redacted renders the command line with the password masked.
func (inv *Invocation) Redacted() string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, inv.Path)
	for _, a := range inv.Args {
		if strings.HasPrefix(a, "--password=") {
			a = "--password=***"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Build turns an ALTER into a tool invocation. The connection's database
// wins over a schema qualifier in the statement.
func (a *Adapter) Build(req Request) (*Invocation, error) {
	spec, err := parser.ParseAlterForMigration(req.Statement)
	if err != nil {
		return nil, err
	}

	database := req.Conn.Database
	if database == "" {
		database = spec.Database
	}
	if database == "" {
		return nil, ErrNoDatabase
	}

	socket := filepath.Join(a.socketDir(), fmt.Sprintf("gh-ost.%s.%s.sock", database, spec.Table))

	args := append([]string{}, a.Args...)
	args = append(args,
		"--user="+req.Conn.User,
		"--password="+req.Conn.Password,
		"--host="+req.Conn.Host,
		fmt.Sprintf("--port=%d", req.Conn.Port),
		"--assume-master-host="+req.Conn.Host,
		"--database="+database,
		"--table="+spec.Table,
		"--alter="+spec.Clause,
		"--serve-socket-file="+socket,
		"--execute",
	)

	return &Invocation{Path: a.tool(), Args: args, Socket: socket}, nil
}

// Run executes the ALTER through the tool and blocks until it exits. Every
// output line is published as a progress message and kept in the log.
func (a *Adapter) Run(ctx context.Context, req Request) *Result {
	start := time.Now()
	log := a.logger().WithField("viewer", req.ViewerID)

	inv, err := a.Build(req)
	if err != nil {
		msg := fmt.Sprintf("could not parse ALTER for migration tool: %s", req.Statement)
		if errors.Is(err, ErrNoDatabase) {
			msg = err.Error()
		}
		a.publish(ctx, req.ViewerID, msg, log)
		return &Result{Log: msg + "\n", Runtime: time.Since(start), Err: err}
	}

	lock := flock.New(inv.Socket + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return &Result{Log: fmt.Sprintf("locking %s: %v\n", lock.Path(), err), Runtime: time.Since(start), Err: err}
	}
	if !locked {
		return &Result{Log: ErrLocked.Error() + "\n", Runtime: time.Since(start), Err: ErrLocked}
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.WithError(err).Debug("releasing migration lock")
		}
	}()

	// A socket left by a crashed run stops the tool from binding. Holding
	// the lock means no live run owns it.
	if err := os.Remove(inv.Socket); err == nil {
		log.WithField("socket", inv.Socket).Info("removed stale migration socket")
	} else if !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("could not remove stale migration socket")
	}

	log.WithField("command", inv.Redacted()).Info("starting migration tool")

	out, err := a.stream(ctx, inv, req.ViewerID, log)
	res := &Result{Log: out, Runtime: time.Since(start), Err: err}
	if err != nil {
		res.Log += fmt.Sprintf("status: execution failed\nerror: %v\n", err)
	}
	return res
}

func (a *Adapter) stream(ctx context.Context, inv *Invocation, viewerID string, log logrus.FieldLogger) (string, error) {
	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.WaitDelay = 5 * time.Second

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return "", fmt.Errorf("starting %s: %w", inv.Path, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitErr <- err
	}()

	var out strings.Builder
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		out.WriteString(line)
		out.WriteByte('\n')
		a.publish(ctx, viewerID, line, log)
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Warn("reading migration tool output")
		// Keep draining so the tool never blocks on a full pipe.
		io.Copy(io.Discard, pr)
	}

	if err := <-waitErr; err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out.String(), &ToolError{ExitCode: exitErr.ExitCode(), Detail: exitErr.Error()}
		}
		return out.String(), &ToolError{ExitCode: -1, Detail: err.Error()}
	}
	return out.String(), nil
}

func (a *Adapter) publish(ctx context.Context, viewerID, line string, log logrus.FieldLogger) {
	if a.Notifier == nil {
		return
	}
	msg := notify.Message{Status: notify.StatusProgress, Data: line}
	if err := a.Notifier.Publish(ctx, viewerID, msg); err != nil {
		log.WithError(err).Debug("publishing migration progress")
	}
}

func (a *Adapter) tool() string {
	if a.Tool != "" {
		return a.Tool
	}
	return DefaultTool
}

func (a *Adapter) socketDir() string {
	if a.SocketDir != "" {
		return a.SocketDir
	}
	return DefaultSocketDir
}

func (a *Adapter) logger() logrus.FieldLogger {
	if a.Log != nil {
		return a.Log
	}
	return logrus.StandardLogger()
}
