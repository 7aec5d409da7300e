//go:build integration

package test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/nethalo/dbexec/internal/environment"
	"github.com/nethalo/dbexec/internal/executor"
	"github.com/nethalo/dbexec/internal/mysql"
	"github.com/nethalo/dbexec/internal/notify"
	"github.com/nethalo/dbexec/internal/rollback"
)

/*
Integration tests for dbexec against a real MySQL instance.

The server needs log_bin=ON, binlog_format=ROW, gtid_mode=ON and a user
with REPLICATION SLAVE so rollback capture can be exercised.

To run these tests:
  go test -tags=integration ./test

Environment variables:
- DBEXEC_TEST_HOST (default 127.0.0.1)
- DBEXEC_TEST_PORT (default 13306)
- DBEXEC_TEST_USER (default dbexec)
- DBEXEC_TEST_PASSWORD (default test_password)
- DBEXEC_TEST_DATABASE (default testdb)
*/

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func testConfig() mysql.ConnectionConfig {
	port, _ := strconv.Atoi(getenv("DBEXEC_TEST_PORT", "13306"))
	return mysql.ConnectionConfig{
		Host:     getenv("DBEXEC_TEST_HOST", "127.0.0.1"),
		Port:     port,
		User:     getenv("DBEXEC_TEST_USER", "dbexec"),
		Password: getenv("DBEXEC_TEST_PASSWORD", "test_password"),
		Database: getenv("DBEXEC_TEST_DATABASE", "testdb"),
	}
}

func connectOrSkip(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := mysql.Connect(ctx, testConfig())
	if err != nil {
		t.Skip("MySQL not available:", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestTable(t *testing.T, db *sql.DB, table string) {
	t.Helper()
	stmts := []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", table),
		fmt.Sprintf(`CREATE TABLE %s (
			id INT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(255),
			age INT
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, table),
		fmt.Sprintf(`INSERT INTO %s (name, email, age) VALUES
			('Alice', 'alice@example.com', 30),
			('Bob', NULL, 25),
			('Charlie', 'charlie@example.com', 35)`, table),
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("setup %s: %v", table, err)
		}
	}
	t.Cleanup(func() { db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)) })
}

func newEngine() *executor.Engine {
	log, _ := test.NewNullLogger()
	return &executor.Engine{
		Notifier:  notify.Discard,
		Generator: &rollback.BinlogGenerator{Timeout: 20 * time.Second, Log: log},
		Log:       log,
	}
}

func TestIntegration_DMLRollbackRestoresRows(t *testing.T) {
	db := connectOrSkip(t)
	env, err := environment.Probe(context.Background(), db)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !env.Supported() {
		t.Skipf("rollback capture unsupported: %s", strings.Join(env.Deficiencies, "; "))
	}

	setupTestTable(t, db, "it_rollback")

	before := snapshot(t, db, "it_rollback")

	out, err := newEngine().Execute(context.Background(), executor.Statement{
		SQL:      "UPDATE it_rollback SET age = age + 1, email = 'x@example.com' WHERE age < 40",
		Conn:     testConfig(),
		ViewerID: "integration",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Status != executor.StatusSuccess || out.AffectedRows != 3 {
		t.Fatalf("outcome = %s/%d, log:\n%s", out.Status, out.AffectedRows, out.Log)
	}
	if len(out.Rollback) != 3 {
		t.Fatalf("rollback statements = %d, want 3:\n%s", len(out.Rollback), out.Log)
	}

	for _, stmt := range out.Rollback {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("applying %q: %v", stmt, err)
		}
	}

	if after := snapshot(t, db, "it_rollback"); after != before {
		t.Errorf("rows after rollback:\n%s\nwant:\n%s", after, before)
	}
}

func TestIntegration_DeleteAndInsertRoundTrip(t *testing.T) {
	db := connectOrSkip(t)
	env, err := environment.Probe(context.Background(), db)
	if err != nil || !env.Supported() {
		t.Skip("rollback capture unsupported")
	}

	setupTestTable(t, db, "it_delete")
	before := snapshot(t, db, "it_delete")

	out, err := newEngine().Execute(context.Background(), executor.Statement{
		SQL:  "-- cleanup\nDELETE FROM it_delete WHERE email IS NULL",
		Conn: testConfig(),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.AffectedRows != 1 || len(out.Rollback) != 1 {
		t.Fatalf("rows=%d rollback=%v", out.AffectedRows, out.Rollback)
	}
	if !strings.HasPrefix(out.Rollback[0], "INSERT INTO") {
		t.Errorf("rollback = %q, want INSERT", out.Rollback[0])
	}

	if _, err := db.Exec(out.Rollback[0]); err != nil {
		t.Fatalf("applying rollback: %v", err)
	}
	if after := snapshot(t, db, "it_delete"); after != before {
		t.Errorf("rows after rollback:\n%s\nwant:\n%s", after, before)
	}
}

func TestIntegration_DDLAndServerErrors(t *testing.T) {
	db := connectOrSkip(t)
	setupTestTable(t, db, "it_ddl")
	engine := newEngine()

	out, _ := engine.Execute(context.Background(), executor.Statement{
		SQL:  "ALTER TABLE it_ddl ADD COLUMN nickname VARCHAR(50)",
		Conn: testConfig(),
	})
	if out.Status != executor.StatusSuccess {
		t.Fatalf("ALTER failed:\n%s", out.Log)
	}
	if len(out.Rollback) != 0 {
		t.Errorf("DDL should not produce rollback, got %v", out.Rollback)
	}

	out, _ = engine.Execute(context.Background(), executor.Statement{
		SQL:  "ALTER TABLE it_ddl ADD COLUMN nickname VARCHAR(50)",
		Conn: testConfig(),
	})
	if out.Status != executor.StatusFail {
		t.Fatalf("duplicate column should fail, got %s", out.Status)
	}
	if !strings.Contains(out.Log, "Duplicate column name 'nickname'") {
		t.Errorf("log should carry the server error verbatim:\n%s", out.Log)
	}

	out, _ = engine.Execute(context.Background(), executor.Statement{
		SQL:  "SELECT * FROM it_ddl",
		Conn: testConfig(),
	})
	if out.Status != executor.StatusWarn {
		t.Errorf("SELECT should be refused with warn, got %s", out.Status)
	}
}

func snapshot(t *testing.T, db *sql.DB, table string) string {
	t.Helper()
	rows, err := db.Query(fmt.Sprintf("SELECT id, name, COALESCE(email, 'NULL'), age FROM %s ORDER BY id", table))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var (
			id, age     int
			name, email string
		)
		if err := rows.Scan(&id, &name, &email, &age); err != nil {
			t.Fatalf("scan: %v", err)
		}
		fmt.Fprintf(&b, "%d|%s|%s|%d\n", id, name, email, age)
	}
	return b.String()
}
