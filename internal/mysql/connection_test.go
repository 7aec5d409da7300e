package mysql

import (
	"strings"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ConnectionConfig
		want string
	}{
		{
			name: "TCP connection with all fields",
			cfg: ConnectionConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "root",
				Password: "secret",
				Database: "mydb",
			},
			want: "root:secret@tcp(localhost:3306)/mydb?parseTime=true&interpolateParams=true&charset=utf8mb4",
		},
		{
			name: "TCP connection without database",
			cfg: ConnectionConfig{
				Host:     "192.168.1.100",
				Port:     3307,
				User:     "dbexec",
				Password: "pass123",
			},
			want: "dbexec:pass123@tcp(192.168.1.100:3307)/?parseTime=true&interpolateParams=true&charset=utf8mb4",
		},
		{
			name: "Unix socket connection",
			cfg: ConnectionConfig{
				Socket:   "/var/run/mysqld/mysqld.sock",
				User:     "app",
				Password: "apppass",
				Database: "production",
			},
			want: "app:apppass@unix(/var/run/mysqld/mysqld.sock)/production?parseTime=true&interpolateParams=true&charset=utf8mb4",
		},
		{
			name: "explicit charset",
			cfg: ConnectionConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "app",
				Database: "orders",
				Charset:  "latin1",
			},
			want: "app:@tcp(localhost:3306)/orders?parseTime=true&interpolateParams=true&charset=latin1",
		},
		{
			name: "dial timeout",
			cfg: ConnectionConfig{
				Host:    "localhost",
				Port:    3306,
				User:    "app",
				Timeout: 5 * time.Second,
			},
			want: "app:@tcp(localhost:3306)/?parseTime=true&interpolateParams=true&charset=utf8mb4&timeout=5s",
		},
		{
			name: "required TLS",
			cfg: ConnectionConfig{
				Host:    "db.internal",
				Port:    3306,
				User:    "app",
				TLSMode: "required",
			},
			want: "app:@tcp(db.internal:3306)/?parseTime=true&interpolateParams=true&charset=utf8mb4&tls=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.cfg)
			if err != nil {
				t.Fatalf("buildDSN() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("buildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildDSN_InvalidTLSMode(t *testing.T) {
	_, err := buildDSN(ConnectionConfig{Host: "localhost", Port: 3306, TLSMode: "sometimes"})
	if err == nil {
		t.Fatal("buildDSN() expected error for invalid TLS mode")
	}
	if !strings.Contains(err.Error(), "invalid TLS mode") {
		t.Errorf("error = %q, want it to mention the invalid TLS mode", err)
	}
}

func TestConnectionConfig_Address(t *testing.T) {
	tcp := ConnectionConfig{Host: "10.0.0.5", Port: 3307}
	if got := tcp.Address(); got != "10.0.0.5:3307" {
		t.Errorf("Address() = %q, want %q", got, "10.0.0.5:3307")
	}

	sock := ConnectionConfig{Host: "localhost", Port: 3306, Socket: "/tmp/mysql.sock"}
	if got := sock.Address(); got != "/tmp/mysql.sock" {
		t.Errorf("Address() = %q, want socket path", got)
	}
}
