package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// runConfigInit runs config init against a fresh HOME with the given answers.
func runConfigInit(t *testing.T, home, input string) string {
	t.Helper()
	t.Setenv("HOME", home)

	output := &bytes.Buffer{}
	configInitCmd.SetIn(strings.NewReader(input))
	configInitCmd.SetOut(output)
	configInitCmd.SetErr(output)
	t.Cleanup(func() {
		configInitCmd.SetIn(nil)
		configInitCmd.SetOut(nil)
		configInitCmd.SetErr(nil)
	})

	if err := configInitCmd.RunE(configInitCmd, nil); err != nil {
		t.Fatalf("config init: %v", err)
	}
	return output.String()
}

func TestConfigInitCmd_NewConfig(t *testing.T) {
	home := t.TempDir()
	runConfigInit(t, home, "\n\n\n\n\n\n")

	configDir := filepath.Join(home, ".dbexec")
	configPath := filepath.Join(configDir, "config.yaml")
	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	for _, expected := range []string{
		"host: 127.0.0.1",
		"port: 3306",
		"user: dbexec",
		"format: text",
		"online_migration:",
		"tool: gh-ost",
		"socket_dir: /tmp",
		"watchdog:",
		"interval: 1s",
		"rollback:",
		"timeout: 30s",
		"log:",
	} {
		if !strings.Contains(string(content), expected) {
			t.Errorf("config should contain %q, content:\n%s", expected, content)
		}
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file permissions = %o, want 0600", perm)
	}

	dirInfo, err := os.Stat(configDir)
	if err != nil {
		t.Fatal(err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0700 {
		t.Errorf(".dbexec directory permissions = %o, want 0700", perm)
	}
}

func TestConfigInitCmd_WrittenConfigLoads(t *testing.T) {
	resetConfig(t)
	home := t.TempDir()
	runConfigInit(t, home, "db.internal\n3307\nmigrator\nshop\njson\n/opt/bin/gh-ost\n")

	cfgFile = filepath.Join(home, ".dbexec", "config.yaml")
	initConfig()

	if got := viper.GetString("host"); got != "db.internal" {
		t.Errorf("host = %q, want db.internal", got)
	}
	if got := viper.GetString("database"); got != "shop" {
		t.Errorf("database = %q, want shop", got)
	}
	if got := viper.GetString("format"); got != "json" {
		t.Errorf("format = %q, want json", got)
	}
	if got := viper.GetString("online_migration.tool"); got != "/opt/bin/gh-ost" {
		t.Errorf("online_migration.tool = %q", got)
	}
	if viper.IsSet("notify.kafka.brokers") {
		t.Error("kafka section should be commented out by default")
	}
}

func TestConfigInitCmd_AlreadyExists(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantContent string
		wantOutput  string
	}{
		{name: "abort", input: "n\n", wantContent: "existing: config", wantOutput: "Aborted"},
		{name: "overwrite", input: "y\nlocalhost\n3307\ntestuser\ntestdb\njson\n\n", wantContent: "port: 3307"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			configDir := filepath.Join(home, ".dbexec")
			if err := os.MkdirAll(configDir, 0700); err != nil {
				t.Fatal(err)
			}
			configPath := filepath.Join(configDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte("existing: config"), 0600); err != nil {
				t.Fatal(err)
			}

			out := runConfigInit(t, home, tt.input)

			content, _ := os.ReadFile(configPath)
			if !strings.Contains(string(content), tt.wantContent) {
				t.Errorf("config = %q, want it to contain %q", content, tt.wantContent)
			}
			if tt.wantOutput != "" && !strings.Contains(out, tt.wantOutput) {
				t.Errorf("output = %q, want it to contain %q", out, tt.wantOutput)
			}
		})
	}
}

func TestConfigInitCmd_Recommendations(t *testing.T) {
	out := runConfigInit(t, t.TempDir(), "\n\ncustomuser\n\n\n\n")

	for _, want := range []string{"CREATE USER 'customuser'", "REPLICATION SLAVE", "PROCESS"} {
		if !strings.Contains(out, want) {
			t.Errorf("recommendations should mention %q, got:\n%s", want, out)
		}
	}

	out = runConfigInit(t, t.TempDir(), "\n\nroot\n\n\n\n")
	if strings.Contains(out, "CREATE USER") {
		t.Error("no user recommendation expected for root")
	}
}

func TestConfigShowCmd_NoConfig(t *testing.T) {
	resetConfig(t)
	t.Setenv("HOME", t.TempDir())

	output := &bytes.Buffer{}
	configShowCmd.SetOut(output)
	defer configShowCmd.SetOut(nil)

	if err := configShowCmd.RunE(configShowCmd, nil); err != nil {
		t.Fatalf("config show should handle missing config: %v", err)
	}

	result := output.String()
	if !strings.Contains(result, "No config file found") {
		t.Errorf("should indicate no config found, got: %s", result)
	}
	if !strings.Contains(result, "dbexec config init") {
		t.Errorf("should suggest running 'dbexec config init', got: %s", result)
	}
}

func TestConfigShowCmd_WithConfig(t *testing.T) {
	resetConfig(t)
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(configPath, []byte("connections:\n  default:\n    host: testhost\n"), 0600); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatal(err)
	}

	output := &bytes.Buffer{}
	configShowCmd.SetOut(output)
	defer configShowCmd.SetOut(nil)

	if err := configShowCmd.RunE(configShowCmd, nil); err != nil {
		t.Fatalf("config show should succeed: %v", err)
	}

	result := output.String()
	if !strings.Contains(result, configPath) || !strings.Contains(result, "testhost") {
		t.Errorf("should show config path and content, got: %s", result)
	}
}

func TestConfigCmd_Structure(t *testing.T) {
	var foundInit, foundShow bool
	for _, c := range configCmd.Commands() {
		switch c.Use {
		case "init":
			foundInit = true
		case "show":
			foundShow = true
		}
	}
	if !foundInit || !foundShow {
		t.Errorf("config subcommands: init=%v show=%v, want both", foundInit, foundShow)
	}
}
