// cmd/root_test.go
package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestRootCmd_HasExpectedFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	tests := []struct {
		name      string
		shorthand string
	}{
		{"device", "d"},
		{"log-level", "l"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := flags.Lookup(tt.name)
			if flag == nil {
				t.Errorf("flag %q not found", tt.name)
				return
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("flag %q shorthand = %q, want %q", tt.name, flag.Shorthand, tt.shorthand)
			}
			if flag.Usage == "" {
				t.Errorf("flag %q has no description", tt.name)
			}
		})
	}
}

func TestRootCmd_Properties(t *testing.T) {
	if rootCmd.Use != "alarmdetect" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "alarmdetect")
	}
	if rootCmd.Short == "" {
		t.Error("rootCmd.Short is empty")
	}
	if rootCmd.Long == "" {
		t.Error("rootCmd.Long is empty")
	}
}

func TestRootCmd_FlagDefaults(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	tests := []struct {
		name         string
		defaultValue string
	}{
		{"device", "-1"},
		{"log-level", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := flags.Lookup(tt.name)
			if flag == nil {
				t.Fatalf("flag %q not found", tt.name)
			}
			if flag.DefValue != tt.defaultValue {
				t.Errorf("flag %q default = %q, want %q", tt.name, flag.DefValue, tt.defaultValue)
			}
		})
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	for _, name := range []string{"run", "devices"} {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootCmd_HelpOutput(t *testing.T) {
	viper.Reset()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"--help"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() with --help error = %v", err)
	}

	output := buf.String()
	if !bytes.Contains([]byte(output), []byte("alarmdetect")) {
		t.Error("help output should contain 'alarmdetect'")
	}
	if !bytes.Contains([]byte(output), []byte("--device")) {
		t.Error("help output should contain '--device'")
	}
}

func TestInitConfig(t *testing.T) {
	viper.Reset()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))
	configDir := filepath.Join(tmpDir, ".config", "alarmdetect")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("block_size: 8192"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	// Should not panic and should pick up the config file
	initConfig()

	if viper.GetInt("block_size") != 8192 {
		t.Errorf("viper.GetInt(block_size) = %d, want 8192", viper.GetInt("block_size"))
	}
}

func TestSecondsToDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0.5, "500ms"},
		{1.0, "1s"},
		{2.5, "2.5s"},
		{0.05, "50ms"},
	}

	for _, tt := range tests {
		if got := secondsToDuration(tt.seconds).String(); got != tt.want {
			t.Errorf("secondsToDuration(%v) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}
