package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/NicolasHaas/chatd/pkg/model"
	"github.com/NicolasHaas/chatd/pkg/store"
)

func TestLoadConfigWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatd.yaml")

	cfg, resolved, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved path: want %s, got %s", path, resolved)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	// The written file loads back to the same values.
	again, _, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig reload: %v", err)
	}
	if diff := cmp.Diff(cfg, again); diff != "" {
		t.Fatalf("reloaded config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatd.yaml")
	data := "listen_addr: \":7000\"\nmax_clients: 5\nhandshake_timeout: 3s\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("CHATD_MAX_CLIENTS", "9")
	t.Setenv("CHATD_OWNER", "olga")

	cfg, _, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != ":7000" {
		t.Errorf("ListenAddr: want :7000, got %s", cfg.ListenAddr)
	}
	if cfg.MaxClients != 9 {
		t.Errorf("MaxClients: env should win, got %d", cfg.MaxClients)
	}
	if cfg.HandshakeTimeout != 3*time.Second {
		t.Errorf("HandshakeTimeout: want 3s, got %v", cfg.HandshakeTimeout)
	}
	if cfg.Owner != "olga" {
		t.Errorf("Owner: want olga, got %q", cfg.Owner)
	}
	if cfg.DBPath != DefaultConfig().DBPath {
		t.Errorf("DBPath: want default, got %s", cfg.DBPath)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty listen", func(c *Config) { c.ListenAddr = "" }, true},
		{"zero clients", func(c *Config) { c.MaxClients = 0 }, true},
		{"owner without password", func(c *Config) { c.Owner = "olga" }, true},
		{"owner with password", func(c *Config) { c.Owner, c.OwnerPassword = "olga", "pw" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate: err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExportUsersYAML(t *testing.T) {
	st := store.NewMemoryWithClock(func() time.Time {
		return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	})
	addUser(t, st, "olga", model.PrivilegeOwner)
	addUser(t, st, "bob", model.PrivilegeUser)
	if err := st.Ban("bob"); err != nil {
		t.Fatalf("Ban: %v", err)
	}

	data, err := ExportUsersYAML(st)
	if err != nil {
		t.Fatalf("ExportUsersYAML: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		"- username: bob\n",
		"rank: User\n",
		"banned: true\n",
		"- username: olga\n",
		"rank: Owner\n",
		"2024-01-02T03:04:05Z",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "argon2") || strings.Contains(out, "password") {
		t.Fatalf("export leaks credentials:\n%s", out)
	}
	if strings.Index(out, "bob") > strings.Index(out, "olga") {
		t.Fatalf("export not ordered by username:\n%s", out)
	}
}
