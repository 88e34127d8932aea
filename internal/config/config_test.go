package config

import "testing"

func TestStripScheme(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://api.pointloyal.com", "api.pointloyal.com"},
		{"http://api.pointloyal.com:8080", "api.pointloyal.com"},
		{"https://api.pointloyal.com/v1", "api.pointloyal.com"},
		{"api.pointloyal.com", "api.pointloyal.com"},
	}
	for _, tc := range tests {
		if got := stripScheme(tc.in); got != tc.want {
			t.Errorf("stripScheme(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseOrigins(t *testing.T) {
	got := parseOrigins(" https://app.pointloyal.com, http://localhost:3000 ,")
	want := []string{"https://app.pointloyal.com", "http://localhost:3000"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("origin %d: got %q, want %q", i, got[i], want[i])
		}
	}

	if parseOrigins("") != nil {
		t.Error("empty input should return nil")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port == "" {
		t.Error("port should have a default")
	}
	if len(cfg.AllowedOrigins) == 0 {
		t.Error("allowed origins should have a default")
	}
	if cfg.IsProduction() {
		t.Error("default environment should not be production")
	}
	if cfg.AllowedHost != "" {
		t.Error("allowed host should be empty outside production")
	}
}
