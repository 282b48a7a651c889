package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validDoc = `
apiVersion: console/v1
executor:
  baseUrl: https://ops-exec.internal:8443
  timeoutSeconds: 30
polling:
  detailIntervalSeconds: 3
  listIntervalSeconds: 10
display:
  rules:
    - when: 'severity == "critical"'
      emphasis: danger
`

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remex.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(strings.NewReader(validDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Executor.BaseURL != "https://ops-exec.internal:8443" {
		t.Errorf("BaseURL = %q", cfg.Executor.BaseURL)
	}
	if cfg.DetailInterval() != 3*time.Second || cfg.ListInterval() != 10*time.Second {
		t.Errorf("intervals = %v / %v", cfg.DetailInterval(), cfg.ListInterval())
	}
	// Unset fields take defaults.
	if cfg.ApprovalsInterval() != 5*time.Second {
		t.Errorf("ApprovalsInterval = %v", cfg.ApprovalsInterval())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(strings.NewReader(`
apiVersion: console/v1
executor:
  baseUrl: http://localhost:8080
  timeout: 30
`))
	if err == nil {
		t.Fatal("unknown key 'timeout' accepted")
	}
}

func TestValidateFileValid(t *testing.T) {
	cfg, errs := ValidateFile(writeConfig(t, validDoc))
	if len(errs) != 0 {
		t.Fatalf("errors: %v", errs)
	}
	if cfg == nil {
		t.Fatal("nil config")
	}
}

func TestValidateFileSemanticErrors(t *testing.T) {
	_, errs := ValidateFile(writeConfig(t, `
apiVersion: console/v1
executor:
  baseUrl: http://localhost:8080
display:
  rules:
    - when: 'severity == "high"'
      emphasis: blinking
`))
	if len(errs) == 0 {
		t.Fatal("invalid emphasis enum accepted")
	}
	found := false
	for _, e := range errs {
		if e.Phase == "semantic" {
			found = true
		}
	}
	if !found {
		t.Errorf("no semantic-phase error in %v", errs)
	}
}

func TestValidateDomain(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*Config)
		wantPath string
		severity string
	}{
		{
			name:     "bad apiVersion",
			mutate:   func(c *Config) { c.APIVersion = "console/v9" },
			wantPath: "apiVersion",
			severity: "error",
		},
		{
			name:     "missing base URL",
			mutate:   func(c *Config) { c.Executor.BaseURL = "" },
			wantPath: "executor.baseUrl",
			severity: "error",
		},
		{
			name:     "non-http scheme",
			mutate:   func(c *Config) { c.Executor.BaseURL = "ftp://exec" },
			wantPath: "executor.baseUrl",
			severity: "error",
		},
		{
			name:     "slow detail poll is a warning",
			mutate:   func(c *Config) { c.Polling.DetailIntervalSeconds = 30 },
			wantPath: "polling.detailIntervalSeconds",
			severity: "warning",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			errs := ValidateDomain(cfg)
			for _, e := range errs {
				if e.Path == tc.wantPath && e.Severity == tc.severity {
					return
				}
			}
			t.Errorf("no %s at %q in %v", tc.severity, tc.wantPath, errs)
		})
	}
}

func TestValidateDomainAcceptsDefaults(t *testing.T) {
	if errs := ValidateDomain(Default()); len(errs) != 0 {
		t.Errorf("default config invalid: %v", errs)
	}
}

func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatalf("GenerateJSONSchema: %v", err)
	}
	s := string(data)
	for _, want := range []string{"console-v1.json", "baseUrl", "emphasis"} {
		if !strings.Contains(s, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
