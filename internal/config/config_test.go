package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewConfig_Defaults(t *testing.T) {
	c := NewConfig()

	want := map[string]string{
		"integration": "https://onboarding-integration.wedge-can.com",
		"sandbox":     "https://onboarding-sandbox.wedge-can.com",
		"production":  "https://onboarding-production.wedge-can.com",
	}
	for env, url := range want {
		if got := c.Onboarding.Environments[env]; got != url {
			t.Errorf("Environments[%q] = %q, want %q", env, got, url)
		}
	}
	if c.HostedLink.RedirectURI != "wedgehostedlink://complete" {
		t.Errorf("RedirectURI = %q", c.HostedLink.RedirectURI)
	}
	if c.GraceDelay() != 1500*time.Millisecond {
		t.Errorf("GraceDelay() = %v, want 1.5s", c.GraceDelay())
	}
	if c.Bridge.InterfaceName != "WedgeSDKAndroid" {
		t.Errorf("InterfaceName = %q", c.Bridge.InterfaceName)
	}
}

func TestLoad_OverridesAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
onboarding:
  serviceDomain: example.test
  environments:
    production: https://prod.example.test/
hostedLink:
  graceDelayMs: 250
  redirectUri: myapp://done
log:
  level: warn
  writer: [console]
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := c.Onboarding.Environments["production"]; got != "https://prod.example.test/" {
		t.Errorf("production = %q", got)
	}
	if got := c.Onboarding.Environments["sandbox"]; got != "https://onboarding-sandbox.example.test" {
		t.Errorf("sandbox = %q", got)
	}
	if c.GraceDelay() != 250*time.Millisecond {
		t.Errorf("GraceDelay() = %v", c.GraceDelay())
	}
	if c.HostedLink.RedirectURI != "myapp://done" {
		t.Errorf("RedirectURI = %q", c.HostedLink.RedirectURI)
	}
	if c.Log.Level != "warn" || len(c.Log.Writer) != 1 {
		t.Errorf("Log = %+v", c.Log)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("onboarding: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected parse error")
	}
}
