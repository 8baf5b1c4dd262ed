package app

import (
	"testing"
)

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("FOUNDRY_CONFIG", "/etc/foundry.yaml")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "")

	c := LoadConfig()
	if c.ConfigFile != "/etc/foundry.yaml" {
		t.Errorf("ConfigFile = %q", c.ConfigFile)
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", c.LogLevel)
	}
	if c.LogFormat != "auto" {
		t.Errorf("LogFormat = %q, want auto", c.LogFormat)
	}
}

func TestUpdateFromFlags(t *testing.T) {
	c := &Config{Format: "json", LogLevel: "info", ConfigFile: "a.yaml"}

	c.UpdateFromFlags(true, false, true, "", "", "")
	if !c.Verbose || !c.NoColor {
		t.Error("boolean flags not applied")
	}
	if c.Format != "json" || c.LogLevel != "info" || c.ConfigFile != "a.yaml" {
		t.Error("empty flags must keep existing values")
	}

	c.UpdateFromFlags(false, true, false, "yaml", "warn", "b.yaml")
	if c.Format != "yaml" || c.LogLevel != "warn" || c.ConfigFile != "b.yaml" {
		t.Errorf("flags not applied: %+v", c)
	}
}
