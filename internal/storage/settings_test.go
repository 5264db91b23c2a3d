package storage

import (
	"reflect"
	"testing"
)

func TestLoadSettings_DefaultsWhenMissing(t *testing.T) {
	l := NewLayout(t.TempDir())

	got, err := LoadSettings(l)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	want := DefaultSettings()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadSettings() = %+v, want defaults %+v", got, want)
	}
}

func TestSettings_SaveAndLoad_PartialOverride(t *testing.T) {
	l := NewLayout(t.TempDir())

	s := DefaultSettings()
	s.LogLevel = "debug"
	s.PollingIntervalSecs = 5
	s.Backend.BaseURL = "https://staging.ajime.dev"
	if err := s.Save(l); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := LoadSettings(l)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if got.LogLevel != "debug" || got.PollingIntervalSecs != 5 || got.Backend.BaseURL != "https://staging.ajime.dev" {
		t.Errorf("LoadSettings() = %+v, want overridden fields preserved", got)
	}
	// Fields not touched should retain the documented defaults.
	if got.Hardware.EnableCamera != false || got.MqttBroker.Port != 1883 {
		t.Errorf("LoadSettings() untouched fields = %+v, want defaults", got)
	}
}

func TestLayout_EnsureDirs(t *testing.T) {
	l := NewLayout(t.TempDir())
	if err := l.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error = %v", err)
	}
	for _, dir := range []string{l.WorkflowCacheDir(), l.ConfigCacheDir(), l.DeploymentsDir(), l.LogsDir(), l.TokensDir()} {
		f := NewFile(dir)
		if !f.Exists() {
			t.Errorf("expected directory %s to exist after EnsureDirs()", dir)
		}
	}
}
