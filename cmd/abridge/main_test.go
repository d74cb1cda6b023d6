package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestEnvOr(t *testing.T) {
	t.Setenv("ABRIDGE_TEST_SET", "from-env")
	os.Unsetenv("ABRIDGE_TEST_UNSET")

	if got := envOr("ABRIDGE_TEST_SET", "fallback"); got != "from-env" {
		t.Errorf("envOr(set) = %q, want %q", got, "from-env")
	}
	if got := envOr("ABRIDGE_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("envOr(unset) = %q, want %q", got, "fallback")
	}
}

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		name      string
		flagValue string
		env       string
		want      string
	}{
		{"flag wins", "tcp://flag:1883", "tcp://env:1883", "tcp://flag:1883"},
		{"env fallback", "", "tcp://env:1883", "tcp://env:1883"},
		{"local default", "", "", "tcp://localhost:1883"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("MQTT_BROKER", tt.env)
			} else {
				t.Setenv("MQTT_BROKER", "")
				os.Unsetenv("MQTT_BROKER")
			}
			if got := brokerURL(tt.flagValue); got != tt.want {
				t.Errorf("brokerURL(%q) = %q, want %q", tt.flagValue, got, tt.want)
			}
		})
	}
}

func TestFixtureLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.txt")
	content := "ODOM,1,1.0,2.0,0.5,10.0,0.1,0.02\n\n  USC,1,200.0  \n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got := fixtureLines(path)
	want := []string{"ODOM,1,1.0,2.0,0.5,10.0,0.1,0.02", "USC,1,200.0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("fixtureLines = %v, want %v", got, want)
	}
}

func TestFixtureLines_MissingFile(t *testing.T) {
	got := fixtureLines(filepath.Join(t.TempDir(), "nope.txt"))
	if !reflect.DeepEqual(got, defaultFixtureLines) {
		t.Errorf("fixtureLines(missing) = %v, want built-in dump", got)
	}
}

func TestFixtureLines_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("\n  \n"), 0644); err != nil {
		t.Fatal(err)
	}
	got := fixtureLines(path)
	if !reflect.DeepEqual(got, defaultFixtureLines) {
		t.Errorf("fixtureLines(empty) = %v, want built-in dump", got)
	}
}
