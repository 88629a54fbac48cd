package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindSettingsFileExplicitPathWins(t *testing.T) {
	got, err := FindSettingsFile("/some/explicit/path.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/some/explicit/path.yaml" {
		t.Fatalf("expected explicit path to pass through unchanged, got %q", got)
	}
}

func TestFindSettingsFilePrefersCwdOverHome(t *testing.T) {
	cwdDir := t.TempDir()
	homeDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(cwdDir, SettingsFileName), []byte("cwd"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(homeDir, SettingsFileName), []byte("home"), 0o644); err != nil {
		t.Fatal(err)
	}

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(cwdDir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(origWd)

	t.Setenv("HOME", homeDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	got, err := FindSettingsFile("")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(cwdDir, SettingsFileName)
	if got != want {
		t.Fatalf("expected cwd candidate %q, got %q", want, got)
	}
}

func TestFindSettingsFileFallsBackToHome(t *testing.T) {
	cwdDir := t.TempDir()
	homeDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(homeDir, SettingsFileName), []byte("home"), 0o644); err != nil {
		t.Fatal(err)
	}

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(cwdDir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(origWd)

	t.Setenv("HOME", homeDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	got, err := FindSettingsFile("")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(homeDir, SettingsFileName)
	if got != want {
		t.Fatalf("expected home candidate %q, got %q", want, got)
	}
}

func TestFindSettingsFileReturnsErrorWhenNothingExists(t *testing.T) {
	cwdDir := t.TempDir()
	homeDir := t.TempDir()

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(cwdDir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(origWd)

	t.Setenv("HOME", homeDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	if _, err := FindSettingsFile(""); err == nil {
		t.Fatal("expected an error when no candidate exists")
	}
}
