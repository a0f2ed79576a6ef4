package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
)

func TestSetEnvValueKeepsOtherEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TEAMOPS_JWT_SECRET=s3cret\nTEAMOPS_ACTOR_ID=old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := setEnvValue(dir, "TEAMOPS_ACTOR_ID", "new-id"); err != nil {
		t.Fatal(err)
	}
	values, err := godotenv.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if values["TEAMOPS_ACTOR_ID"] != "new-id" || values["TEAMOPS_JWT_SECRET"] != "s3cret" {
		t.Fatalf("unexpected env %v", values)
	}
}

func TestSetEnvValueCreatesFile(t *testing.T) {
	dir := t.TempDir()
	if err := setEnvValue(dir, "TEAMOPS_ACTOR_ID", "p1"); err != nil {
		t.Fatal(err)
	}
	values, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatal(err)
	}
	if values["TEAMOPS_ACTOR_ID"] != "p1" {
		t.Fatalf("unexpected env %v", values)
	}
}

func TestLoadDotEnvMissingFileIsFine(t *testing.T) {
	if err := loadDotEnv(t.TempDir()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestLoadDotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TEAMOPS_TEST_VALUE=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEAMOPS_TEST_VALUE", "from-env")
	if err := loadDotEnv(dir); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("TEAMOPS_TEST_VALUE"); got != "from-env" {
		t.Fatalf("expected process env to win, got %q", got)
	}
}
