package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
)

type fakeMigrator struct {
	upErr      error
	version    uint
	dirty      bool
	versionErr error
	forced     int
	steps      int
	downCalled bool
}

func (f *fakeMigrator) Up() error { return f.upErr }

func (f *fakeMigrator) Down() error {
	f.downCalled = true
	return nil
}

func (f *fakeMigrator) Steps(n int) error {
	f.steps = n
	return nil
}

func (f *fakeMigrator) Force(v int) error {
	f.forced = v
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	return f.version, f.dirty, f.versionErr
}

func TestRunUp(t *testing.T) {
	msg, err := run(&fakeMigrator{}, "up", nil)
	if err != nil || !strings.Contains(msg, "completed") {
		t.Errorf("run(up) = %q, %v", msg, err)
	}

	msg, err = run(&fakeMigrator{upErr: migrate.ErrNoChange}, "up", nil)
	if err != nil || !strings.Contains(msg, "up to date") {
		t.Errorf("run(up) with no change = %q, %v", msg, err)
	}

	if _, err := run(&fakeMigrator{upErr: errors.New("syntax error")}, "up", nil); err == nil {
		t.Error("Expected error when migration fails")
	}
}

func TestRunVersionAndForce(t *testing.T) {
	msg, err := run(&fakeMigrator{version: 1}, "version", nil)
	if err != nil || msg != "Current version: 1 (dirty: false)" {
		t.Errorf("run(version) = %q, %v", msg, err)
	}

	msg, err = run(&fakeMigrator{versionErr: migrate.ErrNilVersion}, "version", nil)
	if err != nil || msg != "No migrations applied" {
		t.Errorf("run(version) on empty database = %q, %v", msg, err)
	}

	f := &fakeMigrator{}
	if _, err := run(f, "force", []string{"1"}); err != nil || f.forced != 1 {
		t.Errorf("run(force 1) forced %d, err %v", f.forced, err)
	}
	if _, err := run(f, "force", nil); err == nil {
		t.Error("Expected error when force has no version")
	}
	if _, err := run(f, "force", []string{"one"}); err == nil {
		t.Error("Expected error for a non-numeric version")
	}
}

func TestRunStepsDownAndUnknown(t *testing.T) {
	f := &fakeMigrator{}
	if _, err := run(f, "steps", []string{"-1"}); err != nil || f.steps != -1 {
		t.Errorf("run(steps -1) steps %d, err %v", f.steps, err)
	}
	if _, err := run(f, "down", nil); err != nil || !f.downCalled {
		t.Errorf("run(down) called %v, err %v", f.downCalled, err)
	}
	if _, err := run(f, "sideways", nil); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("Expected unknown command error, got %v", err)
	}
}

func TestDatabaseURL(t *testing.T) {
	t.Setenv("MBSRULES_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgres://fallback")

	if got := databaseURL("postgres://flag"); got != "postgres://flag" {
		t.Errorf("flag should win, got %s", got)
	}
	if got := databaseURL(""); got != "postgres://fallback" {
		t.Errorf("DATABASE_URL fallback expected, got %s", got)
	}

	t.Setenv("MBSRULES_DATABASE_URL", "postgres://primary")
	if got := databaseURL(""); got != "postgres://primary" {
		t.Errorf("MBSRULES_DATABASE_URL expected, got %s", got)
	}
}
