package session_test

import (
	"testing"

	"github.com/akademix/examroom-backend/internal/session"
)

func TestMonitorTripsOnFirstExitOnly(t *testing.T) {
	m := session.NewMonitor()

	if !m.Compliant() {
		t.Fatal("monitor must start compliant")
	}
	if !m.ObserveFullscreen(false) {
		t.Fatal("first exit must raise a violation")
	}
	if m.ObserveFullscreen(false) {
		t.Fatal("repeated exit must not raise again")
	}
	if m.ObserveFullscreen(true) {
		t.Fatal("re-entering full-screen is not a violation")
	}
	if m.ObserveFullscreen(false) {
		t.Fatal("exit after trip must not raise again")
	}
	if !m.Tripped() {
		t.Fatal("expected tripped flag set")
	}
}

func TestMonitorIgnoresEntryEvents(t *testing.T) {
	m := session.NewMonitor()
	if m.ObserveFullscreen(true) {
		t.Fatal("entering full-screen must never raise")
	}
	if m.Tripped() {
		t.Fatal("monitor must not trip on entry")
	}
}

func TestPendingConsumedAtMostOnce(t *testing.T) {
	m := session.NewMonitor()

	if m.TakePending() {
		t.Fatal("no pending violation yet")
	}
	m.Defer()
	if !m.TakePending() {
		t.Fatal("expected the buffered violation")
	}
	if m.TakePending() {
		t.Fatal("buffered violation must be consumed exactly once")
	}
}
