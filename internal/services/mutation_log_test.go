package services

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMutationLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rec := NewMutationLog(zap.New(core).Sugar())

	rec.Record("user-1", "TOGGLE_ENVELOPE", "envelope", "env-1", "127.0.0.1", map[string]interface{}{"checked": true})
	rec.Record("user-1", "DELETE_ENVELOPE", "envelope", "env-1", "127.0.0.1", nil)

	entries := logs.FilterMessage("Mutation recorded").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["action"] != "TOGGLE_ENVELOPE" || fields["resource_id"] != "env-1" || fields["user_id"] != "user-1" {
		t.Errorf("unexpected fields %v", fields)
	}
	if _, ok := fields["changes"]; !ok {
		t.Error("expected changes to be logged")
	}
	if _, ok := entries[1].ContextMap()["changes"]; ok {
		t.Error("expected no changes field without changes")
	}
}
