package main

import (
	"context"
	"testing"

	"mediaflow/internal/testsupport"
)

func TestExecutionCancelAndDelete(t *testing.T) {
	env := setupCLITestEnv(t)
	st := testsupport.MustOpenStore(t, env.cfg)
	wf := testsupport.NewWorkflow(t, st, "Channel", testsupport.LinearDefinition(map[string]any{"url": "https://example.com/c"}, "download"))
	rec, err := st.CreateExecution(context.Background(), wf.ID, "started")
	if err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}
	id := itoa(rec.ID)

	_, _, err = runCLI(t, []string{"execution", "delete", id}, env.configPath)
	if err == nil {
		t.Fatal("expected delete of a running execution to fail")
	}
	requireContains(t, err.Error(), "still running")

	out, _, err := runCLI(t, []string{"execution", "cancel", id}, env.configPath)
	if err != nil {
		t.Fatalf("execution cancel: %v", err)
	}
	requireContains(t, out, "cancelled")

	_, _, err = runCLI(t, []string{"execution", "cancel", id}, env.configPath)
	if err == nil {
		t.Fatal("expected second cancel to fail")
	}
	requireContains(t, err.Error(), "already finished")

	out, _, err = runCLI(t, []string{"execution", "show", id, "-n", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("execution show: %v", err)
	}
	requireContains(t, out, "cancelled")

	out, _, err = runCLI(t, []string{"execution", "delete", id}, env.configPath)
	if err != nil {
		t.Fatalf("execution delete: %v", err)
	}
	requireContains(t, out, "Deleted execution #"+id)

	out, _, err = runCLI(t, []string{"execution", "list", "--workflow", itoa(wf.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("execution list: %v", err)
	}
	requireContains(t, out, "No executions")
}
