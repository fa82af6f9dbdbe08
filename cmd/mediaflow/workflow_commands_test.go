package main

import (
	"context"
	"encoding/json"
	"testing"

	"mediaflow/internal/store"
	"mediaflow/internal/testsupport"
)

func TestWorkflowAddListShowRemove(t *testing.T) {
	env := setupCLITestEnv(t)
	def := writeDefinition(t, env.baseDir, "nightly.yaml")

	out, _, err := runCLI(t, []string{"workflow", "add", def, "--name", "Nightly", "--schedule", "0 3 * * *"}, env.configPath)
	if err != nil {
		t.Fatalf("workflow add: %v", err)
	}
	requireContains(t, out, "Added workflow #1 Nightly")

	out, _, err = runCLI(t, []string{"workflow", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("workflow list: %v", err)
	}
	requireContains(t, out, "Nightly")
	requireContains(t, out, "0 3 * * *")

	out, _, err = runCLI(t, []string{"workflow", "show", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("workflow show: %v", err)
	}
	requireContains(t, out, "scan -> download")
	requireContains(t, out, "No executions")

	out, _, err = runCLI(t, []string{"workflow", "show", "1", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("workflow show --json: %v", err)
	}
	var wf store.Workflow
	if err := json.Unmarshal([]byte(out), &wf); err != nil {
		t.Fatalf("decode workflow: %v", err)
	}
	if wf.Name != "Nightly" || len(wf.Definition.Nodes) != 2 || !wf.IsActive {
		t.Fatalf("unexpected workflow: %+v", wf)
	}

	out, _, err = runCLI(t, []string{"workflow", "remove", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("workflow remove: %v", err)
	}
	requireContains(t, out, "Deactivated workflow #1")

	out, _, err = runCLI(t, []string{"workflow", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("workflow list: %v", err)
	}
	requireContains(t, out, "No workflows")
}

func TestWorkflowAddRejectsBadInput(t *testing.T) {
	env := setupCLITestEnv(t)
	def := writeDefinition(t, env.baseDir, "wf.json")

	if _, _, err := runCLI(t, []string{"workflow", "add", def, "--schedule", "not a cron"}, env.configPath); err == nil {
		t.Fatal("expected invalid schedule to be rejected")
	}

	if err := writeFile(def, `{"nodes":[{"id":"d","type":"download"}],"edges":[]}`); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err := runCLI(t, []string{"workflow", "add", def}, env.configPath)
	if err == nil {
		t.Fatal("expected missing discovery node to be rejected")
	}
	requireContains(t, err.Error(), "missing_discovery_node")

	if _, _, err := runCLI(t, []string{"workflow", "show", "abc"}, env.configPath); err == nil {
		t.Fatal("expected invalid id to be rejected")
	}
	if _, _, err := runCLI(t, []string{"workflow", "show", "42"}, env.configPath); err == nil {
		t.Fatal("expected missing workflow to be reported")
	}
}

func TestWorkflowExecuteFollowsRun(t *testing.T) {
	env := setupCLITestEnv(t)
	st := testsupport.MustOpenStore(t, env.cfg)
	wf := testsupport.NewWorkflow(t, st, "Channel", testsupport.LinearDefinition(map[string]any{"url": "https://example.com/channel", "video_limit": 1}, "download"))

	out, _, err := runCLI(t, []string{"workflow", "execute", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("workflow execute: %v\n%s", err, out)
	}
	requireContains(t, out, "[1/1] First Clip")
	requireContains(t, out, "[OK] completed")

	runs, err := st.ListWorkflowExecutions(context.Background(), wf.ID)
	if err != nil {
		t.Fatalf("ListWorkflowExecutions: %v", err)
	}
	if len(runs) != 1 || runs[0].Results.ProcessedCount != 1 {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	if err := st.DeactivateWorkflow(context.Background(), wf.ID); err != nil {
		t.Fatalf("DeactivateWorkflow: %v", err)
	}
	if _, _, err := runCLI(t, []string{"workflow", "execute", "1"}, env.configPath); err == nil {
		t.Fatal("expected inactive workflow to be refused")
	}
}
