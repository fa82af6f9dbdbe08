package main

import (
	"bufio"
	"encoding/json"
	"strings"
	"testing"

	"mediaflow/internal/events"
)

func TestRunCommandExecutesDefinition(t *testing.T) {
	env := setupCLITestEnv(t)
	def := writeDefinition(t, env.baseDir, "channel.json")

	out, stderr, err := runCLI(t, []string{"run", def}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v\nstdout: %s\nstderr: %s", err, out, stderr)
	}
	requireContains(t, out, "Execution #1 started")
	requireContains(t, out, "[1/2] First Clip")
	requireContains(t, out, "[2/2] Second Clip")
	requireContains(t, out, "download: completed")
	requireContains(t, out, "[OK] completed")
	requireContains(t, out, "Downloaded:")

	out, _, err = runCLI(t, []string{"execution", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("execution list: %v", err)
	}
	requireContains(t, out, "completed")
	requireContains(t, out, "2/2")

	out, _, err = runCLI(t, []string{"execution", "show", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("execution show: %v", err)
	}
	requireContains(t, out, "Workflow execution started")
	requireContains(t, out, "Items processed")
}

func TestRunCommandJSONEvents(t *testing.T) {
	env := setupCLITestEnv(t)
	def := writeDefinition(t, env.baseDir, "channel.yaml")

	out, _, err := runCLI(t, []string{"run", "--json", def}, env.configPath)
	if err != nil {
		t.Fatalf("run --json: %v", err)
	}

	var types []events.Type
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, `{"type"`) {
			continue
		}
		var evt struct {
			Type events.Type `json:"type"`
		}
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		types = append(types, evt.Type)
	}
	if len(types) == 0 || types[len(types)-1] != events.TypeWorkflowCompleted {
		t.Fatalf("expected stream to end with workflow_completed, got %v", types)
	}
}

func TestRunCommandRejectsInvalidDefinition(t *testing.T) {
	env := setupCLITestEnv(t)
	def := writeDefinition(t, env.baseDir, "broken.json")
	if err := writeFile(def, `{"nodes":[{"id":"scan","type":"scan","data":{"config":{"url":"x"}}},{"id":"t","type":"transcode"}],"edges":[{"source":"scan","target":"t"}]}`); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, _, err := runCLI(t, []string{"run", def}, env.configPath)
	if err == nil {
		t.Fatal("expected unknown stage type to be rejected")
	}
	requireContains(t, err.Error(), "unknown_stage_type")

	out, _, err := runCLI(t, []string{"execution", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("execution list: %v", err)
	}
	requireContains(t, out, "No executions")
}
