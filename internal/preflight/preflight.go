package preflight

import (
	"context"

	"mediaflow/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Storage directory", cfg.Paths.StorageDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Upload.DefaultTarget == "http" || cfg.Upload.HTTPEndpoint != "" {
		results = append(results, CheckUploadEndpoint(ctx, cfg.Upload.HTTPEndpoint))
	}
	for _, status := range CheckSystemDeps(ctx, cfg) {
		detail := status.Command
		switch {
		case !status.Available:
			detail = status.Detail
		case status.Version != "":
			detail = status.Command + " (" + status.Version + ")"
		}
		results = append(results, Result{Name: status.Name, Passed: status.Available, Detail: detail})
	}
	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
