package main

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"mediaflow/internal/config"
	"mediaflow/internal/testsupport"
)

// ytDlpScript mimics yt-dlp: listing a channel returns two entries, and a
// download writes the file named by the -o template.
const ytDlpScript = `out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
case " $* " in
  *" --version "*) echo 2024.01.01; exit 0 ;;
  *" --skip-download "*) echo '{"title":"Probed"}'; exit 0 ;;
esac
if [ -z "$out" ]; then
  echo '{"entries":[{"id":"v1","title":"First Clip","webpage_url":"https://example.com/v1"},{"id":"v2","title":"Second Clip","webpage_url":"https://example.com/v2"}]}'
  exit 0
fi
base=$(printf '%s' "$out" | sed 's/\.%(ext)s$//')
printf 'video-bytes' > "$base.mp4"
echo '{"title":"Downloaded","duration":12}'
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, mutate ...func(*config.Config)) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries("ffmpeg"),
		testsupport.WithToolScript("yt-dlp", ytDlpScript),
	)
	for _, fn := range mutate {
		fn(cfg)
	}
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "mediaflow", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
storage_dir = %q
log_dir = %q
api_bind = %q

[tools]
ytdlp_binary = %q

[upload]
simulate_delay_ms = 0

[scheduler]
enabled = false
`,
		cfg.Paths.StorageDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Tools.YtDlpBinary,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// writeDefinition stores a scan -> download definition in dir.
func writeDefinition(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var content string
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		content = `nodes:
  - id: scan
    type: scan
    data:
      label: Channel
      config:
        url: https://example.com/channel
  - id: fetch
    type: download
edges:
  - source: scan
    target: fetch
`
	default:
		content = `{
  "nodes": [
    {"id": "scan", "type": "scan", "data": {"config": {"url": "https://example.com/channel"}}},
    {"id": "fetch", "type": "download"}
  ],
  "edges": [{"source": "scan", "target": "fetch"}]
}`
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write definition: %v", err)
	}
	return path
}

// closedAddress returns a loopback address nothing listens on.
func closedAddress(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
