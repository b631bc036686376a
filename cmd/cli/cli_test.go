package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/turtacn/credkit/internal/config"
	"github.com/turtacn/credkit/internal/infrastructure/monitoring"
	"github.com/turtacn/credkit/pkg/jwt"
)

type harness struct {
	t   *testing.T
	dir string
	cfg string
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "credkit.yaml")
	content := fmt.Sprintf(`log:
  level: debug
  output_path: %s
storage:
  backend: filesystem
  directory: %s
  name: cli
`, filepath.Join(dir, "credkit.log"), filepath.Join(dir, "entries"))
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o600))
	return &harness{t: t, dir: dir, cfg: cfg}
}

func (h *harness) run(stdin string, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	args = append([]string{"--config", h.cfg}, args...)
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (h *harness) writeFile(name string, data []byte) string {
	p := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(p, data, 0o600))
	return p
}

func TestKeyLifecycle(t *testing.T) {
	h := newHarness(t)
	value := []byte{0x30, 0x2e, 0x02, 0x01}
	file := h.writeFile("key.der", value)

	code, out, stderr := h.run("", "key", "save", "--name", "alice", "--value-file", file, "--meta", "env=prod", "--meta", "owner=ops")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "name:     alice")
	assert.Contains(t, out, "meta:     env=prod,owner=ops")

	code, out, _ = h.run("", "key", "exists", "alice")
	require.Equal(t, 0, code)
	assert.Equal(t, "true\n", out)

	code, out, _ = h.run("", "key", "load", "alice")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "value:    "+base64.StdEncoding.EncodeToString(value))

	code, _, _ = h.run("new-bytes", "key", "update", "--name", "alice", "--value-file", "-")
	require.Equal(t, 0, code)

	outFile := filepath.Join(h.dir, "out.der")
	code, out, _ = h.run("", "key", "load", "alice", "--out", outFile)
	require.Equal(t, 0, code)
	assert.NotContains(t, out, "value:")
	got, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, []byte("new-bytes"), got)

	code, out, _ = h.run("", "key", "list")
	require.Equal(t, 0, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.True(t, strings.HasPrefix(lines[1], "alice"))
	assert.Contains(t, lines[1], "env=prod,owner=ops")

	code, out, _ = h.run("", "key", "remove", "alice")
	require.Equal(t, 0, code)
	assert.Equal(t, "removed alice\n", out)

	code, out, _ = h.run("", "key", "remove", "alice")
	require.Equal(t, 0, code)
	assert.Equal(t, "no entry named alice\n", out)
}

func TestKeySaveDuplicateFails(t *testing.T) {
	h := newHarness(t)
	file := h.writeFile("key", []byte("k"))

	code, _, _ := h.run("", "key", "save", "--name", "dup", "--value-file", file)
	require.Equal(t, 0, code)

	code, _, stderr := h.run("", "key", "save", "--name", "dup", "--value-file", file)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "entry_already_exists")
}

func TestKeyUpdateNeedsValueOrMeta(t *testing.T) {
	h := newHarness(t)
	code, _, stderr := h.run("", "key", "update", "--name", "missing")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "validation_error")
}

func TestKeyLoadMissing(t *testing.T) {
	h := newHarness(t)
	code, _, stderr := h.run("", "key", "load", "ghost")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `no entry named "ghost"`)
}

func TestKeyClearRequiresConfirmation(t *testing.T) {
	h := newHarness(t)
	file := h.writeFile("key", []byte("k"))
	code, _, _ := h.run("", "key", "save", "--name", "a", "--value-file", file)
	require.Equal(t, 0, code)

	code, _, stderr := h.run("", "key", "clear")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--yes")

	code, out, _ := h.run("", "key", "clear", "--yes")
	require.Equal(t, 0, code)
	assert.Equal(t, "cleared\n", out)

	_, out, _ = h.run("", "key", "exists", "a")
	assert.Equal(t, "false\n", out)
}

func TestDumpMetrics(t *testing.T) {
	h := newHarness(t)
	code, _, stderr := h.run("", "--dump-metrics", "key", "exists", "a")
	require.Equal(t, 0, code)
	assert.Contains(t, stderr, `credkit_storage_ops_total{backend="filesystem",op="exists",result="success"} 1`)
}

func TestKeystoreLabelsDefaultBackend(t *testing.T) {
	a := newApp()
	a.cfg = &config.Config{Storage: config.StorageConfig{Directory: t.TempDir(), Name: "cli"}}
	a.registry = prometheus.NewRegistry()
	a.metrics = monitoring.NewMetrics(a.registry, "")

	ctx := context.Background()
	store, err := a.keystore(ctx)
	require.NoError(t, err)
	defer store.Close()
	_, err = store.Exists(ctx, "a")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeMetrics(&buf, a.registry))
	assert.Contains(t, buf.String(), `credkit_storage_ops_total{backend="filesystem",op="exists",result="success"} 1`)
	assert.NotContains(t, buf.String(), `backend=""`)
}

func TestCommandsRunInsideSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	h := newHarness(t)
	code, _, stderr := h.run("", "key", "exists", "a")
	require.Equal(t, 0, code, stderr)
	code, _, _ = h.run("", "token", "inspect", "a.b")
	require.Equal(t, 1, code)

	byName := make(map[string]sdktrace.ReadOnlySpan)
	for _, span := range recorder.Ended() {
		byName[span.Name()] = span
	}
	require.Contains(t, byName, "credkit key exists")
	require.Contains(t, byName, "keystore.exists")
	require.Contains(t, byName, "storage.exists")
	require.Contains(t, byName, "credkit token inspect")

	command := byName["credkit key exists"]
	assert.Equal(t, codes.Ok, command.Status().Code)
	assert.Equal(t, command.SpanContext().SpanID(), byName["keystore.exists"].Parent().SpanID())
	assert.Equal(t, command.SpanContext().TraceID(), byName["storage.exists"].SpanContext().TraceID())

	assert.Equal(t, codes.Error, byName["credkit token inspect"].Status().Code)
}

func TestTokenInspect(t *testing.T) {
	h := newHarness(t)
	issued := time.Now().Add(-time.Minute)
	token, err := jwt.New(
		jwt.NewHeader("VEDS512", "kid-1"),
		jwt.NewBody("app-1", "alice", issued, time.Hour, map[string]string{"role": "admin"}),
		[]byte("signature"),
	)
	require.NoError(t, err)

	code, out, stderr := h.run("", "token", "inspect", token.String())
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "algorithm:     VEDS512")
	assert.Contains(t, out, "key id:        kid-1")
	assert.Contains(t, out, "identity:      alice")
	assert.Contains(t, out, "app id:        app-1")
	assert.Contains(t, out, "additional:    role=admin")
	assert.Contains(t, out, "expired:       false")
	assert.Contains(t, out, "renewal due:   false")

	code, out, _ = h.run(token.String()+"\n", "token", "inspect", "-")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "identity:      alice")
}

func TestTokenInspectMalformed(t *testing.T) {
	h := newHarness(t)
	code, _, stderr := h.run("", "token", "inspect", "a.b")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "malformed_token")
}
