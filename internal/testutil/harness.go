// Package testutil provides the integration test harness: a throwaway
// workspace built from literal file contents, an app wired to a fake script
// invoker, and captured log output.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/planforge/internal/app"
	"github.com/vk/planforge/internal/engine"
	"github.com/vk/planforge/internal/script"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// ScriptInvoker is a fake script.Invoker serving canned results by package
// name and recording every invocation.
type ScriptInvoker struct {
	mu      sync.Mutex
	Results map[string]script.Result
	Calls   []script.Invocation
}

func (f *ScriptInvoker) Invoke(_ context.Context, inv script.Invocation) (script.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, inv)
	return f.Results[inv.Package], nil
}

// CallCount returns how many times the named package's script ran.
func (f *ScriptInvoker) CallCount(pkg string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c.Package == pkg {
			n++
		}
	}
	return n
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	Result    *engine.Result
}

// RunResolveTest writes the given files into a temporary workspace, resolves
// the build described by its build.hcl, and returns the result plus captured
// logs. Build scripts run through the provided fake invoker; a nil invoker
// means no package emits directives.
func RunResolveTest(t *testing.T, files map[string]string, invoker *ScriptInvoker) *HarnessResult {
	t.Helper()
	return RunResolveTestWithContext(context.Background(), t, files, invoker)
}

// RunResolveTestWithContext is RunResolveTest with a caller-provided context.
func RunResolveTestWithContext(ctx context.Context, t *testing.T, files map[string]string, invoker *ScriptInvoker) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	if invoker == nil {
		invoker = &ScriptInvoker{}
	}
	cfg, err := app.NewConfig(app.Config{
		BuildFile: filepath.Join(tmpDir, "build.hcl"),
		LogLevel:  "debug",
		LogFormat: "text",
		Workers:   4,
	})
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	testApp, err := app.NewApp(logBuffer, cfg, invoker)
	require.NoError(t, err)

	result, runErr := testApp.Run(ctx)

	if os.Getenv("PLANFORGE_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}
	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		Result:    result,
	}
}
