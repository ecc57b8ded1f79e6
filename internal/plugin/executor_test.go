package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// writeScriptPlugin writes an executable shell script plugin into a temp dir.
func writeScriptPlugin(t *testing.T, name, script string) *Plugin {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, name+".sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	return &Plugin{
		Manifest: Manifest{
			Name:       name,
			Version:    "1.0.0",
			Executable: name + ".sh",
			Actions:    []string{"get-level", "set-level"},
		},
		Path:       dir,
		Executable: path,
	}
}

func TestExecutor_Execute(t *testing.T) {
	plugin := writeScriptPlugin(t, "static", `echo '{"success":true,"data":{"level":0.42}}'
`)

	response, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{Action: "get-level"})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if !response.Success {
		t.Errorf("expected success=true, got false")
	}

	var data struct {
		Level float64 `json:"level"`
	}
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data.Level != 0.42 {
		t.Errorf("level = %v, want 0.42", data.Level)
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	plugin := writeScriptPlugin(t, "echo", `INPUT=$(cat)
echo "{\"success\":true,\"data\":$INPUT}"
`)

	req := &Request{
		Action: "set-level",
		Params: json.RawMessage(`{"level":0.75}`),
	}

	response, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, req)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var received Request
	if err := json.Unmarshal(response.Data, &received); err != nil {
		t.Fatalf("failed to unmarshal echoed request: %v", err)
	}
	if received.Action != "set-level" {
		t.Errorf("action = %q, want set-level", received.Action)
	}
	if string(received.Params) != `{"level":0.75}` {
		t.Errorf("params = %s", received.Params)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	plugin := writeScriptPlugin(t, "slow", "exec sleep 5\n")

	start := time.Now()
	_, err := NewExecutor(100*time.Millisecond).Execute(context.Background(), plugin, &Request{Action: "get-level"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Execute() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestExecutor_Execute_ErrorResponse(t *testing.T) {
	plugin := writeScriptPlugin(t, "failing", `echo '{"success":false,"error":"no mixer"}'
`)

	response, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{Action: "get-level"})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if response.Success || response.Error != "no mixer" {
		t.Errorf("response = %+v, want failure with 'no mixer'", response)
	}
}

func TestExecutor_Execute_InvalidJSON(t *testing.T) {
	plugin := writeScriptPlugin(t, "garbage", "echo 'not json'\n")

	_, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{Action: "get-level"})
	if err == nil || !strings.Contains(err.Error(), "parse plugin response") {
		t.Errorf("Execute() error = %v, want parse failure", err)
	}
}

func TestExecutor_Execute_NonZeroExit(t *testing.T) {
	plugin := writeScriptPlugin(t, "crash", "echo 'boom' >&2\nexit 3\n")

	_, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{Action: "get-level"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Execute() error = %v, want stderr in error", err)
	}
}
