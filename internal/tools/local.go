package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// safePath resolves rel inside the workspace sandbox and rejects any
// path that escapes it.
func (t *Toolset) safePath(rel string) (string, error) {
	base, err := filepath.Abs(t.cfg.Local.Workspace)
	if err != nil {
		return "", fmt.Errorf("resolve workspace: %w", err)
	}
	rel = strings.TrimLeft(rel, "/\\")
	full := filepath.Clean(filepath.Join(base, rel))
	if full != base && !strings.HasPrefix(full, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes workspace sandbox")
	}
	return full, nil
}

func (t *Toolset) writeFile(_ context.Context, args map[string]any) (any, error) {
	path := argString(args, "path", "")
	content := argString(args, "content", "")

	full, err := t.safePath(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, fmt.Errorf("create parent dir: %w", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}
	return Result{"ok": true, "action": "write_file", "path": path, "bytes": len(content)}, nil
}

func (t *Toolset) execCommand(ctx context.Context, args map[string]any) (any, error) {
	cmdLine := argString(args, "cmd", "")
	allow, _ := args["allow"].(bool)

	if !t.cfg.Local.ActionsEnabled || !allow {
		return Result{
			"ok":      false,
			"error":   "disabled",
			"message": "Command exec disabled unless local.actions_enabled=true and allow=true",
		}, nil
	}

	timeout := time.Duration(t.cfg.Local.ExecTimeout) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := os.MkdirAll(t.cfg.Local.Workspace, 0755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", cmdLine)
	cmd.Dir = t.cfg.Local.Workspace

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("exec command: %w", err)
		}
	}
	return Result{
		"ok":         true,
		"action":     "exec",
		"cmd":        cmdLine,
		"returncode": code,
		"stdout":     stdout.String(),
		"stderr":     stderr.String(),
	}, nil
}
