package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var (
	// ErrAgentLaunch reports the helper binary exiting non-zero or failing
	// to start.
	ErrAgentLaunch = errors.New("agent-browser failed")
	// ErrAgentOutput reports output that does not contain a JSON object.
	ErrAgentOutput = errors.New("agent-browser output invalid")
	// ErrAgentNoFrame reports an eval result without the expected frame
	// content.
	ErrAgentNoFrame = errors.New("agent-browser frame missing")
)

// AgentDriver wraps the external agent-browser helper as a typed four-step
// driver. Session tags keep concurrent runs apart on the helper side.
type AgentDriver struct {
	Session string
	Command string // helper binary, default "agent-browser"
}

// Open navigates the session to url.
func (d *AgentDriver) Open(ctx context.Context, url string) error {
	_, err := d.run(ctx, "open", url)
	return err
}

// Wait pauses the session for the given number of milliseconds.
func (d *AgentDriver) Wait(ctx context.Context, millis int) error {
	_, err := d.run(ctx, "wait", strconv.Itoa(millis))
	return err
}

// Eval runs script in the page and returns the decoded JSON object it
// produced, or nil when the helper printed nothing.
func (d *AgentDriver) Eval(ctx context.Context, script string) (map[string]any, error) {
	return d.run(ctx, "eval", script)
}

// Close tears the session down.
func (d *AgentDriver) Close(ctx context.Context) error {
	_, err := d.run(ctx, "close")
	return err
}

func (d *AgentDriver) run(ctx context.Context, args ...string) (map[string]any, error) {
	command := d.Command
	if command == "" {
		command = "agent-browser"
	}
	full := append([]string{"--session", d.Session}, args...)
	cmd := exec.CommandContext(ctx, command, full...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrAgentLaunch, err, detail)
	}

	output := strings.TrimSpace(stdout.String())
	if output == "" {
		return nil, nil
	}
	return parseAgentJSON(output)
}

// parseAgentJSON pulls the JSON object out of helper output that may carry
// log noise around it.
func parseAgentJSON(output string) (map[string]any, error) {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in output", ErrAgentOutput)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(output[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAgentOutput, err)
	}
	return payload, nil
}
