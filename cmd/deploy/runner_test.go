package main

import (
	"fmt"
	"strings"
)

// cannedOutput maps a command substring to the output the fake returns.
// Entries are checked in order so tests stay deterministic.
type cannedOutput struct {
	substr string
	output string
}

// fakeRunner records every command and serves canned outputs, standing in
// for *deploy.Executor in tests.
type fakeRunner struct {
	commands []string
	copies   []string
	writes   map[string]string
	outputs  []cannedOutput
	failOn   string
	local    bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{writes: make(map[string]string)}
}

func (f *fakeRunner) on(substr, output string) *fakeRunner {
	f.outputs = append(f.outputs, cannedOutput{substr: substr, output: output})
	return f
}

func (f *fakeRunner) run(command string) (string, error) {
	f.commands = append(f.commands, command)
	if f.failOn != "" && strings.Contains(command, f.failOn) {
		return "", fmt.Errorf("command failed: %s", command)
	}
	for _, c := range f.outputs {
		if strings.Contains(command, c.substr) {
			return c.output, nil
		}
	}
	return "", nil
}

func (f *fakeRunner) Run(command string) (string, error) {
	return f.run(command)
}

func (f *fakeRunner) RunSudo(command string) (string, error) {
	return f.run("sudo " + command)
}

func (f *fakeRunner) CopyFile(src, dst string) error {
	f.copies = append(f.copies, fmt.Sprintf("%s -> %s", src, dst))
	if f.failOn != "" && strings.Contains(dst, f.failOn) {
		return fmt.Errorf("copy failed: %s", dst)
	}
	return nil
}

func (f *fakeRunner) WriteFile(path, content string) error {
	f.writes[path] = content
	return nil
}

func (f *fakeRunner) IsLocal() bool { return f.local }

// ran reports whether any recorded command contains substr.
func (f *fakeRunner) ran(substr string) bool {
	for _, c := range f.commands {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}

// allCommands joins the recorded commands for contains-style assertions.
func (f *fakeRunner) allCommands() string {
	return strings.Join(f.commands, "\n")
}
