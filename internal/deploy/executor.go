// Package deploy provides command execution for local and remote rover
// deployments. Remote rovers are reached through the system ssh/scp
// binaries so that ~/.ssh/config host aliases, agents and proxy jumps
// keep working without reimplementing them.
package deploy

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Logger defines the interface for debug logging.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// nopLogger is a no-op logger implementation.
type nopLogger struct{}

func (nopLogger) Debugf(format string, args ...interface{}) {}

// Executor handles command execution on a local or remote rover.
type Executor struct {
	Rover         string
	SSHUser       string
	SSHKey        string
	IdentityAgent string
	DryRun        bool
	Logger        Logger
}

// NewExecutor creates a command executor for the given rover. An empty
// rover, "localhost" or "127.0.0.1" runs commands locally.
func NewExecutor(rover, sshUser, sshKey, identityAgent string, dryRun bool) *Executor {
	return &Executor{
		Rover:         rover,
		SSHUser:       sshUser,
		SSHKey:        sshKey,
		IdentityAgent: identityAgent,
		DryRun:        dryRun,
		Logger:        nopLogger{},
	}
}

// SetLogger sets the debug logger for the executor.
func (e *Executor) SetLogger(logger Logger) {
	if logger != nil {
		e.Logger = logger
	}
}

// IsLocal returns true if the rover target is this machine.
func (e *Executor) IsLocal() bool {
	return e.Rover == "localhost" || e.Rover == "127.0.0.1" || e.Rover == ""
}

// Run executes a shell command on the rover.
func (e *Executor) Run(command string) (string, error) {
	if e.DryRun {
		return fmt.Sprintf("[DRY-RUN] Would execute: %s", command), nil
	}
	return e.run(command)
}

// RunSudo executes a shell command on the rover with sudo.
func (e *Executor) RunSudo(command string) (string, error) {
	if e.DryRun {
		return fmt.Sprintf("[DRY-RUN] Would execute (sudo): %s", command), nil
	}
	return e.run("sudo " + command)
}

func (e *Executor) run(command string) (string, error) {
	e.Logger.Debugf("Executing: %s (rover=%s, local=%v)", command, e.Rover, e.IsLocal())

	var output []byte
	var err error
	if e.IsLocal() {
		output, err = exec.Command("sh", "-c", command).CombinedOutput()
	} else {
		output, err = e.buildSSHCommand(command).CombinedOutput()
	}
	if err != nil {
		e.Logger.Debugf("Command failed: %v, output: %s", err, output)
	}
	return string(output), err
}

// CopyFile copies a local file to the rover.
func (e *Executor) CopyFile(src, dst string) error {
	if e.DryRun {
		return nil
	}

	e.Logger.Debugf("Copying file: %s -> %s (rover=%s, local=%v)", src, dst, e.Rover, e.IsLocal())

	var err error
	if e.IsLocal() {
		err = e.copyLocal(src, dst)
	} else {
		err = e.copySSH(src, dst)
	}
	if err != nil {
		e.Logger.Debugf("Copy failed: %v", err)
	}
	return err
}

// WriteFile writes content to a file on the rover.
func (e *Executor) WriteFile(path, content string) error {
	if e.DryRun {
		return nil
	}

	if e.IsLocal() {
		return os.WriteFile(path, []byte(content), 0644)
	}

	cmd := e.buildSSHCommand(fmt.Sprintf("cat > %s", path))
	cmd.Stdin = strings.NewReader(content)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ssh write failed: %w, stderr: %s", err, stderr.String())
	}
	return nil
}

func (e *Executor) buildSSHCommand(command string) *exec.Cmd {
	args := e.sshArgs()
	args = append(args, e.target(), command)
	return exec.Command("ssh", args...)
}

// sshArgs builds the common ssh/scp option list. Host key checking is
// disabled: rovers are reimaged often and live on a closed field network.
func (e *Executor) sshArgs() []string {
	args := []string{}
	if e.SSHKey != "" {
		args = append(args, "-i", e.SSHKey)
	}
	if e.IdentityAgent != "" {
		args = append(args, "-o", fmt.Sprintf("IdentityAgent=%s", e.IdentityAgent))
	}
	args = append(args,
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "LogLevel=ERROR",
	)
	return args
}

func (e *Executor) target() string {
	target := e.Rover
	if e.SSHUser != "" && !strings.Contains(target, "@") {
		target = fmt.Sprintf("%s@%s", e.SSHUser, target)
	}
	return target
}

func (e *Executor) copyLocal(src, dst string) error {
	needsSudo := strings.HasPrefix(dst, "/usr") ||
		strings.HasPrefix(dst, "/etc") ||
		(strings.HasPrefix(dst, "/var") && !strings.HasPrefix(dst, "/var/folders"))

	if needsSudo {
		return exec.Command("sudo", "cp", src, dst).Run()
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

func (e *Executor) copySSH(src, dst string) error {
	// scp into /tmp first, then move into place with sudo if the
	// destination needs it.
	tempPath := fmt.Sprintf("/tmp/abridge-copy-%d", time.Now().Unix())

	args := e.sshArgs()
	args = append(args, src, fmt.Sprintf("%s:%s", e.target(), tempPath))

	e.Logger.Debugf("SCP command: scp %v", args)
	if err := exec.Command("scp", args...).Run(); err != nil {
		return fmt.Errorf("scp failed: %w", err)
	}

	if strings.HasPrefix(dst, "/usr") || strings.HasPrefix(dst, "/etc") || strings.HasPrefix(dst, "/var") {
		_, err := e.RunSudo(fmt.Sprintf("mv %s %s", tempPath, dst))
		return err
	}
	_, err := e.Run(fmt.Sprintf("mv %s %s", tempPath, dst))
	return err
}
