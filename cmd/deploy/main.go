// Command abridge-deploy installs and upgrades the abridge service across a
// fleet of swarmie rovers. Rovers are reached over ssh; targets come from
// flags or from a fleet config file.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/swarmie-robotics/abridge/internal/deploy"
	"github.com/swarmie-robotics/abridge/internal/fsutil"
	"github.com/swarmie-robotics/abridge/internal/httputil"
	"github.com/swarmie-robotics/abridge/internal/version"
)

// apiClient builds the HTTP client used against rover status APIs.
func apiClient() *httputil.StandardClient {
	return httputil.NewStandardClient(&http.Client{Timeout: 5 * time.Second})
}

var debugMode bool

// debugLogger routes executor debug output to stderr when --debug is set.
type debugLogger struct{}

func (debugLogger) Debugf(format string, args ...interface{}) {
	if debugMode {
		log.Printf("[debug] "+format, args...)
	}
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "install":
		handleInstall(args)
	case "upgrade":
		handleUpgrade(args)
	case "rollback":
		handleRollback(args)
	case "health":
		handleHealth(args)
	case "version":
		fmt.Printf("abridge-deploy version %s (%s)\n", version.Version, version.GitSHA)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`abridge-deploy - Deployment manager for the swarmie abridge service

Usage: abridge-deploy <command> [options]

Commands:
  install    Install the abridge service on a rover
  upgrade    Upgrade abridge to a new binary
  rollback   Roll back to the previous binary
  health     Check the health of a running rover
  version    Show abridge-deploy version
  help       Show this help message

Common Flags:
  --rover <name>      Rover entry from the fleet config
  --fleet <file>      Fleet config file (default: fleet.json)
  --target <host>     Target host when not using a fleet config
  --ssh-user <user>   SSH user (default: swarmie)
  --ssh-key <path>    SSH private key path
  --dry-run           Show what would be done without executing
  --debug             Enable debug logging

Examples:
  # Install on a rover listed in fleet.json
  abridge-deploy install --rover achilles --binary ./abridge-linux-arm

  # Upgrade a rover addressed directly
  abridge-deploy upgrade --target 192.168.1.40 --binary ./abridge-linux-arm

  # Health check
  abridge-deploy health --rover achilles`)
}

// target is a resolved deployment target: where to ssh and where the
// status API answers.
type target struct {
	Name    string
	Host    string
	SSHUser string
	SSHKey  string
	APIPort int
	Device  string
}

// targetFlags registers the shared target-selection flags on fs.
type targetFlags struct {
	rover   *string
	fleet   *string
	host    *string
	sshUser *string
	sshKey  *string
	apiPort *int
	dryRun  *bool
	debug   *bool
}

func newTargetFlags(fs *flag.FlagSet) *targetFlags {
	return &targetFlags{
		rover:   fs.String("rover", "", "Rover name from the fleet config"),
		fleet:   fs.String("fleet", defaultFleetPath, "Fleet config file"),
		host:    fs.String("target", "", "Target host (hostname, IP or user@host)"),
		sshUser: fs.String("ssh-user", defaultSSHUser, "SSH user"),
		sshKey:  fs.String("ssh-key", "", "SSH private key path"),
		apiPort: fs.Int("api-port", defaultAPIPort, "Status API port"),
		dryRun:  fs.Bool("dry-run", false, "Show what would be done"),
		debug:   fs.Bool("debug", false, "Enable debug logging"),
	}
}

// resolve picks the deployment target: a named fleet config entry when
// --rover is set, the --target flags otherwise.
func (tf *targetFlags) resolve(fsys fsutil.FileSystem) (target, error) {
	debugMode = *tf.debug

	if *tf.rover != "" {
		cfg, err := LoadFleetConfig(fsys, *tf.fleet)
		if err != nil {
			return target{}, fmt.Errorf("failed to load fleet config: %w", err)
		}
		rover, ok := cfg.Rover(*tf.rover)
		if !ok {
			return target{}, fmt.Errorf("rover %q not found in %s", *tf.rover, *tf.fleet)
		}
		t := target{
			Name:    rover.Name,
			Host:    rover.Host,
			SSHUser: rover.SSHUser,
			SSHKey:  rover.SSHKey,
			APIPort: rover.APIPort,
			Device:  rover.Device,
		}
		if t.SSHUser == "" {
			t.SSHUser = *tf.sshUser
		}
		if t.APIPort == 0 {
			t.APIPort = *tf.apiPort
		}
		if t.Device == "" {
			t.Device = defaultDevice
		}
		return t, nil
	}

	if *tf.host == "" {
		return target{}, fmt.Errorf("either --rover or --target is required")
	}
	return target{
		Name:    *tf.host,
		Host:    *tf.host,
		SSHUser: *tf.sshUser,
		SSHKey:  *tf.sshKey,
		APIPort: *tf.apiPort,
		Device:  defaultDevice,
	}, nil
}

// executor builds the ssh/local command runner for a resolved target.
func (tf *targetFlags) executor(t target) *deploy.Executor {
	exec := deploy.NewExecutor(t.Host, t.SSHUser, t.SSHKey, "", *tf.dryRun)
	exec.SetLogger(debugLogger{})
	return exec
}

func handleInstall(args []string) {
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	tf := newTargetFlags(fs)
	binaryPath := fs.String("binary", "", "Path to the abridge binary (required)")
	device := fs.String("device", "", "Serial device on the rover (overrides fleet config)")
	fs.Parse(args)

	if *binaryPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --binary flag is required (e.g., --binary ./abridge-linux-arm)")
		fs.Usage()
		os.Exit(1)
	}

	t, err := tf.resolve(fsutil.OSFileSystem{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *device != "" {
		t.Device = *device
	}

	installer := &Installer{
		RoverName:  t.Name,
		Device:     t.Device,
		BinaryPath: *binaryPath,
		FS:         fsutil.OSFileSystem{},
		Exec:       tf.executor(t),
	}

	if err := installer.Install(); err != nil {
		fmt.Fprintf(os.Stderr, "Installation failed: %v\n", err)
		os.Exit(1)
	}
}

func handleUpgrade(args []string) {
	fs := flag.NewFlagSet("upgrade", flag.ExitOnError)
	tf := newTargetFlags(fs)
	binaryPath := fs.String("binary", "", "Path to the new abridge binary (required)")
	noBackup := fs.Bool("no-backup", false, "Skip backup before upgrade")
	fs.Parse(args)

	if *binaryPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --binary flag is required (e.g., --binary ./abridge-linux-arm)")
		fs.Usage()
		os.Exit(1)
	}

	t, err := tf.resolve(fsutil.OSFileSystem{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	upgrader := &Upgrader{
		RoverName:  t.Name,
		APIHost:    apiHost(t.Host),
		APIPort:    t.APIPort,
		BinaryPath: *binaryPath,
		NoBackup:   *noBackup,
		FS:         fsutil.OSFileSystem{},
		Exec:       tf.executor(t),
		HTTP:       apiClient(),
	}

	if err := upgrader.Upgrade(); err != nil {
		fmt.Fprintf(os.Stderr, "Upgrade failed: %v\n", err)
		os.Exit(1)
	}
}

func handleRollback(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	tf := newTargetFlags(fs)
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	fs.Parse(args)

	t, err := tf.resolve(fsutil.OSFileSystem{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	rollback := &Rollback{
		RoverName: t.Name,
		AssumeYes: *yes || *tf.dryRun,
		Exec:      tf.executor(t),
	}

	if err := rollback.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Rollback failed: %v\n", err)
		os.Exit(1)
	}
}

func handleHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	tf := newTargetFlags(fs)
	fs.Parse(args)

	t, err := tf.resolve(fsutil.OSFileSystem{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	monitor := &Monitor{
		APIHost: apiHost(t.Host),
		APIPort: t.APIPort,
		Exec:    tf.executor(t),
		HTTP:    apiClient(),
	}

	health, err := monitor.CheckHealth()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}

	if !health.Healthy {
		fmt.Printf("Rover %s is UNHEALTHY: %s\n%s\n", t.Name, health.Message, health.Details)
		os.Exit(1)
	}
	fmt.Printf("Rover %s is HEALTHY\n%s\n", t.Name, health.Details)
}
