package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/swarmie-robotics/abridge/internal/httputil"
	"github.com/swarmie-robotics/abridge/internal/testutil"
)

const healthyBody = `{"status":"ok","version":"1.2.0","git_sha":"abc1234","uptime_seconds":12}`

func testUpgrader(t *testing.T, runner *fakeRunner, client *httputil.MockHTTPClient) *Upgrader {
	t.Helper()
	return &Upgrader{
		RoverName:  "achilles",
		APIHost:    "192.168.1.40",
		APIPort:    8080,
		BinaryPath: "abridge-linux-arm",
		FS:         testBinaryFS(t, 0755),
		Exec:       runner,
		HTTP:       client,
	}
}

func TestUpgrader_Upgrade(t *testing.T) {
	runner := newFakeRunner().
		on("test -f "+servicePath, "exists").
		on("systemctl is-active", "active")
	client := httputil.NewMockHTTPClient().
		AddResponse(200, healthyBody). // currentVersion
		AddResponse(200, healthyBody)  // verifyHealth

	u := testUpgrader(t, runner, client)
	testutil.AssertNoError(t, u.Upgrade())

	commands := runner.allCommands()
	testutil.AssertContains(t, commands, "mkdir -p /var/lib/abridge/backups/")
	testutil.AssertContains(t, commands, "cp /usr/local/bin/abridge /var/lib/abridge/backups/")
	testutil.AssertContains(t, commands, "systemctl stop abridge.service")
	testutil.AssertContains(t, commands, "mv /tmp/abridge-new /usr/local/bin/abridge")
	testutil.AssertContains(t, commands, "systemctl start abridge.service")
	testutil.AssertContains(t, commands, "systemctl is-active abridge.service")

	// The backup records the version the rover reported before upgrade.
	var versionInfo string
	for path, content := range runner.writes {
		if strings.HasSuffix(path, "version.txt") {
			versionInfo = content
		}
	}
	testutil.AssertContains(t, versionInfo, "Version: 1.2.0")

	if got := client.RequestCount(); got != 2 {
		t.Errorf("API requests = %d, want 2 (version probe + health check)", got)
	}

	// Stop must come after the backup copy.
	stopIdx, backupIdx := -1, -1
	for i, c := range runner.commands {
		if strings.Contains(c, "systemctl stop") && stopIdx == -1 {
			stopIdx = i
		}
		if strings.Contains(c, "cp /usr/local/bin/abridge") && backupIdx == -1 {
			backupIdx = i
		}
	}
	if backupIdx == -1 || stopIdx == -1 || backupIdx > stopIdx {
		t.Errorf("backup (index %d) should run before stop (index %d)", backupIdx, stopIdx)
	}
}

func TestUpgrader_Upgrade_NotInstalled(t *testing.T) {
	runner := newFakeRunner().on("test -f "+servicePath, "not found")

	u := testUpgrader(t, runner, httputil.NewMockHTTPClient())
	err := u.Upgrade()
	testutil.AssertError(t, err)
	testutil.AssertContains(t, err.Error(), "not installed")
}

func TestUpgrader_Upgrade_MissingBinary(t *testing.T) {
	u := testUpgrader(t, newFakeRunner(), httputil.NewMockHTTPClient())
	u.BinaryPath = "missing-binary"

	err := u.Upgrade()
	testutil.AssertError(t, err)
	testutil.AssertContains(t, err.Error(), "binary not found")
}

func TestUpgrader_Upgrade_NoBackup(t *testing.T) {
	runner := newFakeRunner().
		on("test -f "+servicePath, "exists").
		on("systemctl is-active", "active")
	client := httputil.NewMockHTTPClient().
		AddResponse(200, healthyBody).
		AddResponse(200, healthyBody)

	u := testUpgrader(t, runner, client)
	u.NoBackup = true

	testutil.AssertNoError(t, u.Upgrade())

	if runner.ran("backups") {
		t.Errorf("backup commands ran despite NoBackup:\n%s", runner.allCommands())
	}
}

func TestUpgrader_Upgrade_UnhealthyAfterRestart(t *testing.T) {
	runner := newFakeRunner().
		on("test -f "+servicePath, "exists").
		on("systemctl is-active", "active")
	client := httputil.NewMockHTTPClient().
		AddResponse(200, healthyBody).
		AddResponse(503, `{"error":"starting"}`)

	u := testUpgrader(t, runner, client)
	err := u.Upgrade()
	testutil.AssertError(t, err)
	testutil.AssertContains(t, err.Error(), "health check failed")
}

func TestUpgrader_Upgrade_ServiceNotActiveAfterRestart(t *testing.T) {
	runner := newFakeRunner().
		on("test -f "+servicePath, "exists").
		on("systemctl is-active", "failed")
	client := httputil.NewMockHTTPClient().AddResponse(200, healthyBody)

	u := testUpgrader(t, runner, client)
	err := u.Upgrade()
	testutil.AssertError(t, err)
	testutil.AssertContains(t, err.Error(), "not active")
}

func TestUpgrader_CurrentVersion_Degrades(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*httputil.MockHTTPClient)
	}{
		{"connection refused", func(c *httputil.MockHTTPClient) {
			c.AddErrorResponse(errors.New("connection refused"))
		}},
		{"non-200", func(c *httputil.MockHTTPClient) {
			c.AddResponse(502, "bad gateway")
		}},
		{"bad json", func(c *httputil.MockHTTPClient) {
			c.AddResponse(200, "not json")
		}},
		{"empty version", func(c *httputil.MockHTTPClient) {
			c.AddResponse(200, `{"status":"ok"}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := httputil.NewMockHTTPClient()
			tt.setup(client)

			u := testUpgrader(t, newFakeRunner(), client)
			if got := u.currentVersion(); got != "unknown" {
				t.Errorf("currentVersion() = %q, want unknown", got)
			}
		})
	}
}
