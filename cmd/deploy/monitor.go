package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/swarmie-robotics/abridge/internal/httputil"
)

// Monitor checks the health of a running rover: the systemd unit, recent
// logs, and the status API.
type Monitor struct {
	APIHost string
	APIPort int
	Exec    Runner
	HTTP    httputil.HTTPClient
}

// HealthStatus is the health check result.
type HealthStatus struct {
	Healthy bool
	Message string
	Details string
}

// CheckHealth runs every check and reports the first failure as Message.
func (m *Monitor) CheckHealth() (*HealthStatus, error) {
	health := &HealthStatus{Healthy: true}
	var checks []string

	fail := func(msg, check string) {
		health.Healthy = false
		if health.Message == "" {
			health.Message = msg
		}
		checks = append(checks, check)
	}

	// Check 1: Service is running
	output, err := m.Exec.RunSudo(fmt.Sprintf("systemctl is-active %s.service", serviceName))
	if err != nil || strings.TrimSpace(output) != "active" {
		fail("Service is not running", "✗ Service: NOT RUNNING")
	} else {
		checks = append(checks, "✓ Service: RUNNING")
	}

	// Check 2: Service start time (crash loops reset it constantly)
	uptimeOutput, err := m.Exec.RunSudo(fmt.Sprintf("systemctl show %s.service --property=ActiveEnterTimestamp --value", serviceName))
	if err == nil {
		checks = append(checks, fmt.Sprintf("✓ Started: %s", strings.TrimSpace(uptimeOutput)))
	}

	// Check 3: Recent errors in logs
	logsOutput, err := m.Exec.RunSudo(fmt.Sprintf("journalctl -u %s.service -n 20 --no-pager", serviceName))
	if err == nil {
		errorCount := strings.Count(strings.ToLower(logsOutput), "error")
		if errorCount > 5 {
			fail(fmt.Sprintf("Too many errors in logs (%d)", errorCount),
				fmt.Sprintf("✗ Logs: %d errors found", errorCount))
		} else {
			checks = append(checks, fmt.Sprintf("✓ Logs: %d errors (acceptable)", errorCount))
		}
	}

	// Check 4: Status API is responding
	port := m.APIPort
	if port == 0 {
		port = defaultAPIPort
	}
	apiURL := fmt.Sprintf("http://%s:%d/api/health", m.APIHost, port)

	resp, err := m.HTTP.Get(apiURL)
	if err != nil {
		fail("Status API not responding", "✗ API: NOT RESPONDING")
	} else {
		defer resp.Body.Close()
		if resp.StatusCode == 200 {
			checks = append(checks, "✓ API: RESPONDING")

			var body struct {
				Status        string `json:"status"`
				Version       string `json:"version"`
				UptimeSeconds int    `json:"uptime_seconds"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
				if body.Version != "" {
					checks = append(checks, fmt.Sprintf("  Version: %s", body.Version))
				}
				checks = append(checks, fmt.Sprintf("  Uptime: %ds", body.UptimeSeconds))
				if body.Status != "ok" {
					fail(fmt.Sprintf("Service reports status %q", body.Status),
						fmt.Sprintf("✗ API: status %q", body.Status))
				}
			}
		} else {
			fail(fmt.Sprintf("API returned status %d", resp.StatusCode),
				fmt.Sprintf("✗ API: Status %d", resp.StatusCode))
		}
	}

	// Check 5: Drive log database exists
	dbPath := fmt.Sprintf("%s/drivelog.db", dataDir)
	dbCheck, err := m.Exec.RunSudo(fmt.Sprintf("test -f %s && echo 'exists' || echo 'missing'", dbPath))
	if err == nil && strings.TrimSpace(dbCheck) == "exists" {
		sizeOutput, err := m.Exec.RunSudo(fmt.Sprintf("du -h %s | cut -f1", dbPath))
		if err == nil {
			checks = append(checks, fmt.Sprintf("✓ Drive log: %s", strings.TrimSpace(sizeOutput)))
		} else {
			checks = append(checks, "✓ Drive log: EXISTS")
		}
	} else {
		// Not fatal: a rover that has never driven has no log yet.
		checks = append(checks, "⊘ Drive log: none yet")
	}

	health.Details = strings.Join(checks, "\n")
	if health.Healthy {
		health.Message = "All checks passed"
	}
	return health, nil
}
