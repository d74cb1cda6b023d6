package drivelog

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/swarmie-robotics/abridge/internal/security"
)

// defaultExportDir is the base directory for all CSV exports. Exports are
// restricted to a single directory so arbitrary caller paths cannot write
// outside controlled locations.
var defaultExportDir = func() string {
	tmp := os.TempDir()
	abs, err := filepath.Abs(tmp)
	if err != nil {
		log.Printf("export: could not resolve absolute temp dir from %q: %v", tmp, err)
		return tmp
	}
	return filepath.Clean(abs)
}()

// safeExportPath constructs a safe absolute path for an export file from a
// user-supplied path string. Only the final path component is used, it is
// sanitized, and the result is validated with the shared security helper.
func safeExportPath(userPath string) (string, error) {
	if userPath == "" {
		return "", fmt.Errorf("empty export path")
	}
	base := filepath.Base(userPath)
	if base == "." || base == ".." || base == "" {
		return "", fmt.Errorf("invalid export filename")
	}
	base = security.SanitizeFilename(base)

	joined := filepath.Join(defaultExportDir, base)
	absPath, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("cannot resolve export path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)

	baseDirAbs, err := filepath.Abs(defaultExportDir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve export base directory: %w", err)
	}
	baseDirAbs = filepath.Clean(baseDirAbs)
	if !strings.HasPrefix(cleanPath, baseDirAbs+string(os.PathSeparator)) && cleanPath != baseDirAbs {
		return "", fmt.Errorf("export path escapes base directory")
	}

	if err := security.ValidateExportPath(cleanPath); err != nil {
		log.Printf("Security: rejected export path %s (from %s): %v", cleanPath, userPath, err)
		return "", fmt.Errorf("invalid export path: %w", err)
	}
	return cleanPath, nil
}

// ExportOdometryCSV writes every odometry row of the active run, oldest
// first, to a CSV file named by userPath and anchored under the system temp
// directory. It returns the path actually written and the row count.
func (db *DB) ExportOdometryCSV(userPath string) (string, int, error) {
	if db.runID == "" {
		return "", 0, ErrNoActiveRun
	}
	safePath, err := safeExportPath(userPath)
	if err != nil {
		return "", 0, err
	}

	rows, err := db.Query(
		`SELECT x, y, heading, linear_vel, angular_vel, timestamp FROM odometry
		WHERE run_id = ? ORDER BY timestamp`,
		db.runID,
	)
	if err != nil {
		return "", 0, err
	}
	defer rows.Close()

	f, err := os.Create(safePath)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"x", "y", "heading", "linear_vel", "angular_vel", "timestamp"}); err != nil {
		return "", 0, err
	}

	n := 0
	for rows.Next() {
		var p Pose
		if err := rows.Scan(&p.X, &p.Y, &p.Heading, &p.LinearVel, &p.AngularVel, &p.Stamp); err != nil {
			return "", n, err
		}
		rec := []string{
			strconv.FormatFloat(p.X, 'f', 6, 64),
			strconv.FormatFloat(p.Y, 'f', 6, 64),
			strconv.FormatFloat(p.Heading, 'f', 6, 64),
			strconv.FormatFloat(p.LinearVel, 'f', 6, 64),
			strconv.FormatFloat(p.AngularVel, 'f', 6, 64),
			p.Stamp,
		}
		if err := w.Write(rec); err != nil {
			return "", n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return "", n, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", n, err
	}
	log.Printf("Exported %d odometry rows to %s", n, safePath)
	return safePath, n, nil
}
