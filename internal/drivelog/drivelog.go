// Package drivelog persists per-run odometry and motor command history to
// SQLite so drive behavior can be replayed and inspected after a field run.
package drivelog

import (
	"compress/gzip"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/swarmie-robotics/abridge/internal/drive"
	"github.com/swarmie-robotics/abridge/internal/httputil"
	"github.com/swarmie-robotics/abridge/internal/security"
	"github.com/swarmie-robotics/abridge/internal/telemetry"
)

// ErrNoActiveRun is returned by the Record methods before BeginRun.
var ErrNoActiveRun = errors.New("drivelog: no active run")

type DB struct {
	*sql.DB

	// runID and rover are set once by BeginRun before the bridge starts
	// ticking.
	runID string
	rover string
}

func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id            TEXT PRIMARY KEY,
			rover             TEXT,
			started_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS odometry (
			run_id            TEXT,
			x                 DOUBLE,
			y                 DOUBLE,
			heading           DOUBLE,
			linear_vel        DOUBLE,
			angular_vel       DOUBLE,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
		CREATE TABLE IF NOT EXISTS motor_commands (
			run_id            TEXT,
			left_duty         BIGINT,
			right_duty        BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{DB: db}, nil
}

// BeginRun registers a new run for the named rover and makes it the target
// of subsequent Record calls.
func (db *DB) BeginRun(rover string) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec("INSERT INTO runs (run_id, rover) VALUES (?, ?)", id, rover)
	if err != nil {
		return "", err
	}
	db.runID = id
	db.rover = rover
	return id, nil
}

// RunID returns the active run id, empty before BeginRun.
func (db *DB) RunID() string {
	return db.runID
}

func (db *DB) RecordOdometry(o telemetry.Odometry) error {
	if db.runID == "" {
		return ErrNoActiveRun
	}
	_, err := db.Exec(
		`INSERT INTO odometry (run_id, x, y, heading, linear_vel, angular_vel)
		VALUES (?, ?, ?, ?, ?, ?)`,
		db.runID, o.Position.X, o.Position.Y, o.Orientation.Yaw(),
		o.LinearVelocity.X, o.AngularVelocity.Z,
	)
	if err != nil {
		return err
	}
	return nil
}

func (db *DB) RecordMotorCommand(cmd drive.MotorCommand) error {
	if db.runID == "" {
		return ErrNoActiveRun
	}
	_, err := db.Exec(
		"INSERT INTO motor_commands (run_id, left_duty, right_duty) VALUES (?, ?, ?)",
		db.runID, cmd.Left, cmd.Right,
	)
	if err != nil {
		return err
	}
	return nil
}

// Pose is one recorded odometry row.
type Pose struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Heading    float64 `json:"heading"`
	LinearVel  float64 `json:"linear_vel"`
	AngularVel float64 `json:"angular_vel"`
	Stamp      string  `json:"stamp"`
}

func (p *Pose) String() string {
	return fmt.Sprintf("X: %f, Y: %f, Heading: %f, LinearVel: %f, AngularVel: %f",
		p.X, p.Y, p.Heading, p.LinearVel, p.AngularVel)
}

// RecentOdometry returns the newest poses of the active run, newest first.
func (db *DB) RecentOdometry(limit int) ([]Pose, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	rows, err := db.Query(
		`SELECT x, y, heading, linear_vel, angular_vel, timestamp FROM odometry
		WHERE run_id = ? ORDER BY timestamp DESC LIMIT ?`,
		db.runID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var poses []Pose
	for rows.Next() {
		var p Pose
		if err := rows.Scan(&p.X, &p.Y, &p.Heading, &p.LinearVel, &p.AngularVel, &p.Stamp); err != nil {
			return nil, err
		}
		poses = append(poses, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return poses, nil
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://abridge.db", db.DB, &tailsql.DBOptions{
		Label: "Drive log",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("export", "Export the active run's odometry as CSV", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.FormValue("file")
		if name == "" {
			name = fmt.Sprintf("%s-odometry-%d.csv", security.SanitizeFilename(db.rover), time.Now().Unix())
		}
		path, rows, err := db.ExportOdometryCSV(name)
		if err != nil {
			if errors.Is(err, ErrNoActiveRun) {
				httputil.BadRequest(w, "no active run")
				return
			}
			httputil.InternalServerError(w, fmt.Sprintf("export failed: %v", err))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"path": path,
			"rows": rows,
		})
	}))

	debug.Handle("backup", "Create and download a backup of the drive log now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("abridge-backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}

		// close the backup file after sending it
		// and remove it from the filesystem
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()

		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
