// Command abridge bridges a swarm rover's motor controller, reachable over
// a USB serial link, to the MQTT control bus: it polls the controller for
// telemetry, publishes the decoded state, and translates bus commands into
// the controller's line protocol. It also serves a small status API with
// live state, drive history and admin debug routes.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/swarmie-robotics/abridge/internal/api"
	"github.com/swarmie-robotics/abridge/internal/bridge"
	"github.com/swarmie-robotics/abridge/internal/bus"
	"github.com/swarmie-robotics/abridge/internal/config"
	"github.com/swarmie-robotics/abridge/internal/drive"
	"github.com/swarmie-robotics/abridge/internal/drivelog"
	"github.com/swarmie-robotics/abridge/internal/monitoring"
	"github.com/swarmie-robotics/abridge/internal/serialmux"
	"github.com/swarmie-robotics/abridge/internal/telemetry"
	"github.com/swarmie-robotics/abridge/internal/timeutil"
	"github.com/swarmie-robotics/abridge/internal/version"
)

var (
	devMode      = flag.Bool("dev", false, "Run against a simulated motor controller")
	listen       = flag.String("listen", ":8080", "Status API listen address")
	device       = flag.String("device", "/dev/ttyUSB0", "Serial device of the motor controller (ignored in dev mode)")
	baud         = flag.Int("baud", 115200, "Serial baud rate")
	roverName    = flag.String("name", "", "Published rover name (defaults to the hostname)")
	broker       = flag.String("broker", "", "MQTT broker URL (defaults to $MQTT_BROKER, then tcp://localhost:1883)")
	dbFile       = flag.String("db", "abridge.db", "Drive log database path (empty disables the drive log)")
	tuningPath   = flag.String("config", "", "Tuning config JSON path (defaults apply when omitted)")
	fixtures     = flag.String("fixtures", "fixtures.txt", "Telemetry fixture file for dev mode")
	displayUnits = flag.String("units", "mps", "Display units for the status API (mps, mph, kmph, kph)")
	verbose      = flag.Bool("verbose", false, "Enable debug logging")
)

// defaultFixtureLines simulate one controller dump when no fixture file is
// available in dev mode.
var defaultFixtureLines = []string{
	"GRF,1,0.52",
	"GRW,1,-0.10",
	"IMU,1,0.02,0.00,9.81,0.001,0.002,0.003,0.01,0.02,1.57",
	"ODOM,1,1.2,0.4,1.57,12.0,0.0,0.05",
	"USL,1,150.0",
	"USC,1,310.0",
	"USR,1,96.5",
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// brokerURL resolves the broker address from the flag, the environment, and
// the local default, in that order.
func brokerURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return envOr("MQTT_BROKER", "tcp://localhost:1883")
}

// fixtureLines loads controller lines for the dev mux, falling back to the
// built-in dump when the file is missing.
func fixtureLines(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("No fixture file at %s, using built-in telemetry: %v", path, err)
		return defaultFixtureLines
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return defaultFixtureLines
	}
	return lines
}

func main() {
	flag.Parse()

	if *verbose {
		monitoring.SetDebugLogger(log.Printf)
	}
	if err := godotenv.Load(); err != nil {
		monitoring.Debugf("No .env file loaded: %v", err)
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !*devMode && *device == "" {
		log.Fatal("Serial device is required")
	}

	name := *roverName
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			log.Fatalf("No name selected and hostname lookup failed: %v", err)
		}
		name = hostname
		log.Printf("No name selected, defaulting to hostname %q", name)
	}

	log.Printf("%s: abridge %s (%s) starting", name, version.Version, version.GitSHA)

	cfg := config.EmptyTuningConfig()
	if *tuningPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*tuningPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	clock := timeutil.RealClock{}

	var mux serialmux.SerialMuxInterface
	if *devMode {
		mux = serialmux.NewMockSerialMux(fixtureLines(*fixtures), cfg.GetPollInterval())
		log.Printf("Dev mode: simulating the motor controller")
	} else {
		var err error
		mux, err = serialmux.NewRealSerialMux(*device, serialmux.PortOptions{BaudRate: *baud})
		if err != nil {
			log.Fatalf("Failed to open %s: %v", *device, err)
		}
		// Give the controller time to finish booting before polling it.
		settle := cfg.GetStartupSettle()
		log.Printf("Waiting %v for the controller on %s to settle", settle, *device)
		clock.Sleep(settle)
	}
	defer mux.Close()

	var controlBus bus.Bus
	if *devMode {
		controlBus = bus.NewRecorder()
	} else {
		var err error
		controlBus, err = bus.ConnectMQTT(bus.Options{
			BrokerURL: brokerURL(*broker),
			ClientID:  name + "_ABRIDGE",
			Username:  os.Getenv("MQTT_USERNAME"),
			Password:  os.Getenv("MQTT_PASSWORD"),
		})
		if err != nil {
			log.Fatalf("Failed to connect to MQTT broker: %v", err)
		}
	}
	defer controlBus.Close()

	var driveLog *drivelog.DB
	if *dbFile != "" {
		var err error
		driveLog, err = drivelog.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open drive log: %v", err)
		}
		defer driveLog.Close()

		runID, err := driveLog.BeginRun(name)
		if err != nil {
			log.Fatalf("Failed to begin drive log run: %v", err)
		}
		log.Printf("Drive log run %s", runID)
	}

	aggregator := telemetry.NewAggregator(name)
	limiter := drive.NewLimiter(cfg.Limits(), cfg.Gains())

	b := bridge.New(bridge.Options{
		Name:              name,
		Transport:         mux,
		Bus:               controlBus,
		Aggregator:        aggregator,
		Limiter:           limiter,
		Clock:             clock,
		Log:               driveLog,
		PollInterval:      cfg.GetPollInterval(),
		HeartbeatInterval: cfg.GetHeartbeatInterval(),
	})

	if err := b.Subscribe(); err != nil {
		log.Fatalf("Failed to subscribe to command topics: %v", err)
	}
	b.AnnounceStartup()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("Serial monitor failed: %v", err)
			stop()
		}
		log.Print("monitor routine terminated")
	}()

	// the bridge loop: poll, aggregate, drive, publish
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := b.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Bridge loop failed: %v", err)
			stop()
		}
		log.Print("bridge routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		apiConfig := api.Config{
			Name:              name,
			Device:            *device,
			Broker:            brokerURL(*broker),
			MaxLinearVel:      cfg.GetMaxLinearVel(),
			MaxAngularVel:     cfg.GetMaxAngularVel(),
			MaxMotorCmd:       cfg.GetMaxMotorCmd(),
			Kp:                cfg.GetKp(),
			Ki:                cfg.GetKi(),
			PollInterval:      cfg.GetPollInterval().String(),
			HeartbeatInterval: cfg.GetHeartbeatInterval().String(),
		}

		httpMux := api.NewServer(b, driveLog, apiConfig, *displayUnits).ServeMux()

		mux.AttachAdminRoutes(httpMux)
		if driveLog != nil {
			driveLog.AttachAdminRoutes(httpMux)
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(httpMux),
		}

		go func() {
			log.Printf("Status API listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
