// SuperBit - wireless command loop for the catapult robot.
// Advertises a command service, accepts one remote at a time and turns its
// writes into motor, LED and servo sequences.
package main

import (
	"context"
	"errors"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"tinygo.org/x/bluetooth"

	"github.com/teslashibe/go-superbit/internal/config"
	"github.com/teslashibe/go-superbit/internal/log"
	"github.com/teslashibe/go-superbit/pkg/actuator"
	"github.com/teslashibe/go-superbit/pkg/controller"
	"github.com/teslashibe/go-superbit/pkg/protocol"
	"github.com/teslashibe/go-superbit/pkg/sequencer"
	"github.com/teslashibe/go-superbit/pkg/session"
	"github.com/teslashibe/go-superbit/pkg/web"
)

func main() {
	cfg := parseFlags()

	log.InitWithOptions(log.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	board, closeBoard, err := openBoard(cfg.Board)
	if err != nil {
		stdlog.Fatalf("❌ Board error: %v", err)
	}
	defer closeBoard()

	seq := sequencer.New(board, actuator.RealClock{},
		sequencer.WithDrivePulse(cfg.Motion.DrivePulse()),
		sequencer.WithDriveSpeed(cfg.Motion.DriveSpeed),
		sequencer.WithArmReadyPause(cfg.Motion.ArmReadyPause()),
		sequencer.WithServoPositions(cfg.Motion.ServoRest, cfg.Motion.ServoReady, cfg.Motion.ServoFire),
		sequencer.WithLogger(log.With("component", "sequencer")),
	)

	sessionOpts := []session.Option{
		session.WithDeviceName(cfg.Device.Name),
		session.WithServiceID(cfg.Device.ServiceID),
		session.WithAdvertiseInterval(cfg.Session.AdvertiseInterval()),
		session.WithEventQueue(cfg.Session.EventQueue),
		session.WithLogger(log.With("component", "session")),
	}

	// The controller is created after the dashboard so it can publish to it.
	var ctrl *controller.Controller
	var server *web.Server
	if cfg.HTTP.Dashboard || cfg.Transport == config.TransportWS {
		server = web.NewServer(func() protocol.StatusData { return ctrl.Status() },
			web.WithPort(cfg.HTTP.Port),
			web.WithLogger(log.With("component", "web")),
		)
	}

	var transport session.Transport
	switch cfg.Transport {
	case config.TransportWS:
		ws := session.NewWSTransport(sessionOpts...)
		ws.RegisterRoutes(server.App())
		transport = ws
	default:
		transport = session.NewBLETransport(session.NewTinyGoPeripheral(bluetooth.DefaultAdapter), sessionOpts...)
	}
	defer transport.Close()

	notify, err := controller.ParseNotifyPolicy(cfg.Session.Notify)
	if err != nil {
		stdlog.Fatalf("❌ Configuration error: %v", err)
	}

	ctrlOpts := []controller.Option{
		controller.WithDeviceName(cfg.Device.Name),
		controller.WithNotifyPolicy(notify),
		controller.WithAdvertiseRetry(cfg.Session.AdvertiseRetry()),
		controller.WithLogger(log.With("component", "controller")),
	}
	if ind, ok := board.(actuator.Indicator); ok {
		ctrlOpts = append(ctrlOpts, controller.WithIndicator(ind))
	}
	if server != nil {
		ctrlOpts = append(ctrlOpts, controller.WithObserver(server.PublishStatus))
	}
	ctrl = controller.New(transport, seq, ctrlOpts...)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if server != nil {
		go func() {
			if err := server.Start(ctx); err != nil {
				log.Error("web server stopped", "error", err)
				cancel()
			}
		}()
	}

	log.Info("superbit starting",
		"device", cfg.Device.Name,
		"transport", transport.Name(),
		"board", cfg.Board.Kind,
		"notify", notify,
	)

	if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("controller stopped", "error", err)
		closeBoard()
		os.Exit(1)
	}
	log.Info("superbit stopped")
}

// openBoard returns the actuator backend selected by the board config.
func openBoard(cfg config.BoardConfig) (actuator.Board, func(), error) {
	switch cfg.Kind {
	case config.BoardSim:
		rec := actuator.NewRecorder()
		rec.RealTime = true
		log.Info("using simulated board")
		return rec, func() {}, nil
	default:
		b, err := actuator.OpenSerial(cfg.SerialPort, cfg.Baud)
		if err != nil {
			return nil, nil, err
		}
		log.Info("serial bridge open", "port", cfg.SerialPort, "baud", cfg.Baud)
		return b, func() { _ = b.Close() }, nil
	}
}

// parseFlags loads the config file and applies command line overrides.
func parseFlags() *config.Config {
	path := flag.String("config", "", "Path to YAML config file (default $SUPERBIT_CONFIG)")
	transport := flag.String("transport", "", "Transport: ble or ws (overrides config)")
	board := flag.String("board", "", "Board: serial or sim (overrides config)")
	port := flag.Int("port", 0, "HTTP port for the dashboard and ws transport")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		stdlog.Fatalf("❌ Configuration error: %v", err)
	}

	if *transport != "" {
		cfg.Transport = *transport
	}
	if *board != "" {
		cfg.Board.Kind = *board
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}
	if *debug {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		stdlog.Fatalf("❌ Configuration error: %v", err)
	}
	return cfg
}
