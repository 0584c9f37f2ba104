// Command texecom-monitor observes a Texecom alarm panel over its Crestron
// serial port and digital outputs and publishes zone and alarm state to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sweeney/texecom-monitor/internal/config"
	"github.com/sweeney/texecom-monitor/internal/gpio"
	"github.com/sweeney/texecom-monitor/internal/logger"
	"github.com/sweeney/texecom-monitor/internal/logic"
	"github.com/sweeney/texecom-monitor/internal/mqtt"
	"github.com/sweeney/texecom-monitor/internal/serial"
	"github.com/sweeney/texecom-monitor/internal/status"
	"github.com/sweeney/texecom-monitor/internal/version"
	"github.com/sweeney/texecom-monitor/internal/web"
)

type options struct {
	configPath string
	broker     string
	serialPort string
	httpAddr   string
	logLevel   string
	printState bool
}

func main() {
	root := newRootCmd(&options{})
	version.AttachCobraVersionCommand(root)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "texecom-monitor",
		Short: "Publish Texecom alarm panel state to MQTT.",
		Long: `Reads the panel's Crestron text stream and digital outputs, debounces the
alarm state and publishes zone and alarm changes as retained MQTT messages.
A status page is served over HTTP.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				logger.Logger().Errorw("config", "error", err)
				return err
			}
			if err := run(cfg, opts.printState, cmd.OutOrStdout()); err != nil {
				logger.Logger().Errorw("fatal", "error", err)
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	f.StringVar(&opts.broker, "broker", config.DefaultBroker, "MQTT broker address")
	f.StringVar(&opts.serialPort, "serial", serial.DefaultPath, "panel serial port")
	f.StringVar(&opts.httpAddr, "http", config.DefaultHTTPAddr, "HTTP status address (empty to disable)")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	f.BoolVar(&opts.printState, "print-state", false, "print current sense lines and exit")

	cmd.AddCommand(newConfigCmd())
	return cmd
}

// loadConfig reads the config file and applies explicitly set flags over it.
// A missing file at the default path falls back to defaults.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	flags := cmd.Flags()

	cfg, err := config.Load(opts.configPath)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !flags.Changed("config"):
		cfg = config.Default()
	default:
		return nil, err
	}

	if flags.Changed("broker") {
		cfg.MQTT.Broker = opts.broker
	}
	if flags.Changed("serial") {
		cfg.Serial.Port = opts.serialPort
	}
	if flags.Changed("http") {
		cfg.HTTP.Addr = opts.httpAddr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config, printState bool, out io.Writer) (err error) {
	level, _ := logger.ParseLogLevel(cfg.LogLevel)
	logger.SetLevel(level)
	defer logger.Sync()
	ctx := logger.WithName(context.Background(), "monitor")

	// Initialize GPIO
	gpioReader, err := gpio.Open(cfg.GPIOOptions())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() { err = multierr.Append(err, gpioReader.Close()) }()

	// Print state mode
	if printState {
		lines, err := gpioReader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		printLines(out, lines)
		return nil
	}

	port, err := serial.Open(cfg.Serial.Port, cfg.Serial.Baud)
	if err != nil {
		portCtx := logger.WithKV(ctx, "port", cfg.Serial.Port, "baud", cfg.Serial.Baud)
		if ports, perr := serial.Ports(); perr == nil {
			logger.InfoKV(portCtx, "available serial ports", "ports", ports)
		} else {
			logger.DebugKV(portCtx, "list serial ports", "error", perr)
		}
		return fmt.Errorf("open serial: %w", err)
	}
	pump := serial.NewPump(port, serial.DefaultDepth)
	defer func() { err = multierr.Append(err, pump.Close()) }()

	publisher, err := mqtt.NewRealPublisher(cfg.MQTTOptions())
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	// The queue closes the publisher once it has flushed.
	queue := mqtt.NewQueue(publisher, mqtt.DefaultQueueDepth, logger.FromContext(logger.WithName(ctx, "mqtt")))
	defer func() { err = multierr.Append(err, queue.Close()) }()

	// Initialize status tracker (before STARTUP so snapshot is available)
	startTime := time.Now()
	tracker := status.NewTracker(startTime, statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	sink := newPublishingSink(ctx, queue, tracker)
	monitor, err := logic.New(cfg.Monitor(), sink, logger.NewDiagnosticSink(logger.FromContext(ctx)), startTime)
	if err != nil {
		return fmt.Errorf("init monitor: %w", err)
	}
	tracker.Update(monitor.Snapshot())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := queue.PublishSystem(startupEvent); err != nil {
		logger.WarnKV(ctx, "failed to queue startup event", "error", err)
	} else {
		logger.InfoKV(ctx, "queued startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.ErrorKV(ctx, "http server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = multierr.Append(err, srv.Shutdown(ctx))
		}()
		logger.InfoKV(ctx, "http status server listening", "addr", cfg.HTTP.Addr)
	}

	logger.InfoKV(ctx, "started",
		"version", version.Short(),
		"log_level", logger.Level().String(),
		"serial", cfg.Serial.Port,
		"baud", cfg.Serial.Baud,
		"gpio", cfg.GPIO.Backend,
		"broker", cfg.MQTT.Broker,
		"poll", cfg.Poll,
		"debounce", cfg.Panel.Debounce,
		"heartbeat", cfg.Heartbeat,
	)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runLoop(ctx, monitor, pump, gpioReader, queue, publisher, tracker, cfg.Heartbeat, time.Now, ticker.C, sigCh)
}

// byteSource is the non-blocking side of the serial pump.
type byteSource interface {
	Drain() []byte
	Err() error
}

func runLoop(ctx context.Context, monitor *logic.Monitor, serialIn byteSource, gpioReader gpio.Reader, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	serialCtx := logger.WithName(ctx, "serial")
	gpioCtx := logger.WithName(ctx, "gpio")
	var serialErr error

	for {
		select {
		case s := <-sig:
			logger.InfoKV(ctx, "shutting down", "signal", s.String())
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				tracker.Update(monitor.Snapshot())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				logger.WarnKV(ctx, "failed to publish shutdown event", "error", err)
			} else {
				logger.InfoKV(ctx, "published shutdown event")
			}
			return nil

		case <-tick:
			t := now()

			if serialIn != nil {
				if b := serialIn.Drain(); len(b) > 0 {
					logger.DebugKV(serialCtx, "received", "bytes", len(b))
					monitor.FeedBytes(b, t)
				}
				if err := serialIn.Err(); err != nil && serialErr == nil {
					logger.ErrorKV(serialCtx, "serial read error", "error", err)
					serialErr = err
					if tracker != nil {
						tracker.SetSerialError(err)
					}
				}
			}
			monitor.PollTimeout(t)

			if monitor.SampleDue(t) {
				lines, err := gpioReader.Read()
				if err != nil {
					logger.WarnKV(gpioCtx, "gpio read error", "error", err)
				} else {
					monitor.Sample(lines, t)
				}
			}
			monitor.Commit(t)

			// Check for heartbeat
			if hbData := monitor.CheckHeartbeat(t, heartbeat); hbData != nil {
				logger.InfoKV(ctx, "heartbeat",
					"uptime", hbData.Uptime,
					"frames", hbData.Counts.Frames,
					"unrecognized", hbData.Counts.Unrecognized,
					"zone_events", hbData.Counts.ZoneEvents,
					"alarm_events", hbData.Counts.AlarmEvents,
				)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					if mqttStatus != nil {
						tracker.SetMQTTConnected(mqttStatus.IsConnected())
					}
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					tracker.Update(monitor.Snapshot())
					hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					logger.WarnKV(ctx, "heartbeat publish error", "error", err)
				}
			}

			// Update status tracker for HTTP consumers
			if tracker != nil {
				tracker.Update(monitor.Snapshot())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}
		}
	}
}

// publishingSink forwards committed monitor events to MQTT.
type publishingSink struct {
	publisher mqtt.Publisher
	tracker   *status.Tracker
	log       *zap.SugaredLogger
}

func newPublishingSink(ctx context.Context, publisher mqtt.Publisher, tracker *status.Tracker) *publishingSink {
	return &publishingSink{publisher: publisher, tracker: tracker, log: logger.FromContext(ctx)}
}

func (s *publishingSink) OnZoneChange(ev logic.ZoneEvent) {
	s.log.Debugw("zone",
		"zone", ev.ZoneID,
		"active", ev.State.Has(logic.ZoneActive),
		"tamper", ev.State.Has(logic.ZoneTamper),
	)
	if err := s.publisher.PublishZone(ev); err != nil {
		// Don't crash on publish failure
		s.log.Warnw("publish error", "topic", mqtt.ZoneTopic(ev.ZoneID), "error", err)
	}
}

func (s *publishingSink) OnAlarmChange(ev logic.AlarmEvent) {
	s.log.Infow("alarm", "state", ev.State.String(), "flags", ev.Flags.String())
	if s.tracker != nil {
		s.tracker.SetAlarmChanged(ev.Timestamp)
	}
	if err := s.publisher.PublishAlarm(ev); err != nil {
		s.log.Warnw("publish error", "topic", mqtt.TopicAlarm, "error", err)
	}
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		PollMs:      cfg.Poll.Milliseconds(),
		DebounceMs:  cfg.Panel.Debounce.Milliseconds(),
		SampleMs:    cfg.Panel.SampleInterval.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPPort:    cfg.HTTP.Addr,
		SerialPort:  cfg.Serial.Port,
		BaudRate:    cfg.Serial.Baud,
		GPIOBackend: cfg.GPIO.Backend,
		FirstZone:   cfg.Panel.FirstZone,
		ZoneCount:   cfg.Panel.ZoneCount,
	}
}

// printLines writes each sense line and the alarm state they imply.
func printLines(w io.Writer, lines logic.SenseLines) {
	for i := logic.Line(0); i < logic.LineCount; i++ {
		fmt.Fprintf(w, "%-14s %s\n", i.String()+":", stateString(lines[i]))
	}
	res := logic.NewSenseMonitor().Sample(lines, time.Now())
	state := logic.Disarmed
	if n := len(res.Proposals); n > 0 {
		state = res.Proposals[n-1]
	}
	fmt.Fprintf(w, "state:         %s (%s)\n", state, res.Flags)
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func stateString(active bool) string {
	if active {
		return "ACTIVE"
	}
	return "inactive"
}
