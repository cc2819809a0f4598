// Command solder-station runs the soldering iron temperature controller and
// publishes its state to MQTT and HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/host/v3"

	"github.com/sweeney/solder-station/internal/adc"
	"github.com/sweeney/solder-station/internal/ambient"
	"github.com/sweeney/solder-station/internal/config"
	"github.com/sweeney/solder-station/internal/display"
	"github.com/sweeney/solder-station/internal/engine"
	"github.com/sweeney/solder-station/internal/gpio"
	"github.com/sweeney/solder-station/internal/input"
	"github.com/sweeney/solder-station/internal/logic"
	"github.com/sweeney/solder-station/internal/metrics"
	"github.com/sweeney/solder-station/internal/mqtt"
	"github.com/sweeney/solder-station/internal/status"
	"github.com/sweeney/solder-station/internal/timer"
	"github.com/sweeney/solder-station/internal/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "/etc/solder-station/config.yaml", "Path to YAML config")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "", "HTTP status address (overrides config, \"off\" disables)")
	wsBroker := flag.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	printConfig := flag.Bool("print-config", false, "Print the effective config and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if *broker != "" {
		cfg.MQTT.Broker = *broker
	}
	switch *httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = *httpAddr
	}

	if *printConfig {
		if err := cfg.Save("/dev/stdout"); err != nil {
			log.Fatalf("fatal: %v", err)
		}
		return
	}

	ws := resolveWSBroker(*wsBroker, cfg.MQTT.Broker)
	if err := run(cfg, ws); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, wsBroker string) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("init periph host: %w", err)
	}

	hw := cfg.Hardware
	chip, err := gpio.OpenChip(hw.GPIOChip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer chip.Close()

	heater, err := chip.Output(hw.HeaterLine)
	if err != nil {
		return fmt.Errorf("init heater: %w", err)
	}
	clamp, err := chip.SenseLine(hw.ClampLine)
	if err != nil {
		return fmt.Errorf("init clamp line: %w", err)
	}
	check, err := chip.SenseLine(hw.CheckLine)
	if err != nil {
		return fmt.Errorf("init check line: %w", err)
	}

	panel, err := openPanel(chip, hw)
	if err != nil {
		return err
	}
	encoder := &input.Encoder{}
	if err := chip.WatchQuadrature(hw.EncoderALine, hw.EncoderBLine, encoder.Edge); err != nil {
		return fmt.Errorf("init encoder: %w", err)
	}

	sampler, err := adc.Open(hw.SPIPort, hw.SPISpeedHz, hw.ADCChannel)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer sampler.Close()

	// The ambient sensor and display are optional; the station heats without them.
	var sensor ambient.Sensor
	if s, err := ambient.Open(hw.I2CBus, hw.AmbientAddr); err != nil {
		log.Printf("ambient sensor unavailable: %v", err)
	} else {
		defer s.Close()
		sensor = s
	}

	var surface display.Surface = display.Nop{}
	if hw.DisplayEnabled {
		if d, err := display.OpenSSD1306(hw.I2CBus, hw.Contrast, cfg.Timing.DisplayRefresh); err != nil {
			log.Printf("display unavailable: %v", err)
		} else {
			defer d.Close()
			surface = d
		}
	}

	// Timers post into the engine, which is created once they exist.
	var eng *engine.Engine
	zcTimer := timer.NewPeriodic(cfg.Mains.ZeroCrossDelay, func(at time.Time) {
		eng.Post(engine.Event{Kind: engine.ZeroCrossTimer, At: at})
	})
	settleTimer := timer.NewPeriodic(cfg.Mains.SettleDelay, func(at time.Time) {
		eng.Post(engine.Event{Kind: engine.SettleTimer, At: at})
	})

	eng = engine.New(engine.Hardware{
		Heater:         heater,
		Clamp:          clamp,
		Check:          check,
		ZeroCrossDelay: zcTimer,
		Settle:         settleTimer,
		ADC:            sampler,
		Scanner:        panel,
	}, engine.ParamsFromConfig(cfg), time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)
	defer func() {
		zcTimer.Stop()
		settleTimer.Stop()
		eng.HeaterOff()
	}()

	if err := chip.WatchRising(hw.ZeroCrossLine, func(at time.Time) {
		eng.Post(engine.Event{Kind: engine.ZeroCrossEdge, At: at})
	}); err != nil {
		return fmt.Errorf("init zero cross: %w", err)
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		LoopMs:      cfg.Timing.LoopInterval.Milliseconds(),
		HeartbeatMs: cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		WSBroker:    wsBroker,
		Version:     version,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	m := metrics.New(tracker.Snapshot)

	amb := ambient.Read(sensor)
	tracker.SetAmbient(amb)
	surface.DrawSplash(amb, version)

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, m)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Hold the splash screen while the engine sees its first mains cycles.
	select {
	case <-time.After(cfg.Timing.SplashTimeout):
	case s := <-sigCh:
		sigCh <- s
	}

	log.Printf("started: version=%s broker=%s set=%d°C heartbeat=%v",
		version, cfg.MQTT.Broker, eng.SetTemp(), cfg.MQTT.Heartbeat)

	ticker := time.NewTicker(cfg.Timing.LoopInterval)
	defer ticker.Stop()

	st := &station{
		eng:        eng,
		panel:      logic.NewFrontPanel(panel.Holder, panel.TipChange, panel.Front, encoder, eng, panelConfig(cfg)),
		surface:    surface,
		sensor:     sensor,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		metrics:    m,
		cfg:        cfg,
	}
	return runLoop(st, time.Now, ticker.C, sigCh)
}

func openPanel(chip *gpio.Chip, hw config.HardwareConfig) (*input.Panel, error) {
	open := func(name string, line int) (*input.Button, error) {
		in, err := chip.Input(line)
		if err != nil {
			return nil, fmt.Errorf("init %s: %w", name, err)
		}
		// Switches pull the line low when closed.
		return input.NewButton(name, in, true), nil
	}

	holder, err := open("holder", hw.HolderLine)
	if err != nil {
		return nil, err
	}
	tipChange, err := open("tip change", hw.TipChangeLine)
	if err != nil {
		return nil, err
	}
	front, err := open("button", hw.ButtonLine)
	if err != nil {
		return nil, err
	}
	return &input.Panel{Holder: holder, TipChange: tipChange, Front: front}, nil
}

func panelConfig(cfg *config.Config) logic.PanelConfig {
	return logic.PanelConfig{
		HolderReleaseDelay: cfg.Timing.HolderReleaseDelay,
		TipChangeHold:      cfg.Timing.TipChangeHold,
		TempStep:           cfg.Control.TempStep,
		MinTemp:            cfg.Control.MinTemp,
		MaxTemp:            cfg.Control.MaxTemp,
	}
}

// station holds everything the main loop drives. tracker and metrics may be nil.
type station struct {
	eng        *engine.Engine
	panel      *logic.FrontPanel
	surface    display.Surface
	sensor     ambient.Sensor
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	cfg        *config.Config
}

func runLoop(st *station, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	machine := logic.NewMachine(st.eng, st.surface, st.cfg.Timing.TipInsertDelay, st.cfg.Timing.StandbyTime, startTime)
	heartbeat := st.cfg.MQTT.Heartbeat

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			st.eng.HeaterOff()
			st.eng.SetMode(engine.ModeIdle)

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
			if st.tracker != nil {
				st.refresh(machine)
				snap := st.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := st.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			ps := st.panel.Read(t)
			if ps.Release != input.NoPress {
				log.Printf("button: %s press", ps.Release)
				if st.tracker != nil {
					st.tracker.SetLastRelease(ps.Release.String())
				}
			}

			transitions := machine.Tick(logic.Input{
				Now:       t,
				Tip:       st.eng.TipState(),
				InHolder:  ps.InHolder,
				TipChange: ps.TipChange,
			})

			for _, tr := range transitions {
				log.Printf("state: %s -> %s (%s)", tr.From.Name(), tr.To.Name(), tr.Reason)
				st.metrics.Transition(tr)
				if err := st.publisher.Publish(tr); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
				if tr.To == logic.StateError {
					st.publishFault(machine, tr)
				}
			}

			// Check for heartbeat
			if hbData := machine.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v state=%s on=%d standby=%d error=%d",
					hbData.Uptime, hbData.State.Name(), hbData.Counts.On, hbData.Counts.Standby, hbData.Counts.Error)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if st.tracker != nil {
					// Refresh network info and ambient for heartbeat
					if net := readNetworkInfo(); net != nil {
						st.tracker.SetNetwork(net)
					}
					st.tracker.SetAmbient(ambient.Read(st.sensor))
					st.refresh(machine)
					snap := st.tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := st.publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			// Update status tracker for HTTP/metrics consumers
			if st.tracker != nil {
				st.refresh(machine)
			}
		}
	}
}

func (st *station) refresh(machine *logic.Machine) {
	st.tracker.Update(status.Control{
		State:        machine.State(),
		SetTemp:      st.eng.SetTemp(),
		TipTemp:      st.eng.TipTemp(),
		Tip:          st.eng.TipState(),
		PowerBar:     st.eng.PowerBar(),
		MaxOnPeriods: st.eng.MaxOnPeriods(),
		PowerHistory: st.eng.PowerHistory(),
		Counts:       machine.Counts(),
		Engine:       st.eng.Stats(),
	})
	if st.mqttStatus != nil {
		st.tracker.SetMQTTConnected(st.mqttStatus.IsConnected())
	}
}

func (st *station) publishFault(machine *logic.Machine, tr logic.Transition) {
	event := mqtt.SystemEvent{
		Timestamp: tr.Timestamp,
		Event:     "FAULT",
		Reason:    tr.Reason,
	}
	if st.tracker != nil {
		st.refresh(machine)
		event.RawPayload = status.FormatStatusEvent(st.tracker.Snapshot(), "FAULT", tr.Reason)
	}
	if err := st.publisher.PublishSystem(event); err != nil {
		log.Printf("fault publish error: %v", err)
	}
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

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
