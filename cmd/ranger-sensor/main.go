// Command ranger-sensor debounces a push button that toggles an output and
// samples an ultrasonic distance sensor, publishing both to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/ranger-sensor/internal/gpio"
	"github.com/sweeney/ranger-sensor/internal/logic"
	"github.com/sweeney/ranger-sensor/internal/mqtt"
	"github.com/sweeney/ranger-sensor/internal/status"
	"github.com/sweeney/ranger-sensor/internal/web"
)

// options holds the parsed command line.
type options struct {
	poll          time.Duration
	debounce      time.Duration
	sampling      time.Duration
	echoTimeout   time.Duration
	heartbeat     time.Duration
	report        time.Duration
	pinButton     int
	pinOutput     int
	pinTrigger    int
	pinEcho       int
	activeLow     bool
	chip          string
	broker        string
	clientID      string
	httpAddr      string
	printDistance bool
	once          bool
	sim           string
}

func main() {
	var o options
	flag.DurationVar(&o.poll, "poll", time.Millisecond, "Driver polling interval")
	flag.DurationVar(&o.debounce, "debounce", 20*time.Millisecond, "Button debounce window (0-127ms)")
	flag.DurationVar(&o.sampling, "sampling", 100*time.Millisecond, "Minimum interval between distance measurements")
	flag.DurationVar(&o.echoTimeout, "echo-timeout", time.Duration(logic.DefaultEchoTimeoutUs)*time.Microsecond, "Echo wait before a measurement counts as no echo")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.DurationVar(&o.report, "report", time.Second, "Minimum interval between published readings (0 publishes every reading)")
	flag.IntVar(&o.pinButton, "pin-button", gpio.DefaultPinButton, "BCM pin number for the push button")
	flag.IntVar(&o.pinOutput, "pin-output", gpio.DefaultPinOutput, "BCM pin number for the toggled output")
	flag.IntVar(&o.pinTrigger, "pin-trigger", gpio.DefaultPinTrigger, "BCM pin number for the ranger trigger")
	flag.IntVar(&o.pinEcho, "pin-echo", gpio.DefaultPinEcho, "BCM pin number for the ranger echo")
	flag.BoolVar(&o.activeLow, "active-low", false, "Button pulls the pin LOW when pressed")
	flag.StringVar(&o.chip, "chip", "gpiochip0", "GPIO character device")
	flag.StringVar(&o.broker, "broker", "", "MQTT broker address (empty to disable)")
	flag.StringVar(&o.clientID, "client-id", "ranger-sensor", "MQTT client ID")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.BoolVar(&o.printDistance, "print-distance", false, "Print every measured distance to stdout")
	flag.BoolVar(&o.once, "once", false, "Take one distance measurement, print it and exit")
	flag.StringVar(&o.sim, "sim", "", "Run against simulated hardware driven by this script file")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// devices bundles the drivers polled by the loop.
type devices struct {
	button *logic.Button
	ranger *logic.Ranger
	output *logic.Output
}

func newDevices(hw gpio.Hardware, o options) (devices, error) {
	button, err := logic.NewButton(hw, logic.ButtonConfig{
		Pin:        o.pinButton,
		DebounceMs: int(o.debounce.Milliseconds()),
		ActiveLow:  o.activeLow,
	})
	if err != nil {
		return devices{}, err
	}
	ranger, err := logic.NewRanger(hw, logic.RangerConfig{
		TriggerPin:       o.pinTrigger,
		EchoPin:          o.pinEcho,
		SamplingPeriodMs: uint64(o.sampling.Milliseconds()),
		EchoTimeoutUs:    uint64(o.echoTimeout.Microseconds()),
	})
	if err != nil {
		return devices{}, err
	}
	output, err := logic.NewOutput(hw, o.pinOutput)
	if err != nil {
		return devices{}, err
	}
	return devices{button: button, ranger: ranger, output: output}, nil
}

func (d devices) configure() error {
	if err := d.button.Configure(); err != nil {
		return err
	}
	if err := d.ranger.Configure(); err != nil {
		return err
	}
	return d.output.Configure()
}

// openHardware returns the real GPIO chip, or a FakeHardware replaying the
// -sim script. The returned hook must run at the start of every tick.
func openHardware(o options) (gpio.Hardware, func(), error) {
	if o.sim == "" {
		hw, err := gpio.NewRealHardware(o.chip)
		if err != nil {
			return nil, nil, fmt.Errorf("init gpio: %w", err)
		}
		return hw, nil, nil
	}

	f, err := os.Open(o.sim)
	if err != nil {
		return nil, nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	steps, err := gpio.ParseScript(f)
	if err != nil {
		return nil, nil, fmt.Errorf("parse script %s: %w", o.sim, err)
	}

	hw := gpio.NewFakeHardware()
	player := gpio.NewPlayer(hw, steps)
	step := o.poll
	log.Printf("simulating %d scripted steps from %s", len(steps), o.sim)
	return hw, func() {
		hw.Advance(step)
		if player.Apply() > 0 && player.Done() {
			log.Printf("simulation script finished at %v", time.Duration(hw.NowMicros())*time.Microsecond)
		}
	}, nil
}

func run(o options) error {
	hw, onTick, err := openHardware(o)
	if err != nil {
		return err
	}
	defer hw.Close()

	dev, err := newDevices(hw, o)
	if err != nil {
		return fmt.Errorf("init devices: %w", err)
	}

	if o.once {
		return measureOnce(dev.ranger, onTick, o.sampling+o.echoTimeout+time.Second)
	}

	if err := dev.configure(); err != nil {
		return fmt.Errorf("configure gpio: %w", err)
	}

	// Initialize MQTT
	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	var mqttStatus mqtt.ConnectionStatus = mqtt.NopPublisher{}
	if o.broker != "" {
		p, err := mqtt.NewRealPublisher(o.broker, o.clientID)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:        o.poll.Milliseconds(),
		DebounceMs:    o.debounce.Milliseconds(),
		SamplingMs:    o.sampling.Milliseconds(),
		EchoTimeoutUs: o.echoTimeout.Microseconds(),
		HeartbeatMs:   o.heartbeat.Milliseconds(),
		ButtonPin:     o.pinButton,
		OutputPin:     o.pinOutput,
		TriggerPin:    o.pinTrigger,
		EchoPin:       o.pinEcho,
		Broker:        o.broker,
		HTTPAddr:      o.httpAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(mqttStatus.IsConnected())

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
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	log.Printf("started: poll=%v debounce=%v sampling=%v broker=%q heartbeat=%v", o.poll, o.debounce, o.sampling, o.broker, o.heartbeat)

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	cfg := loopConfig{
		heartbeat:     o.heartbeat,
		report:        o.report,
		printDistance: o.printDistance,
		onTick:        onTick,
	}
	return runLoop(dev, publisher, mqttStatus, tracker, cfg, time.Now, ticker.C, sigCh)
}

// loopConfig tunes runLoop.
type loopConfig struct {
	heartbeat     time.Duration
	report        time.Duration // minimum gap between published readings
	printDistance bool
	onTick        func() // runs before the drivers are polled; nil for real hardware
}

func runLoop(dev devices, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, cfg loopConfig, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	heartbeat := logic.NewHeartbeat(now())
	var (
		on         bool
		counts     logic.Counts
		lastReport time.Time
	)

	refresh := func() {
		tracker.Update(logic.StateOf(on), dev.button.Pressed(), dev.ranger.Phase(), counts)
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			refresh()
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			if err := dev.output.Set(false); err != nil {
				log.Printf("output off: %v", err)
			}
			return nil

		case <-tick:
			if cfg.onTick != nil {
				cfg.onTick()
			}
			t := now()

			toggled, err := dev.button.Poll(&on)
			if err != nil {
				log.Printf("button: %v", err)
			} else if toggled {
				counts.Toggles++
				if err := dev.output.Set(on); err != nil {
					log.Printf("output: %v", err)
				}
				state := logic.StateOf(on)
				log.Printf("toggle: output %s", state)
				if err := publisher.PublishToggle(mqtt.ToggleEvent{Timestamp: t, State: state}); err != nil {
					log.Printf("publish error: %v", err)
				}
			}

			measured, err := dev.ranger.Poll()
			if err != nil {
				log.Printf("ranger: %v", err)
			} else if measured {
				r := dev.ranger.Reading()
				counts.Measurements++
				if r.NoEcho() {
					counts.NoEcho++
				}
				tracker.SetReading(r, t)
				if cfg.printDistance {
					fmt.Printf("Distance: %.2f cm\n", r.DistanceCm)
				}
				if cfg.report <= 0 || lastReport.IsZero() || t.Sub(lastReport) >= cfg.report {
					lastReport = t
					if err := publisher.PublishReading(mqtt.ReadingEvent{Timestamp: t, Reading: r}); err != nil {
						log.Printf("publish error: %v", err)
					}
				}
			}

			if hbData := heartbeat.Check(t, cfg.heartbeat, counts); hbData != nil {
				log.Printf("heartbeat: uptime=%v toggles=%d measurements=%d no_echo=%d",
					hbData.Uptime, hbData.Counts.Toggles, hbData.Counts.Measurements, hbData.Counts.NoEcho)

				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				refresh()
				snap := tracker.Snapshot()
				hbEvent := mqtt.SystemEvent{
					Timestamp:  hbData.Timestamp,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			refresh()
		}
	}
}

// measureOnce polls the ranger until one cycle completes and prints it.
func measureOnce(ranger *logic.Ranger, onTick func(), limit time.Duration) error {
	if err := ranger.Configure(); err != nil {
		return fmt.Errorf("configure ranger: %w", err)
	}
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		if onTick != nil {
			onTick()
		}
		measured, err := ranger.Poll()
		if err != nil {
			return fmt.Errorf("measure: %w", err)
		}
		if measured {
			r := ranger.Reading()
			if r.NoEcho() {
				fmt.Println("Distance: no echo")
			} else {
				fmt.Printf("Distance: %.2f cm (%dus)\n", r.DistanceCm, r.PulseUs)
			}
			return nil
		}
		time.Sleep(50 * time.Microsecond)
	}
	return fmt.Errorf("no measurement within %v", limit)
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
