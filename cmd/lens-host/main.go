// Command lens-host runs the Lens firmware core on a development host. The
// radio stack is replaced by a simulated central reachable over TCP; the
// console application is a small command loop (or the local terminal in
// interactive mode), and the battery monitor samples a synthetic discharging
// cell.
//
// Talk to the device console with e.g.:
//
//	nc localhost 9830
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"lensfw/battery"
	"lensfw/ble"
	"lensfw/config"
	"lensfw/host/central"
	"lensfw/host/serialbridge"
	"lensfw/rawterm"
)

func main() {
	configPath := flag.String("config", "lens.yaml", "device profile to load")
	listenAddr := flag.String("listen", "", "override the central listen address")
	interactive := flag.Bool("interactive", false, "wire the local terminal to the console instead of the command loop")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	must("load config", err)
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	serviceUUID, err := ble.ParseUUID(cfg.ServiceUUID)
	must("parse service UUID", err)
	rxUUID, err := ble.ParseUUID(cfg.RxCharUUID)
	must("parse rx characteristic UUID", err)
	txUUID, err := ble.ParseUUID(cfg.TxCharUUID)
	must("parse tx characteristic UUID", err)

	radio := central.NewRadio()
	stack, err := ble.NewStack(radio, ble.Config{
		DeviceName:          cfg.Name,
		ServiceUUID:         serviceUUID,
		RxCharUUID:          rxUUID,
		TxCharUUID:          txUUID,
		MaxMTU:              cfg.MaxMTU,
		AdvertisingInterval: ble.NewDuration(time.Duration(cfg.AdvertisingIntervalMs) * time.Millisecond),
		ConnParams: ble.ConnectionParams{
			MinInterval:  ble.NewDuration(time.Duration(cfg.ConnIntervalMs) * time.Millisecond),
			MaxInterval:  ble.NewDuration(time.Duration(cfg.ConnIntervalMs) * time.Millisecond),
			SlaveLatency: cfg.SlaveLatency,
			Timeout:      ble.NewDuration(time.Duration(cfg.SupervisionTimeoutMs) * time.Millisecond),
		},
	})
	must("enable BLE stack", err)
	radio.Bind(stack)

	monitor := battery.New(newSyntheticCell())
	if len(cfg.BatteryCurve) > 0 {
		must("set battery curve", monitor.SetCurve(cfg.BatteryCurve))
	}
	monitor.Start(tickerTimer{period: time.Duration(cfg.BatteryTickMs) * time.Millisecond})

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	must("listen for centrals", err)
	log.WithFields(log.Fields{
		"name":   cfg.Name,
		"listen": cfg.ListenAddr,
	}).Info("advertising")
	go func() {
		must("serve centrals", radio.Serve(listener, 64))
	}()

	if cfg.SerialPort != "" {
		bridge, err := serialbridge.Open(cfg.SerialPort, cfg.SerialBaud)
		must("open serial port", err)
		defer bridge.Close()
		must("run serial bridge", bridge.Run(stack))
		return
	}

	if *interactive {
		runTerminal(stack)
		return
	}
	runConsole(stack, monitor)
}

// runConsole is the application stand-in: a minimal line-oriented command
// loop on top of the console byte stream.
func runConsole(stack *ble.Stack, monitor *battery.Monitor) {
	stack.Write([]byte("lens console ready\r\n"))
	reader := bufio.NewReader(stack)
	for {
		stack.Write([]byte(">>> "))
		line, err := reader.ReadString('\n')
		if err != nil {
			continue
		}
		switch strings.TrimSpace(line) {
		case "":
		case "battery":
			fmt.Fprintf(stack, "%d%%\r\n", monitor.Percent())
		case "ping":
			stack.Write([]byte("pong\r\n"))
		default:
			// Echo anything unrecognized back, REPL style.
			stack.Write([]byte(strings.TrimSpace(line) + "\r\n"))
		}
	}
}

// runTerminal connects the local terminal to the console stream: keystrokes
// go out to the device application side, console output is printed.
func runTerminal(stack *ble.Stack) {
	rawterm.Configure()
	defer rawterm.Restore()
	print("console attached, Ctrl-X to exit\r\n")

	go func() {
		for {
			c, _ := stack.ReadByte()
			rawterm.Putchar(c)
		}
	}()
	for {
		ch := rawterm.Getchar()
		if ch == '\x18' {
			return
		}
		stack.Write([]byte{ch})
	}
}

// tickerTimer drives a registered handler at a fixed period, standing in for
// the device's low-frequency timer.
type tickerTimer struct {
	period time.Duration
}

func (t tickerTimer) AddHandler(fn func()) {
	go func() {
		ticker := time.NewTicker(t.period)
		defer ticker.Stop()
		for range ticker.C {
			fn()
		}
	}()
}

// syntheticCell models a slowly discharging battery so the monitor has
// something to estimate on a host.
type syntheticCell struct {
	start time.Time
}

func newSyntheticCell() *syntheticCell {
	return &syntheticCell{start: time.Now()}
}

func (c *syntheticCell) Configure() error { return nil }

func (c *syntheticCell) Sample() (int16, error) {
	// Full at 3.9 V, draining to the 2.7 V cutoff over two hours.
	elapsed := time.Since(c.start).Hours()
	volts := 3.9 - 0.6*elapsed
	if volts < 2.6 {
		volts = 2.6
	}
	return rawFromVoltage(volts), nil
}

// rawFromVoltage inverts the monitor's conversion so the synthetic cell can
// be expressed in volts. Gain and reference match the device ADC wiring.
func rawFromVoltage(volts float64) int16 {
	const (
		reference = 1.8 / 4.0
		gain      = (1.0 / 4.0) * (1.25 / 4.5)
	)
	return int16(volts * gain / reference * 1024)
}

func must(action string, err error) {
	if err != nil {
		log.WithError(err).Fatal("failed to " + action)
	}
}
