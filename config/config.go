// Package config loads the host-side device profile: the advertised
// identity, the console service UUIDs, timing parameters, and optional
// battery calibration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default console service: the Nordic UART service UUID scheme the wearable
// advertises.
const (
	DefaultServiceUUID = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	DefaultRxCharUUID  = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
	DefaultTxCharUUID  = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// Device is the device profile. Zero values are filled in with defaults
// after loading.
type Device struct {
	Name string `yaml:"name"`

	ServiceUUID string `yaml:"service_uuid"`
	RxCharUUID  string `yaml:"rx_char_uuid"`
	TxCharUUID  string `yaml:"tx_char_uuid"`

	// MaxMTU is the largest ATT MTU offered during MTU exchange.
	MaxMTU uint16 `yaml:"max_mtu"`

	// AdvertisingIntervalMs is the fixed advertising interval.
	AdvertisingIntervalMs uint32 `yaml:"advertising_interval_ms"`

	// Preferred peripheral connection parameters.
	ConnIntervalMs       uint32 `yaml:"conn_interval_ms"`
	SlaveLatency         uint16 `yaml:"slave_latency"`
	SupervisionTimeoutMs uint32 `yaml:"supervision_timeout_ms"`

	// ListenAddr is where the host binary accepts simulated centrals.
	ListenAddr string `yaml:"listen_addr"`

	// SerialPort bridges the console to a physical serial port when set.
	SerialPort string `yaml:"serial_port"`
	SerialBaud int    `yaml:"serial_baud"`

	// BatteryTickMs is the period of the battery sampling timer tick (the
	// monitor downscales it further by 256).
	BatteryTickMs int `yaml:"battery_tick_ms"`

	// BatteryCurve overrides the built-in discharge curve: strictly
	// decreasing voltages from 100% down to 0%.
	BatteryCurve []float64 `yaml:"battery_curve"`
}

// Default returns the built-in device profile.
func Default() Device {
	var d Device
	d.fillDefaults()
	return d
}

// Load reads the profile from path. A missing file is not an error: the
// defaults are returned.
func Load(path string) (Device, error) {
	var d Device
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			d.fillDefaults()
			return d, nil
		}
		return d, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	d.fillDefaults()
	return d, nil
}

func (d *Device) fillDefaults() {
	if d.Name == "" {
		d.Name = "lens"
	}
	if d.ServiceUUID == "" {
		d.ServiceUUID = DefaultServiceUUID
	}
	if d.RxCharUUID == "" {
		d.RxCharUUID = DefaultRxCharUUID
	}
	if d.TxCharUUID == "" {
		d.TxCharUUID = DefaultTxCharUUID
	}
	if d.MaxMTU == 0 {
		d.MaxMTU = 128
	}
	if d.AdvertisingIntervalMs == 0 {
		d.AdvertisingIntervalMs = 20
	}
	if d.ConnIntervalMs == 0 {
		d.ConnIntervalMs = 15
	}
	if d.SlaveLatency == 0 {
		d.SlaveLatency = 3
	}
	if d.SupervisionTimeoutMs == 0 {
		d.SupervisionTimeoutMs = 2000
	}
	if d.ListenAddr == "" {
		d.ListenAddr = "localhost:9830"
	}
	if d.SerialBaud == 0 {
		d.SerialBaud = 115200
	}
	if d.BatteryTickMs == 0 {
		d.BatteryTickMs = 20
	}
}
