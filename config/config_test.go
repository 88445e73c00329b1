package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	d := Default()
	if d.Name != "lens" {
		t.Errorf("Name = %q, want lens", d.Name)
	}
	if d.ServiceUUID != DefaultServiceUUID || d.RxCharUUID != DefaultRxCharUUID || d.TxCharUUID != DefaultTxCharUUID {
		t.Error("default UUIDs do not match the console service scheme")
	}
	if d.MaxMTU != 128 {
		t.Errorf("MaxMTU = %d, want 128", d.MaxMTU)
	}
	if d.ConnIntervalMs != 15 || d.SlaveLatency != 3 || d.SupervisionTimeoutMs != 2000 {
		t.Errorf("conn params = %d/%d/%d, want 15/3/2000",
			d.ConnIntervalMs, d.SlaveLatency, d.SupervisionTimeoutMs)
	}
	if d.AdvertisingIntervalMs != 20 {
		t.Errorf("AdvertisingIntervalMs = %d, want 20", d.AdvertisingIntervalMs)
	}
	if d.BatteryCurve != nil {
		t.Error("default profile must not override the battery curve")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	d, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Name != "lens" || d.MaxMTU != 128 || d.ListenAddr != "localhost:9830" {
		t.Errorf("missing file did not yield defaults: %+v", d)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lens.yaml")
	profile := `
name: monocle
max_mtu: 64
listen_addr: ":7000"
battery_curve: [4.2, 3.7, 3.0]
`
	if err := os.WriteFile(path, []byte(profile), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Name != "monocle" {
		t.Errorf("Name = %q, want monocle", d.Name)
	}
	if d.MaxMTU != 64 {
		t.Errorf("MaxMTU = %d, want 64", d.MaxMTU)
	}
	if d.ListenAddr != ":7000" {
		t.Errorf("ListenAddr = %q, want :7000", d.ListenAddr)
	}
	if len(d.BatteryCurve) != 3 || d.BatteryCurve[0] != 4.2 {
		t.Errorf("BatteryCurve = %v", d.BatteryCurve)
	}
	// Unset fields still get defaults.
	if d.ServiceUUID != DefaultServiceUUID || d.ConnIntervalMs != 15 {
		t.Error("unset fields were not defaulted")
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lens.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected an error for malformed yaml")
	}
}
