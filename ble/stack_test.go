package ble

import (
	"sync"
	"testing"
	"time"
)

var (
	testServiceUUID = MustParseUUID("6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	testRxUUID      = MustParseUUID("6e400002-b5a3-f393-e0a9-e50e24dcca9e")
	testTxUUID      = MustParseUUID("6e400003-b5a3-f393-e0a9-e50e24dcca9e")
)

// fakeRadio records every call the stack makes and can be scripted to fail
// notification sends. Sends are mutex-guarded because some tests flush from a
// second goroutine; everything else is driven from the test goroutine.
type fakeRadio struct {
	mu sync.Mutex

	deviceName  string
	connParams  ConnectionParams
	payload     []byte
	advParams   AdvertisingParams
	advertising bool

	nextHandle uint16
	services   []UUID
	chars      []CharacteristicOptions
	rxHandle   uint16
	txHandle   uint16

	sends        [][]byte
	sendErrs     []error // consumed one per Notify before sends succeed
	sendAttempts int

	mtuReplies      []uint16
	paramUpdates    int
	phyReplies      int
	pairingDeclines int
	sysAttrRestores int
	disconnects     []Connection
}

func (r *fakeRadio) SetDeviceName(name string) error {
	r.deviceName = name
	return nil
}

func (r *fakeRadio) SetPreferredConnParams(params ConnectionParams) error {
	r.connParams = params
	return nil
}

func (r *fakeRadio) ConfigureAdvertising(payload []byte, params AdvertisingParams) (AdvertisingHandle, error) {
	if len(payload) > 31 {
		return AdvertisingHandleNotSet, Error(9)
	}
	r.payload = append([]byte(nil), payload...)
	r.advParams = params
	return 0, nil
}

func (r *fakeRadio) StartAdvertising(handle AdvertisingHandle) error {
	r.advertising = true
	return nil
}

func (r *fakeRadio) StopAdvertising(handle AdvertisingHandle) error {
	r.advertising = false
	return nil
}

func (r *fakeRadio) AddService(uuid UUID) (uint16, error) {
	r.nextHandle++
	r.services = append(r.services, uuid)
	return r.nextHandle, nil
}

func (r *fakeRadio) AddCharacteristic(service uint16, opts CharacteristicOptions) (uint16, error) {
	r.nextHandle++
	r.chars = append(r.chars, opts)
	if opts.Flags.Write() || opts.Flags.WriteWithoutResponse() {
		r.rxHandle = r.nextHandle
	}
	if opts.Flags.Notify() {
		r.txHandle = r.nextHandle
	}
	return r.nextHandle, nil
}

func (r *fakeRadio) Notify(conn Connection, char uint16, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendAttempts++
	if len(r.sendErrs) > 0 {
		err := r.sendErrs[0]
		r.sendErrs = r.sendErrs[1:]
		return err
	}
	r.sends = append(r.sends, append([]byte(nil), data...))
	return nil
}

// sentFrames returns a snapshot of the frames delivered so far.
func (r *fakeRadio) sentFrames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.sends...)
}

func (r *fakeRadio) RequestConnParamUpdate(conn Connection) error {
	r.paramUpdates++
	return nil
}

func (r *fakeRadio) ReplyMTUExchange(conn Connection, serverMTU uint16) error {
	r.mtuReplies = append(r.mtuReplies, serverMTU)
	return nil
}

func (r *fakeRadio) ReplyPHYAuto(conn Connection) error {
	r.phyReplies++
	return nil
}

func (r *fakeRadio) ReplyPairingNotSupported(conn Connection) error {
	r.pairingDeclines++
	return nil
}

func (r *fakeRadio) RestoreSystemAttributes(conn Connection) error {
	r.sysAttrRestores++
	return nil
}

func (r *fakeRadio) Disconnect(conn Connection, reason DisconnectReason) error {
	r.disconnects = append(r.disconnects, conn)
	return nil
}

// connect mimics a central connecting: the radio stops advertising on its own
// and then delivers the connect event.
func (r *fakeRadio) connect(s *Stack, conn Connection) {
	r.advertising = false
	s.HandleEvent(ConnectEvent{Conn: conn})
}

func newTestStack(t *testing.T, cfg Config) (*Stack, *fakeRadio) {
	t.Helper()
	if cfg.ServiceUUID == (UUID{}) {
		cfg.ServiceUUID = testServiceUUID
		cfg.RxCharUUID = testRxUUID
		cfg.TxCharUUID = testTxUUID
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = "lens"
	}
	r := &fakeRadio{}
	s, err := NewStack(r, cfg)
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}
	return s, r
}

func TestSetup(t *testing.T) {
	s, r := newTestStack(t, Config{})

	if r.deviceName != "lens" {
		t.Errorf("device name = %q, want lens", r.deviceName)
	}
	if len(r.services) != 1 || r.services[0] != testServiceUUID {
		t.Errorf("services = %v, want the console service", r.services)
	}
	if len(r.chars) != 2 {
		t.Fatalf("got %d characteristics, want 2", len(r.chars))
	}
	rx, tx := r.chars[0], r.chars[1]
	if !rx.Flags.Write() || !rx.Flags.WriteWithoutResponse() || rx.Flags.Notify() {
		t.Errorf("rx flags = %#x", rx.Flags)
	}
	if !tx.Flags.Notify() || tx.Flags.Write() {
		t.Errorf("tx flags = %#x", tx.Flags)
	}
	if rx.MaxLength != DefaultMaxMTU-3 || tx.MaxLength != DefaultMaxMTU-3 {
		t.Errorf("max lengths = %d, %d, want %d", rx.MaxLength, tx.MaxLength, DefaultMaxMTU-3)
	}
	if !r.advertising {
		t.Error("not advertising after setup")
	}
	if r.connParams.MinInterval != NewDuration(15*time.Millisecond) || r.connParams.SlaveLatency != 3 {
		t.Errorf("conn params = %+v, want 15 ms interval, latency 3", r.connParams)
	}
	if s.Connected() {
		t.Error("connected before any central attached")
	}
	if s.NegotiatedMTU() != defaultATTMTU-attOverhead {
		t.Errorf("initial MTU payload = %d, want %d", s.NegotiatedMTU(), defaultATTMTU-attOverhead)
	}
}

func TestSetupRequiresServiceUUID(t *testing.T) {
	_, err := NewStack(&fakeRadio{}, Config{DeviceName: "lens"})
	if err != errNoServiceUUID {
		t.Errorf("err = %v, want errNoServiceUUID", err)
	}
}

func TestConnectionLifecycle(t *testing.T) {
	s, r := newTestStack(t, Config{})

	r.connect(s, 1)
	if !s.Connected() || s.Connection() != 1 {
		t.Fatalf("Connection = %d, want 1", s.Connection())
	}
	if r.advertising {
		t.Error("advertising while connected")
	}
	if r.paramUpdates != 1 {
		t.Errorf("param updates = %d, want 1", r.paramUpdates)
	}

	s.HandleEvent(DisconnectEvent{Conn: 1})
	if s.Connected() {
		t.Error("still connected after disconnect")
	}
	if !r.advertising {
		t.Error("not advertising after disconnect")
	}

	// A new central gets a fresh handle; the cycle repeats cleanly.
	r.connect(s, 2)
	if s.Connection() != 2 {
		t.Errorf("Connection = %d, want 2", s.Connection())
	}
	if r.advertising {
		t.Error("advertising while connected")
	}
}

func TestMTUExchange(t *testing.T) {
	tests := []struct {
		clientMTU uint16
		want      uint16
	}{
		{64, 61},   // client smaller: client wins
		{512, 125}, // client larger: our maximum wins
		{23, 20},   // protocol minimum
	}
	for _, tc := range tests {
		s, r := newTestStack(t, Config{})
		r.connect(s, 1)
		s.HandleEvent(MTUExchangeRequestEvent{Conn: 1, ClientMTU: tc.clientMTU})
		if got := s.NegotiatedMTU(); got != tc.want {
			t.Errorf("client MTU %d: payload = %d, want %d", tc.clientMTU, got, tc.want)
		}
		if len(r.mtuReplies) != 1 || r.mtuReplies[0] != DefaultMaxMTU {
			t.Errorf("client MTU %d: replies = %v, want [%d]", tc.clientMTU, r.mtuReplies, DefaultMaxMTU)
		}
	}
}

func TestMTUResetOnDisconnect(t *testing.T) {
	s, r := newTestStack(t, Config{})
	r.connect(s, 1)
	s.HandleEvent(MTUExchangeRequestEvent{Conn: 1, ClientMTU: 247})
	if s.NegotiatedMTU() != 125 {
		t.Fatalf("payload = %d, want 125", s.NegotiatedMTU())
	}
	s.HandleEvent(DisconnectEvent{Conn: 1})
	if s.NegotiatedMTU() != 20 {
		t.Errorf("payload after disconnect = %d, want 20", s.NegotiatedMTU())
	}
}

func TestInboundWrite(t *testing.T) {
	s, r := newTestStack(t, Config{})
	r.connect(s, 1)

	s.HandleEvent(WriteEvent{Conn: 1, Char: r.rxHandle, Data: []byte("hello")})
	buf := make([]byte, 16)
	n, _ := s.Read(buf)
	if string(buf[:n]) != "hello" {
		t.Errorf("read %q, want hello", buf[:n])
	}
	if !s.InputEmpty() {
		t.Error("input not empty after draining")
	}
}

func TestWriteToOtherCharacteristicIgnored(t *testing.T) {
	s, r := newTestStack(t, Config{})
	r.connect(s, 1)

	s.HandleEvent(WriteEvent{Conn: 1, Char: r.txHandle, Data: []byte("nope")})
	if !s.InputEmpty() {
		t.Error("write to the notify characteristic reached the receive buffer")
	}
}

func TestInboundOverflowDroppedSilently(t *testing.T) {
	s, r := newTestStack(t, Config{BufferSize: 8})
	r.connect(s, 1)

	s.HandleEvent(WriteEvent{Conn: 1, Char: r.rxHandle, Data: []byte("0123456789abcdef")})
	buf := make([]byte, 32)
	n, _ := s.Read(buf)
	if string(buf[:n]) != "01234567" {
		t.Errorf("read %q, want the first 8 bytes", buf[:n])
	}
	if !s.InputEmpty() {
		t.Error("dropped bytes showed up in the receive buffer")
	}
}

func TestPairingDeclined(t *testing.T) {
	s, r := newTestStack(t, Config{})
	r.connect(s, 1)
	s.HandleEvent(SecurityParamsRequestEvent{Conn: 1})
	if r.pairingDeclines != 1 {
		t.Errorf("pairing declines = %d, want 1", r.pairingDeclines)
	}
	if !s.Connected() {
		t.Error("declining pairing must not tear down the link")
	}
}

func TestPHYUpdateAccepted(t *testing.T) {
	s, r := newTestStack(t, Config{})
	r.connect(s, 1)
	s.HandleEvent(PHYUpdateRequestEvent{Conn: 1})
	if r.phyReplies != 1 {
		t.Errorf("phy replies = %d, want 1", r.phyReplies)
	}
}

func TestSystemAttributesRestored(t *testing.T) {
	s, r := newTestStack(t, Config{})
	r.connect(s, 1)
	s.HandleEvent(SystemAttributesMissingEvent{Conn: 1})
	if r.sysAttrRestores != 1 {
		t.Errorf("system attribute restores = %d, want 1", r.sysAttrRestores)
	}
}

func TestServerTimeoutDisconnects(t *testing.T) {
	s, r := newTestStack(t, Config{})
	r.connect(s, 1)
	s.HandleEvent(GATTServerTimeoutEvent{Conn: 1})
	if len(r.disconnects) != 1 || r.disconnects[0] != 1 {
		t.Errorf("disconnects = %v, want [1]", r.disconnects)
	}
}

func TestClientTimeoutPanics(t *testing.T) {
	s, r := newTestStack(t, Config{})
	r.connect(s, 1)
	defer func() {
		if recover() == nil {
			t.Error("expected a panic on a GATT client timeout")
		}
	}()
	s.HandleEvent(GATTClientTimeoutEvent{Conn: 1})
}

type unusedEvent struct{}

func (unusedEvent) event() {}

func TestUnknownEventIgnored(t *testing.T) {
	s, r := newTestStack(t, Config{})
	r.connect(s, 1)
	s.HandleEvent(unusedEvent{})
	if !s.Connected() || r.sendAttempts != 0 {
		t.Error("unknown event changed stack state")
	}
}
