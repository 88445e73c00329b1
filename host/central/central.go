// Package central implements a host-side radio stack driven by a simulated
// BLE central. It stands in for the vendor stack during bring-up and
// integration tests: GATT traffic crosses a net.Conn, where bytes written by
// the peer arrive as characteristic writes and notifications flow back out.
package central

import (
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"lensfw/ble"
)

var (
	errNotBound      = errors.New("central: no event sink bound")
	errBusy          = errors.New("central: a central is already connected")
	errNotConfigured = errors.New("central: advertising set not configured")
)

// EventSink consumes the radio's events; in practice this is *ble.Stack.
type EventSink interface {
	HandleEvent(ble.Event)
}

type characteristic struct {
	handle uint16
	opts   ble.CharacteristicOptions
}

// Radio implements ble.Radio for one simulated central at a time.
type Radio struct {
	logger *log.Entry

	mu            sync.Mutex
	sink          EventSink
	deviceName    string
	connParams    ble.ConnectionParams
	advPayload    []byte
	advParams     ble.AdvertisingParams
	advConfigured bool
	advertising   bool
	serverMTU     uint16
	nextHandle    uint16
	chars         []characteristic
	conn          net.Conn
	connHandle    ble.Connection
	nextConn      uint16
}

// NewRadio returns an idle radio with no central attached.
func NewRadio() *Radio {
	return &Radio{
		logger:     log.WithField("component", "central"),
		nextHandle: 1,
	}
}

// Bind attaches the event sink. It must be called before the first central
// attaches; the one-time stack setup needs no events and may run first.
func (r *Radio) Bind(sink EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

// SetDeviceName implements ble.Radio.
func (r *Radio) SetDeviceName(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deviceName = name
	return nil
}

// SetPreferredConnParams implements ble.Radio.
func (r *Radio) SetPreferredConnParams(params ble.ConnectionParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connParams = params
	return nil
}

// ConfigureAdvertising implements ble.Radio. The simulated central does not
// scan; the payload is kept for inspection and logging.
func (r *Radio) ConfigureAdvertising(payload []byte, params ble.AdvertisingParams) (ble.AdvertisingHandle, error) {
	if len(payload) > 31 {
		return ble.AdvertisingHandleNotSet, ble.Error(9) // invalid length
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advPayload = append([]byte(nil), payload...)
	r.advParams = params
	r.advConfigured = true
	return 0, nil
}

// StartAdvertising implements ble.Radio.
func (r *Radio) StartAdvertising(handle ble.AdvertisingHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.advConfigured {
		return errNotConfigured
	}
	r.advertising = true
	r.logger.WithField("payload_len", len(r.advPayload)).Debug("advertising started")
	return nil
}

// StopAdvertising implements ble.Radio.
func (r *Radio) StopAdvertising(handle ble.AdvertisingHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advertising = false
	return nil
}

// Advertising reports whether the device is currently discoverable.
func (r *Radio) Advertising() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.advertising
}

// AdvertisingPayload returns a copy of the configured advertising packet.
func (r *Radio) AdvertisingPayload() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.advPayload...)
}

// AddService implements ble.Radio.
func (r *Radio) AddService(u ble.UUID) (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle := r.nextHandle
	r.nextHandle++
	r.logger.WithField("uuid", u.String()).Debug("service added")
	return handle, nil
}

// AddCharacteristic implements ble.Radio.
func (r *Radio) AddCharacteristic(service uint16, opts ble.CharacteristicOptions) (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle := r.nextHandle
	r.nextHandle++
	r.chars = append(r.chars, characteristic{handle: handle, opts: opts})
	r.logger.WithFields(log.Fields{
		"uuid":   opts.UUID.String(),
		"handle": handle,
	}).Debug("characteristic added")
	return handle, nil
}

// Notify implements ble.Radio. Frames are carried to the attached central
// over its net.Conn. Sends against a missing or stale connection fail the
// way a real stack fails, so the flush path can swallow them.
func (r *Radio) Notify(conn ble.Connection, char uint16, data []byte) error {
	r.mu.Lock()
	if r.conn == nil {
		r.mu.Unlock()
		return ble.ErrInvalidState
	}
	if conn != r.connHandle {
		r.mu.Unlock()
		return ble.ErrInvalidConnHandle
	}
	var opts ble.CharacteristicOptions
	for _, c := range r.chars {
		if c.handle == char {
			opts = c.opts
		}
	}
	w := r.conn
	r.mu.Unlock()

	if !opts.Flags.Notify() {
		return ble.Error(7) // invalid parameter
	}
	if _, err := w.Write(data); err != nil {
		// The link died mid-send; the disconnect event is on its way.
		return ble.ErrInvalidState
	}
	return nil
}

// RequestConnParamUpdate implements ble.Radio.
func (r *Radio) RequestConnParamUpdate(conn ble.Connection) error {
	r.mu.Lock()
	params := r.connParams
	r.mu.Unlock()
	r.logger.WithFields(log.Fields{
		"conn":     uint16(conn),
		"interval": uint32(params.MinInterval),
		"latency":  params.SlaveLatency,
	}).Debug("connection parameter update requested")
	return nil
}

// ReplyMTUExchange implements ble.Radio.
func (r *Radio) ReplyMTUExchange(conn ble.Connection, serverMTU uint16) error {
	r.mu.Lock()
	r.serverMTU = serverMTU
	r.mu.Unlock()
	r.logger.WithFields(log.Fields{"conn": uint16(conn), "server_mtu": serverMTU}).
		Debug("mtu exchange reply")
	return nil
}

// ReplyPHYAuto implements ble.Radio.
func (r *Radio) ReplyPHYAuto(conn ble.Connection) error {
	return nil
}

// ReplyPairingNotSupported implements ble.Radio.
func (r *Radio) ReplyPairingNotSupported(conn ble.Connection) error {
	r.logger.WithField("conn", uint16(conn)).Info("pairing request declined")
	return nil
}

// RestoreSystemAttributes implements ble.Radio.
func (r *Radio) RestoreSystemAttributes(conn ble.Connection) error {
	return nil
}

// Disconnect implements ble.Radio. Closing the conn makes the read loop
// deliver the disconnect event, mirroring how a real stack reports the
// teardown it was asked for.
func (r *Radio) Disconnect(conn ble.Connection, reason ble.DisconnectReason) error {
	r.mu.Lock()
	c := r.conn
	stale := conn != r.connHandle
	r.mu.Unlock()
	if c == nil {
		return ble.ErrInvalidState
	}
	if stale {
		return ble.ErrInvalidConnHandle
	}
	return c.Close()
}

// writableChar returns the handle central writes land on: the registered
// characteristic accepting writes.
func (r *Radio) writableChar() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chars {
		if c.opts.Flags.Write() || c.opts.Flags.WriteWithoutResponse() {
			return c.handle
		}
	}
	return 0
}

// Attach connects a simulated central over conn. The central immediately
// performs an MTU exchange asking for clientMTU (0 skips the exchange, as
// some centrals do). Only one central may be attached at a time.
func (r *Radio) Attach(conn net.Conn, clientMTU uint16) error {
	r.mu.Lock()
	if r.sink == nil {
		r.mu.Unlock()
		return errNotBound
	}
	if r.conn != nil {
		r.mu.Unlock()
		return errBusy
	}
	handle := ble.Connection(r.nextConn)
	r.nextConn++
	r.conn = conn
	r.connHandle = handle
	// Connecting stops the advertising set, like a real radio does.
	r.advertising = false
	sink := r.sink
	r.mu.Unlock()

	logger := r.logger.WithFields(log.Fields{
		"session": uuid.New().String(),
		"conn":    uint16(handle),
	})
	logger.Info("central connected")

	sink.HandleEvent(ble.ConnectEvent{Conn: handle})
	if clientMTU != 0 {
		sink.HandleEvent(ble.MTUExchangeRequestEvent{Conn: handle, ClientMTU: clientMTU})
	}

	go r.readLoop(conn, handle, sink, logger)
	return nil
}

// readLoop turns inbound conn data into characteristic writes until the
// conn dies, then reports the disconnection.
func (r *Radio) readLoop(conn net.Conn, handle ble.Connection, sink EventSink, logger *log.Entry) {
	rxChar := r.writableChar()
	buf := make([]byte, 512)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			sink.HandleEvent(ble.WriteEvent{Conn: handle, Char: rxChar, Data: buf[:n]})
		}
		if err != nil {
			break
		}
	}

	r.mu.Lock()
	if r.connHandle == handle {
		r.conn = nil
	}
	r.mu.Unlock()
	conn.Close()

	logger.Info("central disconnected")
	sink.HandleEvent(ble.DisconnectEvent{Conn: handle})
}

// Serve accepts centrals from l, one at a time, attaching each with the
// given client MTU. It returns when the listener closes.
func (r *Radio) Serve(l net.Listener, clientMTU uint16) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		if err := r.Attach(conn, clientMTU); err != nil {
			r.logger.WithError(err).Warn("rejecting central")
			conn.Close()
		}
	}
}
