package ble

import (
	"errors"
	"sync/atomic"
	"time"

	"lensfw/ringbuf"
)

const (
	// DefaultMaxMTU is the largest ATT MTU this device offers during an MTU
	// exchange.
	DefaultMaxMTU = 128

	// defaultATTMTU is the pre-negotiation ATT MTU that every link supports.
	defaultATTMTU = 23

	// attOverhead is the ATT opcode plus attribute handle carried by every
	// notification and write PDU.
	attOverhead = 3
)

var errNoServiceUUID = errors.New("bluetooth: console service UUID not set")

// Config describes the one-time setup of the peripheral.
type Config struct {
	// DeviceName is advertised as the Complete Local Name and set as the
	// GAP device name.
	DeviceName string

	// ServiceUUID is the 128-bit UUID of the console service. RxCharUUID
	// receives central writes, TxCharUUID carries notifications out.
	ServiceUUID UUID
	RxCharUUID  UUID
	TxCharUUID  UUID

	// MaxMTU is the largest ATT MTU offered during MTU exchange. Defaults
	// to DefaultMaxMTU.
	MaxMTU uint16

	// AdvertisingInterval defaults to 20 ms.
	AdvertisingInterval Duration

	// ConnParams are the preferred peripheral connection parameters.
	// Defaults to 15 ms interval (min = max), slave latency 3, supervision
	// timeout 2000 ms.
	ConnParams ConnectionParams

	// BufferSize is the usable capacity of each console ring buffer.
	// Defaults to ringbuf.ConsoleSize.
	BufferSize int
}

// Stack is the peripheral core: it owns the connection state, the console
// ring buffers, and the advertising set, and it consumes the radio's events.
//
// Connection state is written only from the radio event context
// (HandleEvent) and read from the application context; readers tolerate
// transient staleness instead of locking, which is why send failures against
// a stale handle are swallowed in Flush.
type Stack struct {
	radio Radio
	cfg   Config

	adv            *Advertisement
	rxChar, txChar uint16

	conn atomic.Uint32 // holds a Connection
	mtu  atomic.Uint32 // usable payload bytes per notification

	rx *ringbuf.Buffer // central writes, application reads
	tx *ringbuf.Buffer // application writes, Flush reads

	// frame is the scratch buffer Flush assembles notifications in. Flush
	// only runs from the application context, so one buffer suffices.
	frame []byte

	// wake is signalled on every radio event so ReadByte can park in a
	// low-power wait while both directions are idle.
	wake chan struct{}
}

// NewStack configures the radio for the peripheral role and starts
// advertising. Any failure during this one-time setup leaves the stack
// unusable; callers treat it as fatal.
func NewStack(radio Radio, cfg Config) (*Stack, error) {
	if cfg.ServiceUUID == (UUID{}) {
		return nil, errNoServiceUUID
	}
	if cfg.MaxMTU == 0 {
		cfg.MaxMTU = DefaultMaxMTU
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = ringbuf.ConsoleSize
	}
	if cfg.ConnParams == (ConnectionParams{}) {
		cfg.ConnParams = ConnectionParams{
			MinInterval:  NewDuration(15 * time.Millisecond),
			MaxInterval:  NewDuration(15 * time.Millisecond),
			SlaveLatency: 3,
			Timeout:      NewDuration(2000 * time.Millisecond),
		}
	}

	s := &Stack{
		radio: radio,
		cfg:   cfg,
		rx:    ringbuf.New(cfg.BufferSize),
		tx:    ringbuf.New(cfg.BufferSize),
		frame: make([]byte, cfg.MaxMTU),
		wake:  make(chan struct{}, 1),
	}
	s.conn.Store(uint32(ConnectionInvalid))
	s.mtu.Store(defaultATTMTU - attOverhead)
	s.adv = &Advertisement{radio: radio, handle: AdvertisingHandleNotSet}

	if err := s.setup(); err != nil {
		return nil, err
	}
	return s, nil
}

// setup performs the one-shot radio configuration: GAP name and parameters,
// the console service with its two characteristics, and the advertising set.
func (s *Stack) setup() error {
	if err := s.radio.SetDeviceName(s.cfg.DeviceName); err != nil {
		return err
	}
	if err := s.radio.SetPreferredConnParams(s.cfg.ConnParams); err != nil {
		return err
	}

	service, err := s.radio.AddService(s.cfg.ServiceUUID)
	if err != nil {
		return err
	}
	s.rxChar, err = s.radio.AddCharacteristic(service, CharacteristicOptions{
		UUID:      s.cfg.RxCharUUID,
		Flags:     CharacteristicWritePermission | CharacteristicWriteWithoutResponsePermission,
		MaxLength: s.cfg.MaxMTU - attOverhead,
	})
	if err != nil {
		return err
	}
	s.txChar, err = s.radio.AddCharacteristic(service, CharacteristicOptions{
		UUID:      s.cfg.TxCharUUID,
		Flags:     CharacteristicNotifyPermission,
		MaxLength: s.cfg.MaxMTU - attOverhead,
	})
	if err != nil {
		return err
	}

	if err := s.adv.Configure(AdvertisementOptions{
		LocalName:    s.cfg.DeviceName,
		ServiceUUIDs: []UUID{s.cfg.ServiceUUID},
		Interval:     s.cfg.AdvertisingInterval,
	}); err != nil {
		return err
	}
	return s.adv.Start()
}

// Advertisement returns the device's single advertising set.
func (s *Stack) Advertisement() *Advertisement {
	return s.adv
}

// Connection returns the handle of the active link, or ConnectionInvalid.
func (s *Stack) Connection() Connection {
	return Connection(s.conn.Load())
}

// Connected reports whether a central is currently connected. The result may
// be stale by the time it is used; callers must tolerate disconnection races.
func (s *Stack) Connected() bool {
	return s.Connection() != ConnectionInvalid
}

// NegotiatedMTU returns the usable notification payload size: the negotiated
// ATT MTU minus protocol overhead, or the default-safe value before an MTU
// exchange completes.
func (s *Stack) NegotiatedMTU() uint16 {
	return uint16(s.mtu.Load())
}

// HandleEvent consumes one radio event. It is called from the radio's event
// delivery context and is the only writer of the connection state.
//
// Replies that fail for transient reasons are not retried here; only the
// notification flush path retries. Any other radio failure panics.
func (s *Stack) HandleEvent(ev Event) {
	switch ev := ev.(type) {
	case ConnectEvent:
		if debug {
			println("evt: connected", uint16(ev.Conn))
		}
		s.conn.Store(uint32(ev.Conn))
		// The radio stopped the advertising set when the central connected.
		s.adv.isAdvertising.Store(false)
		// Ask the central to adopt the preferred peripheral parameters.
		// Idempotent negotiation courtesy; the central may ignore it.
		assertRadio(s.radio.RequestConnParamUpdate(ev.Conn))

	case DisconnectEvent:
		if debug {
			println("evt: disconnected")
		}
		s.conn.Store(uint32(ConnectionInvalid))
		// The negotiated MTU belongs to the link that just went away.
		s.mtu.Store(defaultATTMTU - attOverhead)
		// The device must always be discoverable when not connected.
		assertRadio(s.adv.Start())

	case PHYUpdateRequestEvent:
		assertRadio(s.radio.ReplyPHYAuto(ev.Conn))

	case MTUExchangeRequestEvent:
		assertRadio(s.radio.ReplyMTUExchange(ev.Conn, s.cfg.MaxMTU))
		mtu := s.cfg.MaxMTU
		if ev.ClientMTU < mtu {
			mtu = ev.ClientMTU
		}
		s.mtu.Store(uint32(mtu - attOverhead))
		if debug {
			println("evt: mtu exchanged, payload", mtu-attOverhead)
		}

	case WriteEvent:
		if ev.Char == s.rxChar {
			s.handleWrite(ev.Data)
		}

	case GATTServerTimeoutEvent:
		assertRadio(s.radio.Disconnect(ev.Conn, ReasonRemoteUserTerminated))

	case GATTClientTimeoutEvent:
		// The device never runs GATT client procedures.
		panic("bluetooth: GATT client timeout: not reached")

	case SecurityParamsRequestEvent:
		assertRadio(s.radio.ReplyPairingNotSupported(ev.Conn))

	case SystemAttributesMissingEvent:
		assertRadio(s.radio.RestoreSystemAttributes(ev.Conn))

	default:
		// Unused events are ignored.
	}

	// Wake the console facade: any event may have made progress possible.
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// handleWrite drains an inbound characteristic write into the receive
// buffer. Bytes beyond the buffer capacity are dropped silently: there is no
// backpressure signal to the peer. Known limitation, kept from the original
// protocol.
func (s *Stack) handleWrite(data []byte) {
	for _, c := range data {
		if s.rx.Full() {
			break
		}
		s.rx.Push(c)
	}
}
