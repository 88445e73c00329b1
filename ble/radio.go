package ble

import "time"

// Connection identifies an active link, as assigned by the radio stack.
type Connection uint16

// ConnectionInvalid is the sentinel for "no connection". The device runs in
// the peripheral role with at most one active connection at a time.
const ConnectionInvalid Connection = 0xFFFF

// AdvertisingHandle identifies a configured advertising set. It is stable
// across connections.
type AdvertisingHandle uint8

// AdvertisingHandleNotSet is the sentinel for an unconfigured advertising
// set.
const AdvertisingHandleNotSet AdvertisingHandle = 0xFF

// Duration is a time duration in BLE-specific units of 0.625 ms, the
// granularity of advertising intervals. Connection intervals (1.25 ms units)
// and supervision timeouts (10 ms units) are derived from it by the radio.
type Duration uint32

// NewDuration returns a BLE duration for the given time.Duration, rounded
// down to 0.625 ms units.
func NewDuration(d time.Duration) Duration {
	return Duration(d / (625 * time.Microsecond))
}

// ConnectionParams are the preferred peripheral connection parameters
// requested from the central after every connection.
type ConnectionParams struct {
	MinInterval  Duration // 15 ms on this device, same as MaxInterval
	MaxInterval  Duration
	SlaveLatency uint16
	Timeout      Duration // supervision timeout
}

// AdvertisingParams configure the advertising set. Advertising is always
// connectable + scannable undirected with automatic PHY selection.
type AdvertisingParams struct {
	Interval Duration
}

// DisconnectReason is the HCI reason code passed when forcing a disconnect.
type DisconnectReason uint8

// ReasonRemoteUserTerminated is the reason used when this device tears the
// link down, for example after a GATT server timeout.
const ReasonRemoteUserTerminated DisconnectReason = 0x13

// Radio is the downward interface to the radio stack. On the device this is
// the vendor BLE stack; hosts substitute a simulated central. All methods
// may be called from the application context; the radio delivers its Events
// from its own context.
//
// Methods return ble.Error values for stack-level failures so callers can
// distinguish transient conditions (ErrResources) and disconnection races
// (ErrInvalidState, ErrInvalidConnHandle) from fatal ones.
type Radio interface {
	// SetDeviceName sets the GAP device name visible to the peer.
	SetDeviceName(name string) error

	// SetPreferredConnParams stores the peripheral preferred connection
	// parameters later requested through RequestConnParamUpdate.
	SetPreferredConnParams(params ConnectionParams) error

	// ConfigureAdvertising sets up (or replaces) the advertising set with a
	// raw advertising payload of at most 31 bytes.
	ConfigureAdvertising(payload []byte, params AdvertisingParams) (AdvertisingHandle, error)

	// StartAdvertising makes the device discoverable. The radio stops
	// advertising on its own when a central connects.
	StartAdvertising(handle AdvertisingHandle) error

	// StopAdvertising stops the advertising set.
	StopAdvertising(handle AdvertisingHandle) error

	// AddService registers a primary service and returns its handle.
	AddService(uuid UUID) (uint16, error)

	// AddCharacteristic registers a characteristic under the given service
	// and returns its value handle.
	AddCharacteristic(service uint16, opts CharacteristicOptions) (uint16, error)

	// Notify pushes one unacknowledged notification frame to the central.
	Notify(conn Connection, char uint16, data []byte) error

	// RequestConnParamUpdate asks the central to adopt the preferred
	// connection parameters.
	RequestConnParamUpdate(conn Connection) error

	// ReplyMTUExchange answers an MTU exchange request with this device's
	// maximum supported ATT MTU.
	ReplyMTUExchange(conn Connection, serverMTU uint16) error

	// ReplyPHYAuto answers a PHY update request accepting automatic PHY
	// selection in both directions.
	ReplyPHYAuto(conn Connection) error

	// ReplyPairingNotSupported declines a security parameters request.
	ReplyPairingNotSupported(conn Connection) error

	// RestoreSystemAttributes re-initializes the peer's system attributes
	// after a connection without stored attribute state.
	RestoreSystemAttributes(conn Connection) error

	// Disconnect tears down the link with the given reason.
	Disconnect(conn Connection, reason DisconnectReason) error
}

// Event is a single radio stack event, delivered to Stack.HandleEvent. The
// concrete types below form a tagged union over everything the peripheral
// role can observe.
type Event interface {
	event()
}

// ConnectEvent reports that a central connected.
type ConnectEvent struct {
	Conn Connection
}

// DisconnectEvent reports that the link was lost or closed.
type DisconnectEvent struct {
	Conn Connection
}

// PHYUpdateRequestEvent reports that the central asked to change the PHY.
type PHYUpdateRequestEvent struct {
	Conn Connection
}

// MTUExchangeRequestEvent reports that the central started an ATT MTU
// exchange, asking for ClientMTU.
type MTUExchangeRequestEvent struct {
	Conn      Connection
	ClientMTU uint16
}

// WriteEvent reports a characteristic write from the central. Data is only
// valid for the duration of the event.
type WriteEvent struct {
	Conn Connection
	Char uint16
	Data []byte
}

// GATTServerTimeoutEvent reports that the peer stopped responding to a
// server-initiated exchange.
type GATTServerTimeoutEvent struct {
	Conn Connection
}

// GATTClientTimeoutEvent reports a GATT client procedure timeout. It cannot
// occur in the peripheral-only role.
type GATTClientTimeoutEvent struct {
	Conn Connection
}

// SecurityParamsRequestEvent reports that the central asked to pair.
type SecurityParamsRequestEvent struct {
	Conn Connection
}

// SystemAttributesMissingEvent reports that the peer's system attribute
// state must be initialized.
type SystemAttributesMissingEvent struct {
	Conn Connection
}

func (ConnectEvent) event()                 {}
func (DisconnectEvent) event()              {}
func (PHYUpdateRequestEvent) event()        {}
func (MTUExchangeRequestEvent) event()      {}
func (WriteEvent) event()                   {}
func (GATTServerTimeoutEvent) event()       {}
func (GATTClientTimeoutEvent) event()       {}
func (SecurityParamsRequestEvent) event()   {}
func (SystemAttributesMissingEvent) event() {}
