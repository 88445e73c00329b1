package ble

import (
	"errors"
	"sync/atomic"
	"time"
)

var errAdvertisementPacketTooBig = errors.New("bluetooth: advertisement packet overflows")

// Advertising data types, as defined by the Bluetooth assigned numbers.
const (
	adTypeFlags                  = 0x01
	adTypeCompleteList16BitUUID  = 0x03
	adTypeCompleteList128BitUUID = 0x07
	adTypeCompleteLocalName      = 0x09
)

// Flags: LE General Discoverable Mode | BR/EDR Not Supported.
const adFlagsGeneralDiscoverableLEOnly = 0x06

// AdvertisementOptions configures everything related to BLE advertisements.
type AdvertisementOptions struct {
	// LocalName is the name advertised as the Complete Local Name.
	LocalName string

	// ServiceUUIDs advertised as a complete service UUID list.
	ServiceUUIDs []UUID

	// Interval in BLE-specific units. Advertising is restarted with the same
	// interval after every disconnection.
	Interval Duration
}

// rawAdvertisementPayload encapsulates the raw AD-structure payload of one
// advertising packet.
type rawAdvertisementPayload struct {
	data [31]byte
	len  uint8
}

// Bytes returns the raw advertisement packet as a byte slice.
func (buf *rawAdvertisementPayload) Bytes() []byte {
	return buf.data[:buf.len]
}

// reset restores this buffer to its original (zero length) state.
func (buf *rawAdvertisementPayload) reset() {
	buf.len = 0
}

// addFromOptions constructs a new advertisement payload (assumed to be
// empty before this call) that advertises the given options. It returns
// true on success and false when the payload doesn't fit.
func (buf *rawAdvertisementPayload) addFromOptions(options AdvertisementOptions) bool {
	buf.addFlags(adFlagsGeneralDiscoverableLEOnly)
	if options.LocalName != "" {
		if !buf.addCompleteLocalName(options.LocalName) {
			return false
		}
	}
	for _, uuid := range options.ServiceUUIDs {
		if !buf.addServiceUUID(uuid) {
			return false
		}
	}
	return true
}

// addFlags adds a flags field to the advertisement buffer. It returns false
// when the field doesn't fit.
func (buf *rawAdvertisementPayload) addFlags(flags byte) bool {
	if int(buf.len)+3 > len(buf.data) {
		return false
	}
	buf.data[buf.len+0] = 2
	buf.data[buf.len+1] = adTypeFlags
	buf.data[buf.len+2] = flags
	buf.len += 3
	return true
}

// addCompleteLocalName adds the Complete Local Name field. It returns false
// when the name doesn't fit.
func (buf *rawAdvertisementPayload) addCompleteLocalName(name string) bool {
	if int(buf.len)+len(name)+2 > len(buf.data) {
		return false
	}
	buf.data[buf.len+0] = byte(len(name) + 1)
	buf.data[buf.len+1] = adTypeCompleteLocalName
	copy(buf.data[buf.len+2:], name)
	buf.len += byte(len(name) + 2)
	return true
}

// addServiceUUID adds a service UUID, in the compact 16-bit encoding when
// possible. It returns false when the field doesn't fit.
func (buf *rawAdvertisementPayload) addServiceUUID(uuid UUID) bool {
	if uuid.Is16Bit() {
		if int(buf.len)+4 > len(buf.data) {
			return false
		}
		short := uuid.Get16Bit()
		buf.data[buf.len+0] = 3
		buf.data[buf.len+1] = adTypeCompleteList16BitUUID
		buf.data[buf.len+2] = byte(short)
		buf.data[buf.len+3] = byte(short >> 8)
		buf.len += 4
		return true
	}
	if int(buf.len)+18 > len(buf.data) {
		return false
	}
	raw := uuid.Bytes()
	buf.data[buf.len+0] = 17
	buf.data[buf.len+1] = adTypeCompleteList128BitUUID
	copy(buf.data[buf.len+2:], raw[:])
	buf.len += 18
	return true
}

// Advertisement encapsulates the single advertising set of the device. The
// set is configured once and restarted as needed; the payload stays in scope
// between connections.
type Advertisement struct {
	radio         Radio
	handle        AdvertisingHandle
	isAdvertising atomic.Bool
	payload       rawAdvertisementPayload
}

// Configure builds the advertising payload and registers the set with the
// radio.
func (a *Advertisement) Configure(options AdvertisementOptions) error {
	if options.Interval == 0 {
		options.Interval = NewDuration(20 * time.Millisecond)
	}

	// The payload lives on the Advertisement because the radio may refer to
	// it after ConfigureAdvertising returns.
	a.payload.reset()
	if !a.payload.addFromOptions(options) {
		return errAdvertisementPacketTooBig
	}

	handle, err := a.radio.ConfigureAdvertising(a.payload.Bytes(), AdvertisingParams{
		Interval: options.Interval,
	})
	if err != nil {
		return err
	}
	a.handle = handle
	return nil
}

// Start makes the device discoverable. May only be called after Configure.
func (a *Advertisement) Start() error {
	a.isAdvertising.Store(true)
	return a.radio.StartAdvertising(a.handle)
}

// Stop stops the advertising set.
func (a *Advertisement) Stop() error {
	a.isAdvertising.Store(false)
	return a.radio.StopAdvertising(a.handle)
}
