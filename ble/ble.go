// Package ble implements the Bluetooth Low Energy peripheral core of the
// Lens firmware: the connection lifecycle state machine, MTU negotiation,
// the advertising and GATT service setup, and the byte-stream console
// multiplexed onto a write/notify characteristic pair.
//
// The package does not talk to a radio directly. It drives a Radio
// implementation (on the device, the vendor BLE stack; on a host, a
// simulated central) and consumes the Events that implementation delivers.
package ble

// Set to true to print debug traces of handled radio events.
const debug = false
