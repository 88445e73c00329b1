package ble

// CharacteristicPermissions are the permission flags of a characteristic.
type CharacteristicPermissions uint8

const (
	// CharacteristicWritePermission allows writes with response.
	CharacteristicWritePermission CharacteristicPermissions = 1 << iota
	// CharacteristicWriteWithoutResponsePermission allows unacknowledged
	// writes.
	CharacteristicWriteWithoutResponsePermission
	// CharacteristicNotifyPermission allows server-initiated notifications.
	CharacteristicNotifyPermission
	// CharacteristicReadPermission allows reads of the stored value.
	CharacteristicReadPermission
)

// Write returns whether the write-with-response flag is set.
func (p CharacteristicPermissions) Write() bool {
	return p&CharacteristicWritePermission != 0
}

// WriteWithoutResponse returns whether the write-without-response flag is
// set.
func (p CharacteristicPermissions) WriteWithoutResponse() bool {
	return p&CharacteristicWriteWithoutResponsePermission != 0
}

// Notify returns whether the notify flag is set.
func (p CharacteristicPermissions) Notify() bool {
	return p&CharacteristicNotifyPermission != 0
}

// Read returns whether the read flag is set.
func (p CharacteristicPermissions) Read() bool {
	return p&CharacteristicReadPermission != 0
}

// CharacteristicOptions describe one characteristic registered with
// Radio.AddCharacteristic.
type CharacteristicOptions struct {
	UUID      UUID
	Flags     CharacteristicPermissions
	MaxLength uint16
}
