package models

// RawDevice is a single device entry as received from the caller.
// The MAC address exists only for the lifetime of one request and is
// hashed before any other component sees the device.
type RawDevice struct {
	Mac      string `json:"mac"`
	Signal   int    `json:"signal"`
	Hostname string `json:"hostname"`
}

// DeviceObservation is the sanitized form of a RawDevice. DeviceID is
// derived from a one-way hash of the MAC; the raw address is not retained.
type DeviceObservation struct {
	DeviceID string `json:"device_id"`
	Signal   int    `json:"signal"`
	Hostname string `json:"hostname"`
}

// GroupingRequest is the payload for POST /vlan-group.
type GroupingRequest struct {
	SSIDs   []string    `json:"ssids"`
	Devices []RawDevice `json:"devices"`
}
