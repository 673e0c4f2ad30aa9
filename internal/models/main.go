// Package models defines the simulated device and the two payloads it emits.
package models

// Fixed tags carried by every payload.
const (
	// DeviceType is the type tag of every simulated device.
	DeviceType = "SMART_BIN"
	// ActionRegister tags the plaintext registration payload.
	ActionRegister = "REGISTER"
	// ActionScan tags the encrypted scan payload.
	ActionScan = "SCAN"
)

// State is the lifecycle position of a device's scan payload.
type State string

const (
	// StateCreated means the payload pair exists but the scan payload has no
	// encoded form for the current unique code.
	StateCreated State = "created"
	// StateScanEncoded means Device.EncodedScan matches Device.UniqueCode.
	StateScanEncoded State = "scan-encoded"
)

// RegisterPayload announces a device. It is rendered as plain JSON and never encrypted.
type RegisterPayload struct {
	DeviceID string         `json:"deviceId"`
	Action   string         `json:"action"`
	Type     string         `json:"type"`
	Metadata map[string]any `json:"metadata"`
}

// ScanPayload represents a scan event. It is always encrypted before rendering.
type ScanPayload struct {
	DeviceID   string `json:"deviceId"`
	Type       string `json:"type"`
	Action     string `json:"action"`
	UniqueCode uint64 `json:"uniqueCode"`
}

// Device is a simulated smart bin held in memory for the session.
type Device struct {
	// ID is immutable after creation.
	ID string `json:"id"`
	// UniqueCode is the replay-distinguishing nonce last issued to this device.
	UniqueCode uint64 `json:"uniqueCode"`
	// Register is the plaintext payload.
	Register RegisterPayload `json:"register"`
	// Scan mirrors UniqueCode in its UniqueCode field.
	Scan ScanPayload `json:"scan"`
	// EncodedScan is base64(IV || ciphertext) of Scan; empty while State is StateCreated.
	EncodedScan string `json:"encodedScan,omitempty"`
	// State is the scan payload lifecycle position.
	State State `json:"state"`
}

// NewDevice builds a device and its payload pair for the given id and initial code.
func NewDevice(id string, code uint64) *Device {
	return &Device{
		ID:         id,
		UniqueCode: code,
		Register: RegisterPayload{
			DeviceID: id,
			Action:   ActionRegister,
			Type:     DeviceType,
			Metadata: map[string]any{},
		},
		Scan: ScanPayload{
			DeviceID:   id,
			Type:       DeviceType,
			Action:     ActionScan,
			UniqueCode: code,
		},
		State: StateCreated,
	}
}

// SetUniqueCode assigns code to the device and re-synchronizes its scan payload.
// Any previously encoded scan form is invalidated.
func (d *Device) SetUniqueCode(code uint64) {
	d.UniqueCode = code
	d.Scan.UniqueCode = code
	d.EncodedScan = ""
	d.State = StateCreated
}

// Clone returns a deep copy safe to hand out of the registry.
func (d *Device) Clone() *Device {
	c := *d
	c.Register.Metadata = make(map[string]any, len(d.Register.Metadata))
	for k, v := range d.Register.Metadata {
		c.Register.Metadata[k] = v
	}
	return &c
}
