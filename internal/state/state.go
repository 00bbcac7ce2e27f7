package state

import (
	"sync"
)

// ConnectionState represents WiFi station state
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateObtaining    ConnectionState = "obtaining" // DHCP in progress
	StateConnected    ConnectionState = "connected"
	StateFailed       ConnectionState = "failed"
)

// State holds all radio and link state
type State struct {
	// Radios
	AirplaneMode       bool
	WifiEnabled        bool
	WifiAvailable      bool // iwd station present
	BluetoothEnabled   bool
	BluetoothAvailable bool // bluez adapter present
	HotspotActive      bool // Wi-Fi tethering (iwd AP mode)
	HotspotSSID        string

	// Telephony emergency callback mode; airplane toggles are held while set
	EmergencyCallbackMode bool

	// WiFi station
	ConnectionState ConnectionState
	Roaming         bool
	ActiveSSID      string
	ActiveSecurity  string
	SignalRSSI      int16
	SignalStrength  uint8
	Frequency       uint32

	// Network info
	InterfaceName string
	MacAddress    string
	IpAddress     string
	Gateway       string

	// Connection type
	ConnectionType string // "wifi", "ethernet", "usb"

	// USB Tethering state
	UsbInterfaceDetected  bool   // USB interface exists
	UsbTetheringAvailable bool   // Phone ready (carrier up)
	UsbTetheringConnected bool   // IP + route (actually usable)
	UsbInterfaceName      string // e.g., "enp0s26u1u2"
	UsbInterfaceIndex     uint32 // ifindex - stable identifier

	// Error reporting
	LastError string
}

// Manager manages state with thread-safe access
type Manager struct {
	mu        sync.RWMutex
	state     State
	listeners []func(*State)
}

// NewManager creates a new state manager
func NewManager() *Manager {
	return &Manager{
		state: State{
			ConnectionState: StateDisconnected,
		},
	}
}

// Subscribe registers a callback for state changes.
// Callbacks run on the updating goroutine, after the lock is released.
func (m *Manager) Subscribe(fn func(*State)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Get returns a copy of current state
func (m *Manager) Get() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Update atomically updates state and notifies listeners
func (m *Manager) Update(fn func(*State)) {
	m.mu.Lock()
	fn(&m.state)
	stateCopy := m.state
	listeners := m.listeners
	m.mu.Unlock()

	for _, l := range listeners {
		l(&stateCopy)
	}
}

// DBmToPercent converts RSSI to a percentage.
// Linear scale: -100 dBm = 0%, -50 dBm = 100%
func DBmToPercent(dBm int16) uint8 {
	if dBm <= -100 {
		return 0
	}
	if dBm >= -50 {
		return 100
	}
	return uint8(2 * (int(dBm) + 100))
}

// FrequencyToBand returns the band for a frequency in MHz, or "" if unknown
func FrequencyToBand(freq uint32) string {
	if freq >= 2400 && freq < 2500 {
		return "2.4GHz"
	}
	if freq >= 5000 && freq < 5925 {
		return "5GHz"
	}
	if freq >= 5925 && freq < 7200 {
		return "6GHz"
	}
	return ""
}
