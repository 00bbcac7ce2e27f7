// Package connectivity reports the active network from daemon state.
package connectivity

import (
	"x-wireless/internal/radioinfo"
	"x-wireless/internal/state"
)

// Type names reported for the active network
const (
	TypeWifi     = "WIFI"
	TypeUSB      = "USB"
	TypeEthernet = "ETHERNET"
)

// Provider reads the active network from the state manager.
// Every call reads fresh state; nothing is cached.
type Provider struct {
	stateMgr *state.Manager
}

// NewProvider creates a provider backed by stateMgr
func NewProvider(stateMgr *state.Manager) *Provider {
	return &Provider{stateMgr: stateMgr}
}

// ActiveNetwork returns the active network, or nil if none is active
func (p *Provider) ActiveNetwork() *radioinfo.Snapshot {
	st := p.stateMgr.Get()
	return ActiveNetwork(&st)
}

// ActiveNetwork picks the primary network for st.
// Connected links win over merely available ones; among connected links
// WiFi is preferred, then USB tethering, then ethernet.
func ActiveNetwork(st *state.State) *radioinfo.Snapshot {
	wifiUp := st.WifiEnabled && !st.HotspotActive

	switch {
	case wifiUp && st.ConnectionState == state.StateConnected:
		return wifiSnapshot(st, true)
	case st.UsbTetheringConnected:
		return &radioinfo.Snapshot{TypeName: TypeUSB, Connected: true, Available: true}
	case st.ConnectionType == "ethernet" && st.InterfaceName != "":
		return &radioinfo.Snapshot{
			TypeName:  TypeEthernet,
			Connected: st.IpAddress != "",
			Available: true,
		}
	case wifiUp && (st.ConnectionState == state.StateConnecting || st.ConnectionState == state.StateObtaining):
		return wifiSnapshot(st, false)
	case st.UsbTetheringAvailable:
		return &radioinfo.Snapshot{TypeName: TypeUSB, Available: true}
	}
	return nil
}

func wifiSnapshot(st *state.State, connected bool) *radioinfo.Snapshot {
	return &radioinfo.Snapshot{
		TypeName:    TypeWifi,
		SubtypeName: state.FrequencyToBand(st.Frequency),
		Connected:   connected,
		Available:   true,
		Roaming:     st.Roaming,
	}
}
