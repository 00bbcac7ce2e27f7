package iwd

import (
	"errors"

	"x-wireless/internal/state"
)

// ErrNoStation is returned when iwd has no WiFi station
var ErrNoStation = errors.New("no WiFi station")

// WifiRadio is the Wi-Fi toggle
type WifiRadio struct {
	client *Client
}

// WifiRadio returns the Wi-Fi toggle backed by c
func (c *Client) WifiRadio() *WifiRadio {
	return &WifiRadio{client: c}
}

// Enabled reports whether the device is powered
func (r *WifiRadio) Enabled() (bool, error) {
	return enabled(r.client.stateMgr, func(st *state.State) bool { return st.WifiEnabled })
}

// SetEnabled powers the device on or off
func (r *WifiRadio) SetEnabled(on bool) error {
	return r.client.SetWifiEnabled(on)
}

// Hotspot is the tethering toggle; it runs an iwd access point
type Hotspot struct {
	client     *Client
	ssid       string
	passphrase string
}

// Hotspot returns the tethering toggle backed by c
func (c *Client) Hotspot(ssid, passphrase string) *Hotspot {
	return &Hotspot{client: c, ssid: ssid, passphrase: passphrase}
}

// Enabled reports whether the access point is running
func (h *Hotspot) Enabled() (bool, error) {
	return enabled(h.client.stateMgr, func(st *state.State) bool { return st.HotspotActive })
}

// SetEnabled starts or stops the access point
func (h *Hotspot) SetEnabled(on bool) error {
	if on {
		return h.client.StartHotspot(h.ssid, h.passphrase)
	}
	return h.client.StopHotspot()
}

func enabled(stateMgr *state.Manager, get func(*state.State) bool) (bool, error) {
	st := stateMgr.Get()
	if !st.WifiAvailable {
		return false, ErrNoStation
	}
	return get(&st), nil
}
