package settings

import (
	"errors"
	"fmt"

	"x-wireless/internal/radioinfo"
)

// Preference keys on the wireless screen
const (
	KeyToggleAirplane   = "toggle_airplane"
	KeyToggleWifi       = "toggle_wifi"
	KeyToggleBluetooth  = "toggle_bluetooth"
	KeyToggleTethering  = "toggle_tethering"
	KeyWifiSettings     = "wifi_settings"
	KeyBluetoothSetting = "bt_settings"
	KeyVpnSettings      = "vpn_settings"
	KeyProxySetting     = "proxy_setting"
	KeyRadioInfoType    = radioinfo.KeyType
	KeyRadioInfoStatus  = radioinfo.KeyStatus
)

var (
	ErrUnknownPreference = errors.New("unknown preference")
	ErrNotCheckable      = errors.New("preference is not a checkbox")
)

// Preference is one row of the screen
type Preference struct {
	Key        string
	Title      string
	Summary    string
	Checkable  bool
	Checked    bool
	Dependency string // key of a checkbox that disables this row when checked

	enabled bool
}

// SetText sets the row summary
func (p *Preference) SetText(text string) error {
	p.Summary = text
	return nil
}

// SetEnabled sets the row's own enabled flag
func (p *Preference) SetEnabled(enabled bool) {
	p.enabled = enabled
}

// PreferenceView is a read-only copy of a row
type PreferenceView struct {
	Key       string `json:"key"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Checkable bool   `json:"checkable"`
	Checked   bool   `json:"checked"`
	Enabled   bool   `json:"enabled"`
}

// layout is the screen in display order
var layout = []Preference{
	{Key: KeyToggleAirplane, Title: "Airplane mode", Summary: "Disable all wireless connections", Checkable: true},
	{Key: KeyToggleWifi, Title: "Wi-Fi", Summary: "Turn on Wi-Fi", Checkable: true},
	{Key: KeyWifiSettings, Title: "Wi-Fi settings", Summary: "Set up & manage wireless access points"},
	{Key: KeyToggleBluetooth, Title: "Bluetooth", Summary: "Turn on Bluetooth", Checkable: true},
	{Key: KeyBluetoothSetting, Title: "Bluetooth settings", Summary: "Manage connections, set device name & discoverability"},
	{Key: KeyToggleTethering, Title: "Tethering", Summary: "Share this device's connection over a Wi-Fi hotspot", Checkable: true},
	{Key: KeyVpnSettings, Title: "VPN settings", Summary: "Set up & manage Virtual Private Networks (VPNs)"},
	{Key: KeyProxySetting, Title: "Proxy settings", Summary: "Set the global HTTP proxy"},
	{Key: KeyRadioInfoType, Title: "Radio type"},
	{Key: KeyRadioInfoStatus, Title: "Radio status"},
}

// tree is the set of rows currently on the screen
type tree struct {
	prefs map[string]*Preference
	order []string
}

func newTree(hidden []string) *tree {
	skip := make(map[string]bool, len(hidden))
	for _, k := range hidden {
		skip[k] = true
	}

	t := &tree{prefs: make(map[string]*Preference)}
	for _, p := range layout {
		if skip[p.Key] {
			continue
		}
		p := p
		p.enabled = true
		t.prefs[p.Key] = &p
		t.order = append(t.order, p.Key)
	}
	return t
}

// find returns the row for key, or nil if it is not on the screen
func (t *tree) find(key string) *Preference {
	return t.prefs[key]
}

// Target implements radioinfo.Lookup
func (t *tree) Target(key string) (radioinfo.Target, error) {
	p := t.find(key)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", radioinfo.ErrTargetNotFound, key)
	}
	return p, nil
}

// isEnabled reports whether a row is enabled, following its dependency
func (t *tree) isEnabled(p *Preference) bool {
	if !p.enabled {
		return false
	}
	if p.Dependency == "" {
		return true
	}
	dep := t.find(p.Dependency)
	if dep == nil {
		return true
	}
	return !dep.Checked && t.isEnabled(dep)
}

func (t *tree) views() []PreferenceView {
	out := make([]PreferenceView, 0, len(t.order))
	for _, k := range t.order {
		p := t.prefs[k]
		out = append(out, PreferenceView{
			Key:       p.Key,
			Title:     p.Title,
			Summary:   p.Summary,
			Checkable: p.Checkable,
			Checked:   p.Checked,
			Enabled:   t.isEnabled(p),
		})
	}
	return out
}
