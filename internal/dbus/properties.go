package dbus

import (
	"x-wireless/internal/settings"
	"x-wireless/internal/state"

	"github.com/godbus/dbus/v5"
)

// Properties interface implementation for org.freedesktop.DBus.Properties

// PreferenceDBus is one screen row in D-Bus form, signature (sssbbb)
type PreferenceDBus struct {
	Key       string
	Title     string
	Summary   string
	Checkable bool
	Checked   bool
	Enabled   bool
}

// Get implements org.freedesktop.DBus.Properties.Get
func (s *Service) Get(iface, propName string) (dbus.Variant, *dbus.Error) {
	if iface != Interface {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.UnknownInterface", []interface{}{"Unknown interface"})
	}

	props, _ := s.GetAll(iface)
	v, ok := props[propName]
	if !ok {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.UnknownProperty", []interface{}{"Unknown property: " + propName})
	}
	return v, nil
}

// GetAll implements org.freedesktop.DBus.Properties.GetAll
func (s *Service) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != Interface {
		return nil, dbus.NewError("org.freedesktop.DBus.Error.UnknownInterface", []interface{}{"Unknown interface"})
	}

	st := s.stateMgr.Get()
	props := s.stateProps(&st)
	for k, v := range screenProps(s.screen.View()) {
		props[k] = v
	}
	return props, nil
}

// Set implements org.freedesktop.DBus.Properties.Set (read-only, returns error)
func (s *Service) Set(iface, propName string, value dbus.Variant) *dbus.Error {
	return dbus.NewError("org.freedesktop.DBus.Error.PropertyReadOnly", []interface{}{"Properties are read-only"})
}

func (s *Service) stateProps(st *state.State) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"AirplaneMode":          dbus.MakeVariant(st.AirplaneMode),
		"WifiEnabled":           dbus.MakeVariant(st.WifiEnabled),
		"BluetoothEnabled":      dbus.MakeVariant(st.BluetoothEnabled),
		"TetheringEnabled":      dbus.MakeVariant(st.HotspotActive),
		"EmergencyCallbackMode": dbus.MakeVariant(st.EmergencyCallbackMode),
		"ConnectionType":        dbus.MakeVariant(st.ConnectionType),
		"InterfaceName":         dbus.MakeVariant(st.InterfaceName),
		"IpAddress":             dbus.MakeVariant(st.IpAddress),
		"MacAddress":            dbus.MakeVariant(st.MacAddress),
		"Gateway":               dbus.MakeVariant(st.Gateway),
		"ActiveSSID":            dbus.MakeVariant(st.ActiveSSID),
		"ActiveSecurity":        dbus.MakeVariant(st.ActiveSecurity),
		"SignalRSSI":            dbus.MakeVariant(st.SignalRSSI),
		"SignalStrength":        dbus.MakeVariant(st.SignalStrength),
		"HotspotSSID":           dbus.MakeVariant(st.HotspotSSID),
		"LastError":             dbus.MakeVariant(st.LastError),
	}
}

func screenProps(v settings.View) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"RadioInfoType":   dbus.MakeVariant(v.RadioInfo.Type),
		"RadioInfoStatus": dbus.MakeVariant(v.RadioInfo.Status),
		"Preferences":     dbus.MakeVariant(preferencesToDBus(v.Preferences)),
	}
}

// preferencesToDBus converts screen rows to D-Bus format
func preferencesToDBus(prefs []settings.PreferenceView) []PreferenceDBus {
	result := make([]PreferenceDBus, len(prefs))
	for i, p := range prefs {
		result[i] = PreferenceDBus{
			Key:       p.Key,
			Title:     p.Title,
			Summary:   p.Summary,
			Checkable: p.Checkable,
			Checked:   p.Checked,
			Enabled:   p.Enabled,
		}
	}
	return result
}
