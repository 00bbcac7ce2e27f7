package iwd

import (
	"errors"
	"testing"

	"x-wireless/internal/state"

	"github.com/godbus/dbus/v5"
)

func TestApplyStationState(t *testing.T) {
	tests := []struct {
		name        string
		prev        state.ConnectionState
		iwdState    string
		wantState   state.ConnectionState
		wantRoaming bool
		wantErr     string
	}{
		{"connected", state.StateConnecting, "connected", state.StateConnected, false, ""},
		{"roaming", state.StateConnected, "roaming", state.StateConnected, true, ""},
		{"connecting", state.StateDisconnected, "connecting", state.StateConnecting, false, ""},
		{"dropped", state.StateConnected, "disconnected", state.StateDisconnected, false, ""},
		{"auth failure", state.StateConnecting, "disconnected", state.StateFailed, false, "Authentication failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := state.State{ConnectionState: tt.prev, Roaming: true, ActiveSSID: "home"}
			applyStationState(&st, tt.iwdState)

			if st.ConnectionState != tt.wantState {
				t.Errorf("state = %q, want %q", st.ConnectionState, tt.wantState)
			}
			if st.Roaming != tt.wantRoaming {
				t.Errorf("roaming = %v, want %v", st.Roaming, tt.wantRoaming)
			}
			if st.LastError != tt.wantErr {
				t.Errorf("last error = %q, want %q", st.LastError, tt.wantErr)
			}
		})
	}
}

func TestApplyDeviceProps(t *testing.T) {
	var st state.State
	applyDeviceProps(&st, map[string]dbus.Variant{
		"Name":    dbus.MakeVariant("wlan0"),
		"Address": dbus.MakeVariant("aa:bb:cc:dd:ee:ff"),
		"Powered": dbus.MakeVariant(true),
		"Mode":    dbus.MakeVariant("ap"),
	})

	if st.InterfaceName != "wlan0" || st.MacAddress != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("device identity = %q %q", st.InterfaceName, st.MacAddress)
	}
	if !st.WifiEnabled {
		t.Error("wifi not enabled")
	}
	if !st.HotspotActive {
		t.Error("ap mode not reported as hotspot")
	}

	applyDeviceProps(&st, map[string]dbus.Variant{"Mode": dbus.MakeVariant("station")})
	if st.HotspotActive {
		t.Error("station mode still reported as hotspot")
	}
}

func TestApplyDiagnostics(t *testing.T) {
	var st state.State
	applyDiagnostics(&st, map[string]dbus.Variant{
		"Frequency": dbus.MakeVariant(uint32(5180)),
		"RSSI":      dbus.MakeVariant(int16(-60)),
	})

	if st.Frequency != 5180 {
		t.Errorf("frequency = %d", st.Frequency)
	}
	if st.SignalRSSI != -60 || st.SignalStrength != 80 {
		t.Errorf("signal = %d dBm %d%%", st.SignalRSSI, st.SignalStrength)
	}
}

func TestAccessPointChange(t *testing.T) {
	mgr := state.NewManager()
	c := &Client{stateMgr: mgr}

	c.handlePropertyChange(&dbus.Signal{
		Body: []interface{}{AccessPointIface, map[string]dbus.Variant{
			"Started": dbus.MakeVariant(true),
			"Name":    dbus.MakeVariant("x-wireless"),
		}},
	})
	st := mgr.Get()
	if !st.HotspotActive || st.HotspotSSID != "x-wireless" {
		t.Fatalf("hotspot = %v %q", st.HotspotActive, st.HotspotSSID)
	}

	c.handlePropertyChange(&dbus.Signal{
		Body: []interface{}{AccessPointIface, map[string]dbus.Variant{"Started": dbus.MakeVariant(false)}},
	})
	if mgr.Get().HotspotActive {
		t.Fatal("hotspot still active")
	}
}

func TestRadiosWithoutStation(t *testing.T) {
	mgr := state.NewManager()
	c := &Client{stateMgr: mgr}

	if _, err := c.WifiRadio().Enabled(); !errors.Is(err, ErrNoStation) {
		t.Errorf("wifi Enabled error = %v", err)
	}
	if _, err := c.Hotspot("ssid", "secret123").Enabled(); !errors.Is(err, ErrNoStation) {
		t.Errorf("hotspot Enabled error = %v", err)
	}
	if err := c.WifiRadio().SetEnabled(true); err == nil {
		t.Error("SetEnabled without device succeeded")
	}
}

func TestRadiosReadState(t *testing.T) {
	mgr := state.NewManager()
	c := &Client{stateMgr: mgr}
	mgr.Update(func(st *state.State) {
		st.WifiAvailable = true
		st.WifiEnabled = true
	})

	on, err := c.WifiRadio().Enabled()
	if err != nil || !on {
		t.Errorf("wifi Enabled = %v, %v", on, err)
	}
	on, err = c.Hotspot("ssid", "secret123").Enabled()
	if err != nil || on {
		t.Errorf("hotspot Enabled = %v, %v", on, err)
	}
}

func TestFirstStation(t *testing.T) {
	objects := map[dbus.ObjectPath]map[string]map[string]dbus.Variant{
		"/net/connman/iwd":     {"net.connman.iwd.AgentManager": nil},
		"/net/connman/iwd/0/5": {DeviceIface: nil, StationIface: nil},
		"/net/connman/iwd/0/4": {DeviceIface: nil, StationIface: nil},
		"/net/connman/iwd/0/3": {DeviceIface: nil},
	}

	path, ifaces, ok := firstStation(objects)
	if !ok || path != "/net/connman/iwd/0/4" {
		t.Fatalf("firstStation = %q, %v", path, ok)
	}
	if _, ok := ifaces[StationIface]; !ok {
		t.Error("station interfaces not returned")
	}

	if _, _, ok := firstStation(map[dbus.ObjectPath]map[string]map[string]dbus.Variant{}); ok {
		t.Error("found a station in an empty tree")
	}
}

func TestDisappearClearsRadio(t *testing.T) {
	mgr := state.NewManager()
	c := &Client{stateMgr: mgr, devicePath: "/net/connman/iwd/0/4", stationPath: "/net/connman/iwd/0/4", initialized: true}
	mgr.Update(func(st *state.State) {
		st.WifiAvailable = true
		st.WifiEnabled = true
		st.ConnectionState = state.StateConnected
		st.Roaming = true
	})

	c.handleSignal(&dbus.Signal{
		Name: nameOwnerChanged,
		Body: []interface{}{IWDService, ":1.42", ""},
	})

	st := mgr.Get()
	if st.WifiAvailable || st.WifiEnabled || st.Roaming || st.ConnectionState != state.StateDisconnected {
		t.Errorf("state after iwd exit = %+v", st)
	}
	if _, err := c.device(); !errors.Is(err, ErrNoStation) {
		t.Errorf("device() error = %v", err)
	}
}

func TestRoamEnded(t *testing.T) {
	tests := []struct {
		name    string
		roaming bool
		props   map[string]dbus.Variant
		want    bool
	}{
		{"roam finished", true, map[string]dbus.Variant{"State": dbus.MakeVariant("connected")}, true},
		{"plain connect", false, map[string]dbus.Variant{"State": dbus.MakeVariant("connected")}, false},
		{"still roaming", true, map[string]dbus.Variant{"State": dbus.MakeVariant("roaming")}, false},
		{"no state", true, map[string]dbus.Variant{"Scanning": dbus.MakeVariant(true)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := roamEnded(tt.roaming, tt.props); got != tt.want {
				t.Errorf("roamEnded = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoamRefreshesBSS(t *testing.T) {
	st := state.State{
		ConnectionState: state.StateConnected,
		Roaming:         true,
		ActiveSSID:      "home",
		ActiveSecurity:  "psk",
		Frequency:       2412,
		SignalRSSI:      -80,
	}

	applyStationState(&st, "connected")
	networkDetails{diag: map[string]dbus.Variant{
		"Frequency": dbus.MakeVariant(uint32(5180)),
		"RSSI":      dbus.MakeVariant(int16(-55)),
	}}.apply(&st)

	want := state.State{
		ConnectionState: state.StateConnected,
		ActiveSSID:      "home",
		ActiveSecurity:  "psk",
		Frequency:       5180,
		SignalRSSI:      -55,
		SignalStrength:  90,
	}
	if st != want {
		t.Errorf("state after roam = %+v, want %+v", st, want)
	}
}
