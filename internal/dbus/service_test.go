package dbus

import (
	"sync"
	"testing"

	"x-wireless/internal/connectivity"
	"x-wireless/internal/radioinfo"
	"x-wireless/internal/settings"
	"x-wireless/internal/state"

	"github.com/godbus/dbus/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type fakeRadio struct {
	on   bool
	sets []bool
}

func (r *fakeRadio) Enabled() (bool, error) { return r.on, nil }

func (r *fakeRadio) SetEnabled(on bool) error {
	r.sets = append(r.sets, on)
	r.on = on
	return nil
}

type fixture struct {
	svc      *Service
	stateMgr *state.Manager
	screen   *settings.Screen
	airplane *fakeRadio
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{stateMgr: state.NewManager(), airplane: &fakeRadio{}}
	f.screen = settings.NewScreen(settings.Radios{
		Airplane:  f.airplane,
		Wifi:      &fakeRadio{on: true},
		Bluetooth: &fakeRadio{},
		Tethering: settings.UnavailableRadio("tethering"),
	}, connectivity.NewProvider(f.stateMgr), settings.Options{
		Fallbacks:             radioinfo.Fallbacks{Type: "Radio type unavailable", Status: "Radio status unavailable"},
		ToggleableRadios:      []string{settings.RadioBluetooth, settings.RadioWifi},
		EmergencyCallbackMode: func() bool { return f.stateMgr.Get().EmergencyCallbackMode },
	})
	f.svc = newService(nil, f.stateMgr, f.screen)
	f.screen.SetLauncher(f.svc)
	f.screen.Create()
	return f
}

func TestGetAllMatchesIntrospection(t *testing.T) {
	f := newFixture(t)

	props, derr := f.svc.GetAll(Interface)
	if derr != nil {
		t.Fatalf("GetAll: %v", derr)
	}

	var got, want []string
	for name := range props {
		got = append(got, name)
	}
	for _, p := range f.svc.properties() {
		want = append(want, p.Name)
	}
	less := func(a, b string) bool { return a < b }
	if diff := cmp.Diff(want, got, cmpopts.SortSlices(less)); diff != "" {
		t.Fatalf("property names mismatch (-introspected +GetAll):\n%s", diff)
	}
}

func TestGetRadioInfo(t *testing.T) {
	f := newFixture(t)
	f.stateMgr.Update(func(st *state.State) {
		st.WifiEnabled = true
		st.ConnectionState = state.StateConnected
		st.Frequency = 5180
	})
	f.svc.Resume()

	v, derr := f.svc.Get(Interface, "RadioInfoType")
	if derr != nil {
		t.Fatalf("Get: %v", derr)
	}
	if got := v.Value().(string); got != "WIFI - 5GHz" {
		t.Errorf("RadioInfoType = %q", got)
	}
	v, _ = f.svc.Get(Interface, "RadioInfoStatus")
	if got := v.Value().(string); got != "Connected!" {
		t.Errorf("RadioInfoStatus = %q", got)
	}
}

func TestGetPreferences(t *testing.T) {
	f := newFixture(t)
	f.svc.Resume()

	v, derr := f.svc.Get(Interface, "Preferences")
	if derr != nil {
		t.Fatalf("Get: %v", derr)
	}
	prefs := v.Value().([]PreferenceDBus)
	if len(prefs) == 0 || prefs[0].Key != settings.KeyToggleAirplane {
		t.Fatalf("first preference = %+v", prefs)
	}
	if sig := dbus.SignatureOf(prefs).String(); sig != "a(sssbbb)" {
		t.Errorf("signature = %s", sig)
	}
}

func TestGetLinkProperties(t *testing.T) {
	f := newFixture(t)
	f.stateMgr.Update(func(st *state.State) {
		st.ActiveSSID = "home"
		st.ActiveSecurity = "psk"
		st.SignalRSSI = -60
		st.SignalStrength = state.DBmToPercent(-60)
		st.MacAddress = "aa:bb:cc:00:00:01"
		st.Gateway = "10.0.0.1"
		st.HotspotSSID = "x-hotspot"
		st.LastError = "Authentication failed"
	})

	props, derr := f.svc.GetAll(Interface)
	if derr != nil {
		t.Fatalf("GetAll: %v", derr)
	}
	got := map[string]interface{}{}
	for _, name := range []string{"ActiveSSID", "ActiveSecurity", "SignalRSSI", "SignalStrength", "MacAddress", "Gateway", "HotspotSSID", "LastError"} {
		got[name] = props[name].Value()
	}
	want := map[string]interface{}{
		"ActiveSSID":     "home",
		"ActiveSecurity": "psk",
		"SignalRSSI":     int16(-60),
		"SignalStrength": uint8(80),
		"MacAddress":     "aa:bb:cc:00:00:01",
		"Gateway":        "10.0.0.1",
		"HotspotSSID":    "x-hotspot",
		"LastError":      "Authentication failed",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}
}

func TestIntrospectedSignatures(t *testing.T) {
	f := newFixture(t)

	props, _ := f.svc.GetAll(Interface)
	for _, p := range f.svc.properties() {
		if sig := props[p.Name].Signature().String(); sig != p.Type {
			t.Errorf("%s: signature %s, introspected %s", p.Name, sig, p.Type)
		}
	}
}

func TestSetEmergencyCallbackModeOnce(t *testing.T) {
	f := newFixture(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.svc.setEmergencyCallbackMode(true) {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if changed != 1 {
		t.Errorf("%d callers changed the mode, want 1", changed)
	}
	if !f.stateMgr.Get().EmergencyCallbackMode {
		t.Error("emergency callback mode not set")
	}
	if f.svc.setEmergencyCallbackMode(true) {
		t.Error("repeat set reported a change")
	}
}

func TestGetErrors(t *testing.T) {
	f := newFixture(t)

	if _, derr := f.svc.Get("org.example.Other", "AirplaneMode"); derr == nil || derr.Name != "org.freedesktop.DBus.Error.UnknownInterface" {
		t.Errorf("wrong interface error = %v", derr)
	}
	if _, derr := f.svc.Get(Interface, "Networks"); derr == nil || derr.Name != "org.freedesktop.DBus.Error.UnknownProperty" {
		t.Errorf("unknown property error = %v", derr)
	}
	if derr := f.svc.Set(Interface, "AirplaneMode", dbus.MakeVariant(true)); derr == nil {
		t.Error("Set succeeded on read-only property")
	}
}

func TestClickAndSetChecked(t *testing.T) {
	f := newFixture(t)
	f.svc.Resume()

	if handled, derr := f.svc.Click(settings.KeyWifiSettings); derr != nil || handled {
		t.Errorf("Click(wifi_settings) = %v, %v", handled, derr)
	}
	if handled, derr := f.svc.Click(settings.KeyRadioInfoStatus); derr != nil || !handled {
		t.Errorf("Click(radio_info_status) = %v, %v", handled, derr)
	}

	_, derr := f.svc.SetChecked("no_such_key", true)
	if derr == nil || derr.Name != Interface+".Error" {
		t.Errorf("SetChecked unknown key error = %v", derr)
	}

	handled, derr := f.svc.SetChecked(settings.KeyToggleAirplane, true)
	if derr != nil || !handled {
		t.Fatalf("SetChecked(airplane) = %v, %v", handled, derr)
	}
	if diff := cmp.Diff([]bool{true}, f.airplane.sets); diff != "" {
		t.Errorf("airplane sets mismatch (-want +got):\n%s", diff)
	}
}

func TestExitEcmResult(t *testing.T) {
	f := newFixture(t)
	f.svc.Resume()
	f.svc.SetEmergencyCallbackMode(true)

	// Held by ECM: no radio call yet
	if handled, _ := f.svc.SetChecked(settings.KeyToggleAirplane, true); !handled {
		t.Fatal("airplane toggle not handled")
	}
	if len(f.airplane.sets) != 0 {
		t.Fatalf("airplane set during ECM: %v", f.airplane.sets)
	}

	if derr := f.svc.ExitEcmResult(settings.RequestCodeExitECM, true); derr != nil {
		t.Fatalf("ExitEcmResult: %v", derr)
	}
	if f.stateMgr.Get().EmergencyCallbackMode {
		t.Error("ECM still set after exit")
	}
	if diff := cmp.Diff([]bool{true}, f.airplane.sets); diff != "" {
		t.Errorf("airplane sets mismatch (-want +got):\n%s", diff)
	}
}

func TestStartForResultWithoutConnection(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.StartForResult(settings.ActionShowNoticeECMBlockOthers, settings.RequestCodeExitECM); err == nil {
		t.Error("StartForResult without a bus succeeded")
	}
}
