// Package settings implements the wireless settings screen: radio toggles,
// their dependencies, the emergency callback mode hold on airplane mode and
// the radio info rows.
package settings

import (
	"log"
	"sync"

	"x-wireless/internal/radioinfo"
)

// Exit-ECM notice, shown when airplane mode is toggled during emergency
// callback mode
const (
	ActionShowNoticeECMBlockOthers = "ShowNoticeEcmBlockOthers"
	RequestCodeExitECM             = 1
)

// Radio names in the airplane-mode toggleable radios list
const (
	RadioWifi      = "wifi"
	RadioBluetooth = "bluetooth"
)

// NetworkProvider reports the active network, nil if none
type NetworkProvider interface {
	ActiveNetwork() *radioinfo.Snapshot
}

// Launcher starts an external flow whose answer comes back through
// Screen.ActivityResult
type Launcher interface {
	StartForResult(action string, requestCode int) error
}

// Radios are the backends behind the four toggles
type Radios struct {
	Airplane  Radio
	Wifi      Radio
	Bluetooth Radio
	Tethering Radio
}

// Options configures a Screen
type Options struct {
	Fallbacks        radioinfo.Fallbacks
	ToggleableRadios []string // radios that stay usable in airplane mode
	Hidden           []string // keys left off the screen

	BluetoothAvailable    func() bool
	EmergencyCallbackMode func() bool
}

// View is a copy of the screen for outer surfaces
type View struct {
	Preferences []PreferenceView  `json:"preferences"`
	RadioInfo   radioinfo.Summary `json:"radio_info"`
	Resumed     bool              `json:"resumed"`
}

// Screen is the wireless settings screen controller.
// All methods are serialised; callers may use it from any goroutine.
type Screen struct {
	mu       sync.Mutex
	radios   Radios
	provider NetworkProvider
	launcher Launcher
	opts     Options
	onChange func(View)

	tree      *tree
	airplane  *AirplaneModeEnabler
	wifi      *Enabler
	bluetooth *Enabler
	tethering *Enabler
	radioInfo radioinfo.Summary
	created   bool
	resumed   bool
}

// NewScreen creates the screen. Call Create before anything else.
func NewScreen(radios Radios, provider NetworkProvider, opts Options) *Screen {
	if opts.BluetoothAvailable == nil {
		opts.BluetoothAvailable = func() bool { return true }
	}
	if opts.EmergencyCallbackMode == nil {
		opts.EmergencyCallbackMode = func() bool { return false }
	}
	return &Screen{
		radios:   radios,
		provider: provider,
		opts:     opts,
	}
}

// SetLauncher sets the launcher for the exit-ECM notice
func (s *Screen) SetLauncher(l Launcher) {
	s.mu.Lock()
	s.launcher = l
	s.mu.Unlock()
}

// SetOnChange sets a callback run after every change to the screen
func (s *Screen) SetOnChange(fn func(View)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Create builds the preference tree, binds the toggles and fills in the
// radio info rows
func (s *Screen) Create() {
	s.mu.Lock()
	s.tree = newTree(s.opts.Hidden)
	s.initToggles()
	s.updateRadioInfo()
	s.created = true
	s.mu.Unlock()

	s.notify()
}

func (s *Screen) initToggles() {
	airplanePref := s.tree.find(KeyToggleAirplane)

	s.airplane = &AirplaneModeEnabler{newEnabler(s.radios.Airplane, airplanePref)}
	s.wifi = newEnabler(s.radios.Wifi, s.tree.find(KeyToggleWifi))
	s.bluetooth = newEnabler(s.radios.Bluetooth, s.tree.find(KeyToggleBluetooth))
	s.tethering = newEnabler(s.radios.Tethering, s.tree.find(KeyToggleTethering))

	if !s.opts.BluetoothAvailable() {
		if p := s.tree.find(KeyBluetoothSetting); p != nil {
			p.SetEnabled(false)
		}
	}

	// Wi-Fi rows follow airplane mode unless Wi-Fi may stay on in it
	if airplanePref != nil && !contains(s.opts.ToggleableRadios, RadioWifi) {
		for _, k := range []string{KeyToggleWifi, KeyWifiSettings, KeyVpnSettings, KeyProxySetting} {
			if p := s.tree.find(k); p != nil {
				p.Dependency = airplanePref.Key
			}
		}
	}
}

// Resume resumes the toggles and refreshes the radio info rows
func (s *Screen) Resume() {
	s.mu.Lock()
	if !s.created {
		s.mu.Unlock()
		return
	}
	for _, e := range s.enablers() {
		if err := e.Resume(); err != nil {
			log.Printf("Resume %s: %v", enablerKey(e), err)
		}
	}
	s.resumed = true
	s.updateRadioInfo()
	s.mu.Unlock()

	s.notify()
}

// Pause stops the toggles from tracking their radios
func (s *Screen) Pause() {
	s.mu.Lock()
	if !s.created {
		s.mu.Unlock()
		return
	}
	for _, e := range s.enablers() {
		e.Pause()
	}
	s.resumed = false
	s.mu.Unlock()

	s.notify()
}

// Click handles a click on a row and reports whether it was handled.
// A click on a checkbox row flips it. Unhandled rows (the *_settings
// links) are left to the caller.
func (s *Screen) Click(key string) bool {
	s.mu.Lock()
	handled := s.clickRow(key)
	s.mu.Unlock()

	if handled {
		s.notify()
	}
	return handled
}

func (s *Screen) clickRow(key string) bool {
	if !s.created {
		return false
	}
	p := s.tree.find(key)
	if p == nil {
		return false
	}
	if p.Checkable {
		if !s.toggleable(p) {
			return false
		}
		p.Checked = !p.Checked
	}
	return s.click(key)
}

// toggleable reports whether a checkbox may change: the screen is resumed
// and the row is enabled
func (s *Screen) toggleable(p *Preference) bool {
	return s.resumed && s.tree.isEnabled(p)
}

func (s *Screen) click(key string) bool {
	if !s.created || s.tree.find(key) == nil {
		return false
	}

	switch key {
	case KeyToggleAirplane:
		if s.opts.EmergencyCallbackMode() {
			s.requestExitECM()
			return true
		}
		s.apply(s.airplane.Enabler)
		return true
	case KeyRadioInfoType, KeyRadioInfoStatus:
		s.updateRadioInfo()
		return true
	case KeyToggleWifi:
		s.apply(s.wifi)
		return true
	case KeyToggleBluetooth:
		s.apply(s.bluetooth)
		return true
	case KeyToggleTethering:
		s.apply(s.tethering)
		return true
	}
	return false
}

// SetChecked sets a checkbox row and handles it as a click.
// While paused or disabled the row is left unchanged and false is returned.
func (s *Screen) SetChecked(key string, checked bool) (bool, error) {
	s.mu.Lock()
	p, err := s.checkable(key)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	if !s.toggleable(p) {
		s.mu.Unlock()
		return false, nil
	}
	p.Checked = checked
	handled := s.click(key)
	s.mu.Unlock()

	s.notify()
	return handled, nil
}

func (s *Screen) checkable(key string) (*Preference, error) {
	if !s.created {
		return nil, ErrUnknownPreference
	}
	p := s.tree.find(key)
	if p == nil {
		return nil, ErrUnknownPreference
	}
	if !p.Checkable {
		return nil, ErrNotCheckable
	}
	return p, nil
}

// ActivityResult receives the answer of a flow started through the Launcher
func (s *Screen) ActivityResult(requestCode int, exitECM bool) error {
	s.mu.Lock()
	if !s.created {
		s.mu.Unlock()
		return nil
	}

	var err error
	switch requestCode {
	case RequestCodeExitECM:
		checked := false
		if p := s.tree.find(KeyToggleAirplane); p != nil {
			checked = p.Checked
		}
		err = s.airplane.SetAirplaneModeInECM(exitECM, checked)
	}
	s.mu.Unlock()

	s.notify()
	return err
}

// SyncToggles re-reads all radios into their checkboxes while resumed
func (s *Screen) SyncToggles() {
	s.mu.Lock()
	if !s.created || !s.resumed {
		s.mu.Unlock()
		return
	}
	for _, e := range s.enablers() {
		if err := e.Sync(); err != nil {
			log.Printf("Sync %s: %v", enablerKey(e), err)
		}
	}
	s.mu.Unlock()

	s.notify()
}

// View returns a copy of the screen
func (s *Screen) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// RadioInfo returns the radio info lines currently shown
func (s *Screen) RadioInfo() radioinfo.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.radioInfo
}

func (s *Screen) view() View {
	v := View{RadioInfo: s.radioInfo, Resumed: s.resumed}
	if s.tree != nil {
		v.Preferences = s.tree.views()
	}
	return v
}

func (s *Screen) updateRadioInfo() {
	s.radioInfo = radioinfo.Update(s.tree, s.provider.ActiveNetwork(), s.opts.Fallbacks)
}

func (s *Screen) requestExitECM() {
	if s.launcher == nil {
		log.Printf("No launcher for %s, airplane toggle held", ActionShowNoticeECMBlockOthers)
		return
	}
	if err := s.launcher.StartForResult(ActionShowNoticeECMBlockOthers, RequestCodeExitECM); err != nil {
		log.Printf("Failed to launch %s: %v", ActionShowNoticeECMBlockOthers, err)
	}
}

func (s *Screen) apply(e *Enabler) {
	if e.pref == nil || !s.tree.isEnabled(e.pref) {
		return
	}
	if err := e.Apply(); err != nil {
		log.Printf("Toggle %s: %v", e.pref.Key, err)
	}
}

func (s *Screen) enablers() []*Enabler {
	return []*Enabler{s.wifi, s.bluetooth, s.airplane.Enabler, s.tethering}
}

func (s *Screen) notify() {
	s.mu.Lock()
	fn := s.onChange
	v := s.view()
	s.mu.Unlock()

	if fn != nil {
		fn(v)
	}
}

func enablerKey(e *Enabler) string {
	if e.pref == nil {
		return "hidden toggle"
	}
	return e.pref.Key
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
