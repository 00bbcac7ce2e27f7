package settings

import (
	"errors"
	"fmt"
)

// Radio is a toggleable radio backend
type Radio interface {
	Enabled() (bool, error)
	SetEnabled(enabled bool) error
}

// ErrRadioUnavailable is returned by radios whose backend is missing
var ErrRadioUnavailable = errors.New("radio not available")

type unavailableRadio struct {
	name string
}

// UnavailableRadio returns a Radio that always fails with ErrRadioUnavailable
func UnavailableRadio(name string) Radio {
	return unavailableRadio{name: name}
}

func (r unavailableRadio) Enabled() (bool, error) {
	return false, fmt.Errorf("%s: %w", r.name, ErrRadioUnavailable)
}

func (r unavailableRadio) SetEnabled(bool) error {
	return fmt.Errorf("%s: %w", r.name, ErrRadioUnavailable)
}

// Enabler keeps a checkbox row in step with a radio.
// It only acts between Resume and Pause.
type Enabler struct {
	radio   Radio
	pref    *Preference
	resumed bool
}

func newEnabler(radio Radio, pref *Preference) *Enabler {
	return &Enabler{radio: radio, pref: pref}
}

// Resume starts tracking the radio and syncs the checkbox
func (e *Enabler) Resume() error {
	e.resumed = true
	return e.Sync()
}

// Pause stops tracking the radio
func (e *Enabler) Pause() {
	e.resumed = false
}

// Sync reads the radio state into the checkbox
func (e *Enabler) Sync() error {
	if !e.resumed || e.pref == nil {
		return nil
	}
	return e.syncNow()
}

func (e *Enabler) syncNow() error {
	on, err := e.radio.Enabled()
	if err != nil {
		e.pref.SetEnabled(false)
		return err
	}
	e.pref.SetEnabled(true)
	e.pref.Checked = on
	return nil
}

// Apply pushes the checkbox value to the radio.
// On failure the checkbox is restored from the radio.
func (e *Enabler) Apply() error {
	if !e.resumed || e.pref == nil {
		return nil
	}
	return e.set(e.pref.Checked)
}

func (e *Enabler) set(on bool) error {
	if err := e.radio.SetEnabled(on); err != nil {
		e.syncNow()
		return fmt.Errorf("failed to set %s: %w", e.pref.Key, err)
	}
	e.pref.Checked = on
	return nil
}

// AirplaneModeEnabler is the airplane toggle, which can be held by
// emergency callback mode
type AirplaneModeEnabler struct {
	*Enabler
}

// SetAirplaneModeInECM finishes an airplane toggle that was held by
// emergency callback mode. If the user chose to exit ECM the checkbox
// value is applied, otherwise the checkbox is reset to the radio state.
func (a *AirplaneModeEnabler) SetAirplaneModeInECM(exitECM, on bool) error {
	if a.pref == nil {
		return nil
	}
	if exitECM {
		return a.set(on)
	}
	return a.syncNow()
}
