package dbus

import (
	"log"

	"x-wireless/internal/state"

	"github.com/godbus/dbus/v5"
)

// D-Bus method implementations

// Resume resumes the screen; the shell calls it when the screen is shown
func (s *Service) Resume() *dbus.Error {
	s.screen.Resume()
	return nil
}

// Pause pauses the screen; the shell calls it when the screen is hidden
func (s *Service) Pause() *dbus.Error {
	s.screen.Pause()
	return nil
}

// Click clicks a row. Rows that are not handled here are links the shell
// navigates itself.
func (s *Service) Click(key string) (bool, *dbus.Error) {
	return s.screen.Click(key), nil
}

// SetChecked flips a checkbox row
func (s *Service) SetChecked(key string, checked bool) (bool, *dbus.Error) {
	handled, err := s.screen.SetChecked(key, checked)
	if err != nil {
		s.EmitSignal("Error", "SetChecked", err.Error())
		return false, dbus.NewError(Interface+".Error", []interface{}{err.Error()})
	}
	return handled, nil
}

// ExitEcmResult delivers the answer to the exit-ECM notice
func (s *Service) ExitEcmResult(requestCode int32, exitEcm bool) *dbus.Error {
	if exitEcm {
		// Leaving ECM is what lets the airplane toggle through
		s.setEmergencyCallbackMode(false)
	}
	if err := s.screen.ActivityResult(int(requestCode), exitEcm); err != nil {
		s.EmitSignal("Error", "ExitEcmResult", err.Error())
		return dbus.NewError(Interface+".Error", []interface{}{err.Error()})
	}
	return nil
}

// SetEmergencyCallbackMode is called by the telephony side when the device
// enters or leaves emergency callback mode
func (s *Service) SetEmergencyCallbackMode(enabled bool) *dbus.Error {
	s.setEmergencyCallbackMode(enabled)
	return nil
}

// setEmergencyCallbackMode reports whether the mode changed
func (s *Service) setEmergencyCallbackMode(enabled bool) bool {
	changed := false
	s.stateMgr.Update(func(st *state.State) {
		changed = st.EmergencyCallbackMode != enabled
		st.EmergencyCallbackMode = enabled
	})
	if changed {
		log.Printf("Emergency callback mode: %v", enabled)
	}
	return changed
}
