// Package rfkill drives airplane mode through the kernel rfkill switches.
package rfkill

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"x-wireless/internal/state"
)

const sysClassRfkill = "/sys/class/rfkill"

// Device is one rfkill switch
type Device struct {
	Name        string
	Type        string // "wlan", "bluetooth", "wwan", ...
	SoftBlocked bool
	HardBlocked bool
}

// Switch is the airplane mode radio
type Switch struct {
	stateMgr *state.Manager
	root     string
	run      func(action string) error
}

// NewSwitch creates an airplane mode switch
func NewSwitch(stateMgr *state.Manager) *Switch {
	return &Switch{
		stateMgr: stateMgr,
		root:     sysClassRfkill,
		run:      runRfkill,
	}
}

// runRfkill blocks or unblocks all radios via the rfkill tool
func runRfkill(action string) error {
	cmd := exec.Command("rfkill", action, "all")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("rfkill %s all: %w (%s)", action, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Devices lists the rfkill switches
func (s *Switch) Devices() ([]Device, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.root, err)
	}

	var devices []Device
	for _, entry := range entries {
		dir := filepath.Join(s.root, entry.Name())
		devices = append(devices, Device{
			Name:        readString(filepath.Join(dir, "name")),
			Type:        readString(filepath.Join(dir, "type")),
			SoftBlocked: readString(filepath.Join(dir, "soft")) == "1",
			HardBlocked: readString(filepath.Join(dir, "hard")) == "1",
		})
	}
	return devices, nil
}

// Enabled reports airplane mode: every switch is soft-blocked
func (s *Switch) Enabled() (bool, error) {
	devices, err := s.Devices()
	if err != nil {
		return false, err
	}
	if len(devices) == 0 {
		return false, nil
	}
	for _, d := range devices {
		if !d.SoftBlocked {
			return false, nil
		}
	}
	return true, nil
}

// SetEnabled turns airplane mode on (block all) or off (unblock all)
func (s *Switch) SetEnabled(enabled bool) error {
	action := "unblock"
	if enabled {
		action = "block"
	}
	if err := s.run(action); err != nil {
		return err
	}

	s.stateMgr.Update(func(st *state.State) {
		st.AirplaneMode = enabled
	})
	return nil
}

// Refresh reads the switches into state
func (s *Switch) Refresh() error {
	on, err := s.Enabled()
	if err != nil {
		return err
	}
	s.stateMgr.Update(func(st *state.State) {
		st.AirplaneMode = on
	})
	return nil
}

func readString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
