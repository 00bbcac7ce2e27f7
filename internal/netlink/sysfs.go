package netlink

import (
	"os"
	"path/filepath"
	"strings"

	"x-wireless/internal/state"
)

var sysClassNet = "/sys/class/net"

// Link is an interface as seen in sysfs
type Link struct {
	Name    string
	Type    string // "wifi", "ethernet", "usb", "unknown"
	Up      bool
	Carrier bool
}

// ScanSysfs lists non-loopback interfaces from sysfs
func ScanSysfs() []Link {
	entries, err := os.ReadDir(sysClassNet)
	if err != nil {
		return nil
	}

	var links []Link
	for _, entry := range entries {
		name := entry.Name()
		if name == "lo" {
			continue
		}
		links = append(links, Link{
			Name:    name,
			Type:    getConnectionType(name),
			Up:      readSysfs(name, "operstate") == "up",
			Carrier: readSysfs(name, "carrier") == "1",
		})
	}
	return links
}

// Snapshot records the sysfs view of the links in state.
// Used when netlink is unavailable; there are no events, so callers
// re-run it to refresh.
func Snapshot(stateMgr *state.Manager) {
	links := ScanSysfs()

	stateMgr.Update(func(st *state.State) {
		var primary *Link
		for i := range links {
			l := &links[i]
			if l.Type == "usb" {
				st.UsbInterfaceDetected = true
				st.UsbInterfaceName = l.Name
				st.UsbTetheringAvailable = l.Carrier
				continue
			}
			if !l.Up {
				continue
			}
			// Prefer wireless interfaces
			if primary == nil || (l.Type == "wifi" && primary.Type != "wifi") {
				primary = l
			}
		}
		if primary != nil {
			st.InterfaceName = primary.Name
			st.ConnectionType = primary.Type
		}
	})
}

func readSysfs(iface, attr string) string {
	data, err := os.ReadFile(filepath.Join(sysClassNet, iface, attr))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// getConnectionType classifies an interface from sysfs:
// "usb", "wifi", "ethernet" for other devices, "unknown" for virtual links
func getConnectionType(iface string) string {
	switch {
	case isUsbInterface(iface):
		return "usb"
	case exists(iface, "wireless"):
		return "wifi"
	case exists(iface, "device"):
		return "ethernet"
	}
	return "unknown"
}

// isUsbInterface follows device/subsystem, which links to .../bus/usb for
// USB network gadgets and tethered phones
func isUsbInterface(iface string) bool {
	target, err := os.Readlink(filepath.Join(sysClassNet, iface, "device", "subsystem"))
	if err != nil {
		return false
	}
	return strings.HasSuffix(target, "/usb")
}

func exists(iface, attr string) bool {
	_, err := os.Stat(filepath.Join(sysClassNet, iface, attr))
	return err == nil
}
