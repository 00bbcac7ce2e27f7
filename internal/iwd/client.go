// Package iwd is the Wi-Fi radio and hotspot, backed by the iwd D-Bus API.
package iwd

import (
	"fmt"
	"log"
	"sync"

	"x-wireless/internal/state"

	"github.com/godbus/dbus/v5"
)

const (
	IWDService          = "net.connman.iwd"
	StationIface        = "net.connman.iwd.Station"
	StationDiagIface    = "net.connman.iwd.StationDiagnostic"
	DeviceIface         = "net.connman.iwd.Device"
	NetworkIface        = "net.connman.iwd.Network"
	AccessPointIface    = "net.connman.iwd.AccessPoint"
	propertiesSetMethod = "org.freedesktop.DBus.Properties.Set"
	propertiesGetAll    = "org.freedesktop.DBus.Properties.GetAll"
	propertiesChanged   = "org.freedesktop.DBus.Properties.PropertiesChanged"
	nameOwnerChanged    = "org.freedesktop.DBus.NameOwnerChanged"
	interfacesAdded     = "org.freedesktop.DBus.ObjectManager.InterfacesAdded"
)

// Client is the IWD D-Bus client
type Client struct {
	conn     *dbus.Conn
	stateMgr *state.Manager

	mu          sync.Mutex
	devicePath  dbus.ObjectPath
	stationPath dbus.ObjectPath
	initialized bool
}

// NewClient connects to the system bus and follows iwd as it comes and goes.
// iwd not running yet is not an error.
func NewClient(stateMgr *state.Manager) (*Client, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	c := &Client{
		conn:     conn,
		stateMgr: stateMgr,
	}

	if err := c.subscribe(); err != nil {
		log.Printf("Warning: Failed to subscribe to IWD signals: %v", err)
	}

	if err := c.maybeInit(); err != nil {
		log.Printf("IWD not available yet: %v", err)
	}

	return c, nil
}

// Close closes the D-Bus connection
func (c *Client) Close() {
	c.conn.Close()
}

// subscribe adds match rules for iwd's lifecycle, new objects (the station
// can appear after the service at boot) and property changes
func (c *Client) subscribe() error {
	rules := []string{
		"type='signal',sender='org.freedesktop.DBus',interface='org.freedesktop.DBus',member='NameOwnerChanged',arg0='" + IWDService + "'",
		"type='signal',sender='" + IWDService + "',interface='org.freedesktop.DBus.ObjectManager',member='InterfacesAdded'",
		"type='signal',sender='" + IWDService + "',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged'",
	}
	for _, rule := range rules {
		if err := c.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
			return err
		}
	}

	ch := make(chan *dbus.Signal, 16)
	c.conn.Signal(ch)
	go func() {
		for sig := range ch {
			c.handleSignal(sig)
		}
	}()
	return nil
}

func (c *Client) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case nameOwnerChanged:
		if len(sig.Body) != 3 {
			return
		}
		name, _ := sig.Body[0].(string)
		oldOwner, _ := sig.Body[1].(string)
		newOwner, _ := sig.Body[2].(string)
		if name != IWDService {
			return
		}
		switch {
		case oldOwner == "" && newOwner != "":
			log.Printf("IWD service appeared")
			if err := c.maybeInit(); err != nil {
				log.Printf("Failed to initialize IWD: %v", err)
			}
		case oldOwner != "" && newOwner == "":
			log.Printf("IWD service disappeared, marking Wi-Fi unavailable")
			c.handleDisappear()
		}

	case interfacesAdded:
		if len(sig.Body) < 2 {
			return
		}
		ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			return
		}
		if _, ok := ifaces[StationIface]; ok {
			log.Printf("Station interface appeared")
			if err := c.maybeInit(); err != nil {
				log.Printf("Failed to initialize IWD: %v", err)
			}
		}

	case propertiesChanged:
		c.handlePropertyChange(sig)
	}
}

// maybeInit locates the station once per iwd lifetime
func (c *Client) maybeInit() error {
	c.mu.Lock()
	done := c.initialized
	c.mu.Unlock()
	if done {
		return nil
	}

	if err := c.findDevice(); err != nil {
		return err
	}

	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()

	c.stateMgr.Update(func(st *state.State) {
		st.WifiAvailable = true
	})
	log.Printf("IWD client connected")
	return nil
}

func (c *Client) handleDisappear() {
	c.mu.Lock()
	c.initialized = false
	c.devicePath = ""
	c.stationPath = ""
	c.mu.Unlock()

	c.stateMgr.Update(func(st *state.State) {
		st.WifiAvailable = false
		st.WifiEnabled = false
		st.HotspotActive = false
		st.HotspotSSID = ""
		st.ConnectionState = state.StateDisconnected
		st.Roaming = false
		st.ActiveSSID = ""
		st.SignalStrength = 0
		st.Frequency = 0
	})
}

// findDevice reads iwd's managed objects and picks the first station
func (c *Client) findDevice() error {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := c.conn.Object(IWDService, "/").
		Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0).
		Store(&objects)
	if err != nil {
		return fmt.Errorf("failed to get managed objects: %w", err)
	}

	path, ifaces, ok := firstStation(objects)
	if !ok {
		return fmt.Errorf("no WiFi station found")
	}
	log.Printf("Found Station at: %s", path)

	c.mu.Lock()
	c.stationPath = path
	c.devicePath = path
	c.mu.Unlock()

	if devProps, ok := ifaces[DeviceIface]; ok {
		c.stateMgr.Update(func(st *state.State) { applyDeviceProps(st, devProps) })
	}
	c.handleStationChange(ifaces[StationIface])
	return nil
}

// firstStation returns the lowest object path carrying a Station
func firstStation(objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant) (dbus.ObjectPath, map[string]map[string]dbus.Variant, bool) {
	var best dbus.ObjectPath
	for path, ifaces := range objects {
		if _, ok := ifaces[StationIface]; !ok {
			continue
		}
		if best == "" || path < best {
			best = path
		}
	}
	if best == "" {
		return "", nil, false
	}
	return best, objects[best], true
}

func applyDeviceProps(st *state.State, props map[string]dbus.Variant) {
	if name, ok := variantString(props, "Name"); ok {
		st.InterfaceName = name
	}
	if addr, ok := variantString(props, "Address"); ok {
		st.MacAddress = addr
	}
	if v, ok := props["Powered"]; ok {
		if powered, ok := v.Value().(bool); ok {
			st.WifiEnabled = powered
		}
	}
	if mode, ok := variantString(props, "Mode"); ok {
		st.HotspotActive = mode == "ap"
	}
}

// applyStationState maps an iwd Station.State string onto st
func applyStationState(st *state.State, stateStr string) {
	prevState := st.ConnectionState
	switch stateStr {
	case "disconnected", "disconnecting":
		st.ConnectionState = state.StateDisconnected
		st.Roaming = false
		st.ActiveSSID = ""
		st.Frequency = 0
		if prevState == state.StateConnecting {
			st.LastError = "Authentication failed"
			st.ConnectionState = state.StateFailed
		}
	case "connecting":
		st.ConnectionState = state.StateConnecting
		st.Roaming = false
		st.LastError = ""
	case "connected":
		st.ConnectionState = state.StateConnected
		st.Roaming = false
		st.LastError = ""
	case "roaming":
		st.ConnectionState = state.StateConnected
		st.Roaming = true
	}
}

func (c *Client) handlePropertyChange(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return
	}
	props, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	switch iface {
	case StationIface:
		c.handleStationChange(props)
	case DeviceIface:
		c.stateMgr.Update(func(st *state.State) { applyDeviceProps(st, props) })
	case AccessPointIface:
		c.stateMgr.Update(func(st *state.State) { applyAccessPointProps(st, props) })
	}
}

// handleStationChange applies Station properties. Network details are
// fetched before taking the state lock.
func (c *Client) handleStationChange(props map[string]dbus.Variant) {
	var details networkDetails
	if v, ok := props["ConnectedNetwork"]; ok {
		if path, ok := v.Value().(dbus.ObjectPath); ok && path != "" {
			details = c.fetchNetworkDetails(path)
		}
	}
	if details.diag == nil && roamEnded(c.stateMgr.Get().Roaming, props) {
		// same network, new BSS
		details.diag = c.fetchDiagnostics()
	}

	c.stateMgr.Update(func(st *state.State) {
		if s, ok := variantString(props, "State"); ok {
			log.Printf("Station state: %s", s)
			applyStationState(st, s)
		}
		details.apply(st)
	})
}

func applyAccessPointProps(st *state.State, props map[string]dbus.Variant) {
	if v, ok := props["Started"]; ok {
		if started, ok := v.Value().(bool); ok {
			st.HotspotActive = started
			if !started {
				st.HotspotSSID = ""
			}
		}
	}
	if name, ok := variantString(props, "Name"); ok {
		st.HotspotSSID = name
	}
}

// networkDetails is what iwd knows about the connected network
type networkDetails struct {
	ok       bool
	ssid     string
	security string
	diag     map[string]dbus.Variant
}

func (d networkDetails) apply(st *state.State) {
	if d.ok {
		st.ActiveSSID = d.ssid
		st.ActiveSecurity = d.security
	}
	applyDiagnostics(st, d.diag)
}

// roamEnded reports whether props move a roaming station back to connected
func roamEnded(roaming bool, props map[string]dbus.Variant) bool {
	s, ok := variantString(props, "State")
	return ok && roaming && s == "connected"
}

func (c *Client) fetchNetworkDetails(path dbus.ObjectPath) networkDetails {
	var props map[string]dbus.Variant
	if err := c.conn.Object(IWDService, path).Call(propertiesGetAll, 0, NetworkIface).Store(&props); err != nil {
		log.Printf("Failed to read network %s: %v", path, err)
		return networkDetails{}
	}

	d := networkDetails{ok: true}
	d.ssid, _ = variantString(props, "Name")
	d.security, _ = variantString(props, "Type")
	d.diag = c.fetchDiagnostics()
	return d
}

func (c *Client) fetchDiagnostics() map[string]dbus.Variant {
	c.mu.Lock()
	station := c.stationPath
	c.mu.Unlock()
	if station == "" {
		return nil
	}

	var diag map[string]dbus.Variant
	if err := c.conn.Object(IWDService, station).Call(StationDiagIface+".GetDiagnostics", 0).Store(&diag); err != nil {
		log.Printf("GetDiagnostics error: %v", err)
		return nil
	}
	return diag
}

// applyDiagnostics reads frequency and signal of the current BSS
func applyDiagnostics(st *state.State, diag map[string]dbus.Variant) {
	if v, ok := diag["Frequency"]; ok {
		if freq, ok := v.Value().(uint32); ok {
			st.Frequency = freq
		}
	}
	if v, ok := diag["RSSI"]; ok {
		if rssi, ok := v.Value().(int16); ok {
			st.SignalRSSI = rssi
			st.SignalStrength = state.DBmToPercent(rssi)
		}
	}
}

func (c *Client) device() (dbus.BusObject, error) {
	c.mu.Lock()
	path := c.devicePath
	c.mu.Unlock()
	if path == "" {
		return nil, ErrNoStation
	}
	return c.conn.Object(IWDService, path), nil
}

// SetWifiEnabled powers the device on or off
func (c *Client) SetWifiEnabled(enabled bool) error {
	obj, err := c.device()
	if err != nil {
		return err
	}
	if err := obj.Call(propertiesSetMethod, 0, DeviceIface, "Powered", dbus.MakeVariant(enabled)).Err; err != nil {
		return fmt.Errorf("failed to set Powered: %w", err)
	}
	c.stateMgr.Update(func(st *state.State) {
		st.WifiEnabled = enabled
	})
	return nil
}

// StartHotspot switches the device to AP mode and starts an access point
func (c *Client) StartHotspot(ssid, passphrase string) error {
	obj, err := c.device()
	if err != nil {
		return err
	}
	if err := obj.Call(propertiesSetMethod, 0, DeviceIface, "Mode", dbus.MakeVariant("ap")).Err; err != nil {
		return fmt.Errorf("failed to switch to AP mode: %w", err)
	}
	if err := obj.Call(AccessPointIface+".Start", 0, ssid, passphrase).Err; err != nil {
		return fmt.Errorf("failed to start access point: %w", err)
	}

	c.stateMgr.Update(func(st *state.State) {
		st.HotspotActive = true
		st.HotspotSSID = ssid
	})
	return nil
}

// StopHotspot stops the access point and switches back to station mode
func (c *Client) StopHotspot() error {
	obj, err := c.device()
	if err != nil {
		return err
	}
	if err := obj.Call(AccessPointIface+".Stop", 0).Err; err != nil {
		return fmt.Errorf("failed to stop access point: %w", err)
	}
	if err := obj.Call(propertiesSetMethod, 0, DeviceIface, "Mode", dbus.MakeVariant("station")).Err; err != nil {
		return fmt.Errorf("failed to switch to station mode: %w", err)
	}

	c.stateMgr.Update(func(st *state.State) {
		st.HotspotActive = false
		st.HotspotSSID = ""
	})
	return nil
}

func variantString(props map[string]dbus.Variant, key string) (string, bool) {
	v, ok := props[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}
