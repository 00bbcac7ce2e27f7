// Package bluez is the Bluetooth radio, backed by the BlueZ D-Bus API.
package bluez

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"x-wireless/internal/state"

	"github.com/godbus/dbus/v5"
)

const (
	BluezService  = "org.bluez"
	AdapterIface  = "org.bluez.Adapter1"
	propertiesSet = "org.freedesktop.DBus.Properties.Set"
)

// ErrNoAdapter is returned when BlueZ has no adapter
var ErrNoAdapter = errors.New("no bluetooth adapter")

// Client is the BlueZ D-Bus client
type Client struct {
	conn     *dbus.Conn
	stateMgr *state.Manager

	mu          sync.Mutex
	adapterPath dbus.ObjectPath
}

// NewClient connects to the system bus and tracks the first adapter.
// A missing bluetoothd is not an error; the adapter is picked up when it appears.
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
		log.Printf("Warning: Failed to subscribe to BlueZ signals: %v", err)
	}

	if err := c.findAdapter(); err != nil {
		log.Printf("BlueZ adapter not available yet: %v", err)
	}

	return c, nil
}

// subscribe watches bluetoothd lifecycle and adapter property changes
func (c *Client) subscribe() error {
	rules := []string{
		"type='signal',sender='org.freedesktop.DBus',interface='org.freedesktop.DBus',member='NameOwnerChanged',arg0='org.bluez'",
		"type='signal',sender='org.bluez',interface='org.freedesktop.DBus.ObjectManager',member='InterfacesAdded'",
		"type='signal',sender='org.bluez',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged',arg0='org.bluez.Adapter1'",
	}
	for _, rule := range rules {
		if err := c.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
			return err
		}
	}

	ch := make(chan *dbus.Signal, 10)
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
	case "org.freedesktop.DBus.NameOwnerChanged":
		if len(sig.Body) != 3 {
			return
		}
		name, _ := sig.Body[0].(string)
		newOwner, _ := sig.Body[2].(string)
		if name != BluezService {
			return
		}
		if newOwner == "" {
			log.Printf("BlueZ service disappeared, marking Bluetooth unavailable")
			c.handleDisappear()
			return
		}
		log.Printf("BlueZ service appeared, looking for adapter...")
		if err := c.findAdapter(); err != nil {
			log.Printf("BlueZ adapter not found: %v", err)
		}

	case "org.freedesktop.DBus.ObjectManager.InterfacesAdded":
		if len(sig.Body) < 2 {
			return
		}
		ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			return
		}
		if _, ok := ifaces[AdapterIface]; ok {
			if err := c.findAdapter(); err != nil {
				log.Printf("BlueZ adapter not found: %v", err)
			}
		}

	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		c.mu.Lock()
		path := c.adapterPath
		c.mu.Unlock()
		if sig.Path != path || len(sig.Body) < 2 {
			return
		}
		if iface, _ := sig.Body[0].(string); iface != AdapterIface {
			return
		}
		if props, ok := sig.Body[1].(map[string]dbus.Variant); ok {
			c.updateAdapterProps(props)
		}
	}
}

// findAdapter picks the first adapter from the BlueZ object tree
func (c *Client) findAdapter() error {
	obj := c.conn.Object(BluezService, "/")

	var result map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := obj.Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0).Store(&result)
	if err != nil {
		return fmt.Errorf("failed to get managed objects: %w", err)
	}

	path, props, ok := firstAdapter(result)
	if !ok {
		return ErrNoAdapter
	}

	c.mu.Lock()
	c.adapterPath = path
	c.mu.Unlock()
	log.Printf("Found Bluetooth adapter at: %s", path)

	c.stateMgr.Update(func(st *state.State) {
		st.BluetoothAvailable = true
	})
	c.updateAdapterProps(props)
	return nil
}

// firstAdapter returns the adapter with the lowest object path
func firstAdapter(objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant) (dbus.ObjectPath, map[string]dbus.Variant, bool) {
	var (
		best  dbus.ObjectPath
		props map[string]dbus.Variant
	)
	for path, ifaces := range objects {
		p, ok := ifaces[AdapterIface]
		if !ok {
			continue
		}
		if best == "" || path < best {
			best, props = path, p
		}
	}
	return best, props, best != ""
}

func (c *Client) updateAdapterProps(props map[string]dbus.Variant) {
	v, ok := props["Powered"]
	if !ok {
		return
	}
	powered, ok := v.Value().(bool)
	if !ok {
		return
	}
	c.stateMgr.Update(func(st *state.State) {
		st.BluetoothEnabled = powered
	})
}

func (c *Client) handleDisappear() {
	c.mu.Lock()
	c.adapterPath = ""
	c.mu.Unlock()

	c.stateMgr.Update(func(st *state.State) {
		st.BluetoothAvailable = false
		st.BluetoothEnabled = false
	})
}

// Available reports whether an adapter is present
func (c *Client) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adapterPath != ""
}

// Enabled reports whether the adapter is powered
func (c *Client) Enabled() (bool, error) {
	st := c.stateMgr.Get()
	if !st.BluetoothAvailable {
		return false, ErrNoAdapter
	}
	return st.BluetoothEnabled, nil
}

// SetEnabled powers the adapter on or off
func (c *Client) SetEnabled(enabled bool) error {
	c.mu.Lock()
	path := c.adapterPath
	c.mu.Unlock()
	if path == "" {
		return ErrNoAdapter
	}

	obj := c.conn.Object(BluezService, path)
	if err := obj.Call(propertiesSet, 0, AdapterIface, "Powered", dbus.MakeVariant(enabled)).Err; err != nil {
		return fmt.Errorf("failed to set Powered: %w", err)
	}

	c.stateMgr.Update(func(st *state.State) {
		st.BluetoothEnabled = enabled
	})
	return nil
}
