// Package netlink tracks links, addresses and the default route from
// rtnetlink events, falling back to a sysfs snapshot when netlink is closed.
package netlink

import (
	"fmt"
	"log"
	"net"
	"sync"
	"syscall"

	"x-wireless/internal/state"

	"github.com/jsimonetti/rtnetlink"
	"github.com/mdlayher/netlink"
)

// rtnetlink multicast groups
const (
	groupLink     = 0x1  // RTMGRP_LINK
	groupIPv4Addr = 0x10 // RTMGRP_IPV4_IFADDR
)

// linkInfo is the part of a link message the daemon cares about
type linkInfo struct {
	Index   uint32
	Name    string
	Kind    string // see getConnectionType
	Up      bool
	Carrier bool
	Mac     string
}

// addrInfo is an IPv4 address on a known link
type addrInfo struct {
	Index uint32
	Name  string
	Kind  string
	IP    string
}

// Watcher watches netlink events
type Watcher struct {
	conn     *netlink.Conn   // event socket; Header.Type tells NEW from DEL
	rtConn   *rtnetlink.Conn // request socket for dumps
	stateMgr *state.Manager
	stopCh   chan struct{}

	mu    sync.Mutex
	links map[uint32]linkInfo
}

// NewWatcher dials both netlink sockets
func NewWatcher(stateMgr *state.Manager) (*Watcher, error) {
	conn, err := netlink.Dial(syscall.NETLINK_ROUTE, &netlink.Config{
		Groups: groupLink | groupIPv4Addr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial netlink: %w", err)
	}

	rtConn, err := rtnetlink.Dial(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to dial rtnetlink: %w", err)
	}

	return &Watcher{
		conn:     conn,
		rtConn:   rtConn,
		stateMgr: stateMgr,
		stopCh:   make(chan struct{}),
		links:    make(map[uint32]linkInfo),
	}, nil
}

// Close stops Run and closes the sockets
func (w *Watcher) Close() {
	close(w.stopCh)
	w.conn.Close()
	w.rtConn.Close()
}

// Run dumps the current links and addresses, then follows events until Close
func (w *Watcher) Run() {
	w.dump()

	for {
		msgs, err := w.conn.Receive()
		select {
		case <-w.stopCh:
			return
		default:
		}
		if err != nil {
			log.Printf("Netlink receive error: %v", err)
			continue
		}
		for _, msg := range msgs {
			w.handleMessage(msg)
		}
	}
}

func (w *Watcher) handleMessage(msg netlink.Message) {
	switch msg.Header.Type {
	case syscall.RTM_NEWLINK, syscall.RTM_DELLINK:
		var lm rtnetlink.LinkMessage
		if err := lm.UnmarshalBinary(msg.Data); err != nil {
			log.Printf("Failed to parse link message: %v", err)
			return
		}
		w.onLink(&lm, msg.Header.Type == syscall.RTM_DELLINK)
	case syscall.RTM_NEWADDR, syscall.RTM_DELADDR:
		var am rtnetlink.AddressMessage
		if err := am.UnmarshalBinary(msg.Data); err != nil {
			log.Printf("Failed to parse address message: %v", err)
			return
		}
		w.onAddress(&am, msg.Header.Type == syscall.RTM_DELADDR)
	}
}

func (w *Watcher) dump() {
	links, err := w.rtConn.Link.List()
	if err != nil {
		log.Printf("Failed to list links: %v", err)
		return
	}
	for i := range links {
		w.onLink(&links[i], false)
	}

	addrs, err := w.rtConn.Address.List()
	if err != nil {
		log.Printf("Failed to list addresses: %v", err)
		return
	}
	for i := range addrs {
		w.onAddress(&addrs[i], false)
	}
}

func (w *Watcher) onLink(lm *rtnetlink.LinkMessage, removed bool) {
	if lm.Attributes == nil || lm.Attributes.Name == "" || lm.Attributes.Name == "lo" {
		return
	}

	info := linkInfo{
		Index:   lm.Index,
		Name:    lm.Attributes.Name,
		Up:      lm.Attributes.OperationalState == rtnetlink.OperStateUp,
		Carrier: lm.Attributes.Carrier != nil && *lm.Attributes.Carrier == 1,
		Mac:     net.HardwareAddr(lm.Attributes.Address).String(),
	}

	w.mu.Lock()
	prev, known := w.links[info.Index]
	if removed {
		delete(w.links, info.Index)
	} else {
		// sysfs lookups only on first sight of an ifindex
		if known && prev.Name == info.Name {
			info.Kind = prev.Kind
		} else {
			info.Kind = getConnectionType(info.Name)
		}
		w.links[info.Index] = info
	}
	w.mu.Unlock()

	if removed {
		log.Printf("Link %s (idx=%d) removed", info.Name, info.Index)
		w.stateMgr.Update(func(st *state.State) { removeLink(st, info.Index, info.Name) })
		return
	}
	if !known || prev.Up != info.Up || prev.Carrier != info.Carrier {
		log.Printf("Link %s (idx=%d, %s): up=%v, carrier=%v", info.Name, info.Index, info.Kind, info.Up, info.Carrier)
	}
	w.stateMgr.Update(func(st *state.State) { applyLink(st, info) })
}

func (w *Watcher) onAddress(am *rtnetlink.AddressMessage, removed bool) {
	if am.Family != syscall.AF_INET || am.Attributes == nil || am.Attributes.Address == nil {
		return
	}

	w.mu.Lock()
	link, ok := w.links[am.Index]
	w.mu.Unlock()
	if !ok {
		return
	}

	addr := addrInfo{Index: am.Index, Name: link.Name, Kind: link.Kind, IP: am.Attributes.Address.String()}
	if removed {
		log.Printf("Address removed on %s: %s", addr.Name, addr.IP)
		w.stateMgr.Update(func(st *state.State) { removeAddress(st, addr) })
		return
	}

	gateway := w.defaultGateway(am.Index)
	log.Printf("Address on %s: %s (gateway %q)", addr.Name, addr.IP, gateway)
	w.stateMgr.Update(func(st *state.State) { applyAddress(st, addr, gateway) })
}

// defaultGateway returns the gateway of the IPv4 default route out of
// ifindex, or "" if there is none
func (w *Watcher) defaultGateway(ifindex uint32) string {
	routes, err := w.rtConn.Route.List()
	if err != nil {
		return ""
	}
	for _, r := range routes {
		if r.Family == syscall.AF_INET && r.DstLength == 0 &&
			r.Attributes.Gateway != nil && r.Attributes.OutIface == ifindex {
			return r.Attributes.Gateway.String()
		}
	}
	return ""
}

// applyLink records a link that exists. iwd owns the Wi-Fi station state,
// so only the interface identity is taken from Wi-Fi links.
func applyLink(st *state.State, l linkInfo) {
	if l.Kind == "usb" {
		st.UsbInterfaceDetected = true
		st.UsbInterfaceName = l.Name
		st.UsbInterfaceIndex = l.Index
		st.UsbTetheringAvailable = l.Carrier
		if !l.Carrier {
			st.UsbTetheringConnected = false
		}
		return
	}

	primary := st.InterfaceName == l.Name
	switch {
	case l.Up && (primary || st.InterfaceName == ""):
		st.InterfaceName = l.Name
		st.ConnectionType = l.Kind
		st.MacAddress = l.Mac
	case !l.Up && primary && l.Kind == "ethernet":
		// cable pulled
		clearPrimary(st)
	}
}

// removeLink forgets a link that has gone away
func removeLink(st *state.State, index uint32, name string) {
	if st.UsbInterfaceIndex == index && st.UsbInterfaceName == name {
		st.UsbInterfaceDetected = false
		st.UsbTetheringAvailable = false
		st.UsbTetheringConnected = false
		st.UsbInterfaceName = ""
		st.UsbInterfaceIndex = 0
		if st.ConnectionType == "usb" {
			st.ConnectionType = ""
			st.IpAddress = ""
			st.Gateway = ""
		}
	}
	if st.InterfaceName == name {
		clearPrimary(st)
	}
}

// applyAddress records an address. USB tethering counts as connected once
// it has an address and the default route.
func applyAddress(st *state.State, a addrInfo, gateway string) {
	switch {
	case a.Kind == "usb" && st.UsbInterfaceName == a.Name:
		if gateway == "" {
			return
		}
		st.UsbTetheringConnected = true
		st.ConnectionType = "usb"
		st.IpAddress = a.IP
		st.Gateway = gateway
	case st.InterfaceName == a.Name:
		st.IpAddress = a.IP
		if gateway != "" {
			st.Gateway = gateway
		}
		if st.ConnectionState == state.StateObtaining {
			st.ConnectionState = state.StateConnected
		}
	}
}

// removeAddress drops an address that is no longer configured
func removeAddress(st *state.State, a addrInfo) {
	if st.IpAddress != a.IP {
		return
	}
	st.IpAddress = ""
	st.Gateway = ""
	if a.Kind == "usb" && st.UsbInterfaceName == a.Name {
		st.UsbTetheringConnected = false
		if st.ConnectionType == "usb" {
			st.ConnectionType = ""
		}
	}
}

func clearPrimary(st *state.State) {
	st.InterfaceName = ""
	st.ConnectionType = ""
	st.MacAddress = ""
	st.IpAddress = ""
	st.Gateway = ""
}
