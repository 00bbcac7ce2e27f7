package dbus

import (
	"fmt"
	"log"

	"x-wireless/internal/settings"
	"x-wireless/internal/state"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	ServiceName = "org.xshell.Wireless"
	ObjectPath  = "/org/xshell/Wireless"
	Interface   = "org.xshell.Wireless"
)

// Service represents the D-Bus service
type Service struct {
	conn     *dbus.Conn
	stateMgr *state.Manager
	screen   *settings.Screen
}

// NewService creates and registers the D-Bus service
func NewService(busType string, stateMgr *state.Manager, screen *settings.Screen) (*Service, error) {
	var conn *dbus.Conn
	var err error

	if busType == "system" {
		conn, err = dbus.SystemBus()
	} else {
		conn, err = dbus.SessionBus()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to D-Bus: %w", err)
	}

	s := newService(conn, stateMgr, screen)

	// Request service name
	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("name already taken")
	}

	// Export the service object
	if err := conn.Export(s, ObjectPath, Interface); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export: %w", err)
	}

	// Export the Properties interface
	if err := conn.Export(s, ObjectPath, "org.freedesktop.DBus.Properties"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export properties: %w", err)
	}

	node := &introspect.Node{
		Name: ObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:       Interface,
				Methods:    s.methods(),
				Properties: s.properties(),
				Signals:    s.signals(),
			},
		},
	}
	conn.Export(introspect.NewIntrospectable(node), ObjectPath, "org.freedesktop.DBus.Introspectable")

	stateMgr.Subscribe(s.onStateChange)
	screen.SetOnChange(s.onScreenChange)

	return s, nil
}

func newService(conn *dbus.Conn, stateMgr *state.Manager, screen *settings.Screen) *Service {
	return &Service{
		conn:     conn,
		stateMgr: stateMgr,
		screen:   screen,
	}
}

// Close closes the D-Bus connection
func (s *Service) Close() {
	s.conn.Close()
}

// StartForResult implements settings.Launcher by asking the shell to show
// the notice named by action; the answer comes back via ExitEcmResult
func (s *Service) StartForResult(action string, requestCode int) error {
	if s.conn == nil {
		return fmt.Errorf("no D-Bus connection")
	}
	return s.conn.Emit(ObjectPath, Interface+"."+action, int32(requestCode))
}

func (s *Service) onStateChange(st *state.State) {
	s.emitPropertiesChanged(s.stateProps(st))
}

func (s *Service) onScreenChange(v settings.View) {
	s.emitPropertiesChanged(screenProps(v))
}

// emitPropertiesChanged emits PropertiesChanged for modified properties
func (s *Service) emitPropertiesChanged(changed map[string]dbus.Variant) {
	if s.conn == nil {
		return
	}
	err := s.conn.Emit(ObjectPath, "org.freedesktop.DBus.Properties.PropertiesChanged",
		Interface, changed, []string{})
	if err != nil {
		log.Printf("Failed to emit PropertiesChanged: %v", err)
	}
}

// EmitSignal emits a custom signal
func (s *Service) EmitSignal(name string, values ...interface{}) {
	if s.conn == nil {
		return
	}
	err := s.conn.Emit(ObjectPath, Interface+"."+name, values...)
	if err != nil {
		log.Printf("Failed to emit %s: %v", name, err)
	}
}

// methods returns introspection method definitions
func (s *Service) methods() []introspect.Method {
	return []introspect.Method{
		{Name: "Resume"},
		{Name: "Pause"},
		{Name: "Click", Args: []introspect.Arg{
			{Name: "key", Type: "s", Direction: "in"},
			{Name: "handled", Type: "b", Direction: "out"},
		}},
		{Name: "SetChecked", Args: []introspect.Arg{
			{Name: "key", Type: "s", Direction: "in"},
			{Name: "checked", Type: "b", Direction: "in"},
			{Name: "handled", Type: "b", Direction: "out"},
		}},
		{Name: "ExitEcmResult", Args: []introspect.Arg{
			{Name: "requestCode", Type: "i", Direction: "in"},
			{Name: "exitEcm", Type: "b", Direction: "in"},
		}},
		{Name: "SetEmergencyCallbackMode", Args: []introspect.Arg{
			{Name: "enabled", Type: "b", Direction: "in"},
		}},
	}
}

// properties returns introspection property definitions
func (s *Service) properties() []introspect.Property {
	return []introspect.Property{
		{Name: "AirplaneMode", Type: "b", Access: "read"},
		{Name: "WifiEnabled", Type: "b", Access: "read"},
		{Name: "BluetoothEnabled", Type: "b", Access: "read"},
		{Name: "TetheringEnabled", Type: "b", Access: "read"},
		{Name: "EmergencyCallbackMode", Type: "b", Access: "read"},
		{Name: "RadioInfoType", Type: "s", Access: "read"},
		{Name: "RadioInfoStatus", Type: "s", Access: "read"},
		{Name: "ConnectionType", Type: "s", Access: "read"},
		{Name: "InterfaceName", Type: "s", Access: "read"},
		{Name: "IpAddress", Type: "s", Access: "read"},
		{Name: "MacAddress", Type: "s", Access: "read"},
		{Name: "Gateway", Type: "s", Access: "read"},
		{Name: "ActiveSSID", Type: "s", Access: "read"},
		{Name: "ActiveSecurity", Type: "s", Access: "read"},
		{Name: "SignalRSSI", Type: "n", Access: "read"},
		{Name: "SignalStrength", Type: "y", Access: "read"},
		{Name: "HotspotSSID", Type: "s", Access: "read"},
		{Name: "LastError", Type: "s", Access: "read"},
		{Name: "Preferences", Type: "a(sssbbb)", Access: "read"},
	}
}

// signals returns introspection signal definitions
func (s *Service) signals() []introspect.Signal {
	return []introspect.Signal{
		{Name: settings.ActionShowNoticeECMBlockOthers, Args: []introspect.Arg{
			{Name: "requestCode", Type: "i"},
		}},
		{Name: "Error", Args: []introspect.Arg{
			{Name: "operation", Type: "s"},
			{Name: "message", Type: "s"},
		}},
	}
}
