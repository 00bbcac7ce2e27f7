package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"x-wireless/internal/bluez"
	"x-wireless/internal/config"
	"x-wireless/internal/connectivity"
	"x-wireless/internal/dbus"
	"x-wireless/internal/httpapi"
	"x-wireless/internal/iwd"
	"x-wireless/internal/logging"
	"x-wireless/internal/netlink"
	"x-wireless/internal/radioinfo"
	"x-wireless/internal/rfkill"
	"x-wireless/internal/settings"
	"x-wireless/internal/state"

	gobus "github.com/godbus/dbus/v5"
)

var (
	configPath = flag.String("config", config.DefaultPath(), "Path to the YAML config file")
	busType    = flag.String("bus", "", "D-Bus bus type: session or system (overrides config)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *busType != "" {
		cfg.Bus = *busType
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid -bus: %v", err)
		}
	}

	logOut := logging.Setup(cfg.Log, *debug)
	defer logOut.Close()

	log.Println("x-wireless daemon starting...")

	// Initialize state manager
	stateMgr := state.NewManager()
	stateMgr.Update(func(st *state.State) {
		st.EmergencyCallbackMode = cfg.EmergencyCallbackMode
	})

	radios := settings.Radios{
		Wifi:      settings.UnavailableRadio("wifi"),
		Bluetooth: settings.UnavailableRadio("bluetooth"),
		Tethering: settings.UnavailableRadio("tethering"),
	}

	// Airplane mode
	rfSwitch := rfkill.NewSwitch(stateMgr)
	if err := rfSwitch.Refresh(); err != nil {
		log.Printf("Warning: rfkill not available: %v", err)
	}
	radios.Airplane = rfSwitch

	// Initialize IWD client
	iwdClient, err := iwd.NewClient(stateMgr)
	if err != nil {
		log.Printf("Warning: IWD not available: %v", err)
	} else {
		defer iwdClient.Close()
		radios.Wifi = iwdClient.WifiRadio()
		radios.Tethering = iwdClient.Hotspot(cfg.Tethering.SSID, cfg.Tethering.Passphrase)
		log.Println("IWD client connected")
	}

	// Initialize BlueZ client
	bluetoothAvailable := func() bool { return false }
	btClient, err := bluez.NewClient(stateMgr)
	if err != nil {
		log.Printf("Warning: BlueZ not available: %v", err)
	} else {
		radios.Bluetooth = btClient
		bluetoothAvailable = btClient.Available
		log.Println("BlueZ client connected")
	}

	// Initialize netlink watcher
	nlWatcher, err := netlink.NewWatcher(stateMgr)
	if err != nil {
		log.Printf("Warning: Netlink watcher failed, using sysfs snapshot: %v", err)
		netlink.Snapshot(stateMgr)
	} else {
		defer nlWatcher.Close()
		go nlWatcher.Run()
		log.Println("Netlink watcher started")
	}

	screen := settings.NewScreen(radios, connectivity.NewProvider(stateMgr), settings.Options{
		Fallbacks: radioinfo.Fallbacks{
			Type:   cfg.RadioInfo.TypeDefault,
			Status: cfg.RadioInfo.StatusDefault,
		},
		ToggleableRadios:      cfg.Airplane.ToggleableRadios,
		Hidden:                cfg.Screen.Hidden,
		BluetoothAvailable:    bluetoothAvailable,
		EmergencyCallbackMode: func() bool { return stateMgr.Get().EmergencyCallbackMode },
	})
	screen.Create()

	// Initialize D-Bus service
	dbusService, err := dbus.NewService(cfg.Bus, stateMgr, screen)
	if err != nil {
		log.Fatalf("Failed to start D-Bus service: %v", err)
	}
	defer dbusService.Close()
	screen.SetLauncher(dbusService)
	log.Printf("D-Bus service registered on %s bus", cfg.Bus)

	// Radios update state from inside SetEnabled, which runs under the
	// screen lock; resync on another goroutine.
	stateMgr.Subscribe(func(*state.State) {
		go screen.SyncToggles()
	})
	screen.Resume()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.HTTP.Enabled {
		server := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: httpapi.New(screen, stateMgr).Handler(),
		}
		go func() {
			if err := httpapi.RunServer(ctx, server); err != nil {
				log.Printf("HTTP API stopped: %v", err)
			}
		}()
	}

	// Re-read kernel state after suspend
	go watchSystemResume(stateMgr, rfSwitch, nlWatcher == nil)
	log.Println("System resume watcher started")

	log.Println("x-wireless daemon ready")
	<-ctx.Done()
	log.Println("Shutting down...")
	screen.Pause()
}

// watchSystemResume listens for the PrepareForSleep D-Bus signal from logind.
// rfkill has no change events, so airplane mode is re-read on wake; without
// netlink the sysfs link snapshot is refreshed too.
func watchSystemResume(stateMgr *state.Manager, rfSwitch *rfkill.Switch, sysfsOnly bool) {
	conn, err := gobus.SystemBus()
	if err != nil {
		log.Printf("Warning: Cannot watch system resume: %v", err)
		return
	}

	// Subscribe to PrepareForSleep signal from logind
	rule := "type='signal',interface='org.freedesktop.login1.Manager',member='PrepareForSleep'"
	if err := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
		log.Printf("Warning: Cannot subscribe to PrepareForSleep: %v", err)
		return
	}

	ch := make(chan *gobus.Signal, 1)
	conn.Signal(ch)

	for sig := range ch {
		if sig.Name != "org.freedesktop.login1.Manager.PrepareForSleep" || len(sig.Body) == 0 {
			continue
		}
		goingToSleep, ok := sig.Body[0].(bool)
		if !ok {
			continue
		}
		if goingToSleep {
			log.Println("System going to sleep")
			continue
		}

		log.Println("System resumed from sleep, refreshing radio state")
		if err := rfSwitch.Refresh(); err != nil {
			log.Printf("rfkill refresh failed: %v", err)
		}
		if sysfsOnly {
			netlink.Snapshot(stateMgr)
		}
	}
}
