package state

import (
	"testing"
)

func TestManagerUpdateNotifiesListeners(t *testing.T) {
	m := NewManager()

	var first, second []bool
	m.Subscribe(func(st *State) { first = append(first, st.WifiEnabled) })
	m.Subscribe(func(st *State) { second = append(second, st.WifiEnabled) })

	m.Update(func(st *State) { st.WifiEnabled = true })
	m.Update(func(st *State) { st.WifiEnabled = false })

	if len(first) != 2 || !first[0] || first[1] {
		t.Errorf("first listener saw %v, want [true false]", first)
	}
	if len(second) != 2 {
		t.Errorf("second listener saw %d updates, want 2", len(second))
	}
}

func TestManagerGetReturnsCopy(t *testing.T) {
	m := NewManager()
	st := m.Get()
	if st.ConnectionState != StateDisconnected {
		t.Fatalf("initial connection state = %q, want %q", st.ConnectionState, StateDisconnected)
	}

	st.AirplaneMode = true
	if m.Get().AirplaneMode {
		t.Fatal("mutating a copy changed manager state")
	}
}

func TestListenerCanReadManager(t *testing.T) {
	m := NewManager()
	var seen bool
	m.Subscribe(func(*State) { seen = m.Get().HotspotActive })

	m.Update(func(st *State) { st.HotspotActive = true })
	if !seen {
		t.Fatal("listener did not observe updated state")
	}
}

func TestDBmToPercent(t *testing.T) {
	tests := []struct {
		dBm  int16
		want uint8
	}{
		{-120, 0},
		{-100, 0},
		{-75, 50},
		{-50, 100},
		{-30, 100},
	}
	for _, tt := range tests {
		if got := DBmToPercent(tt.dBm); got != tt.want {
			t.Errorf("DBmToPercent(%d) = %d, want %d", tt.dBm, got, tt.want)
		}
	}
}

func TestFrequencyToBand(t *testing.T) {
	tests := []struct {
		freq uint32
		want string
	}{
		{0, ""},
		{2412, "2.4GHz"},
		{5180, "5GHz"},
		{5955, "6GHz"},
		{900, ""},
	}
	for _, tt := range tests {
		if got := FrequencyToBand(tt.freq); got != tt.want {
			t.Errorf("FrequencyToBand(%d) = %q, want %q", tt.freq, got, tt.want)
		}
	}
}
