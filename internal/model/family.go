package model

import "sync"

type FamilyType string

const FamilyTypeSummary FamilyType = "summary"

const (
	FamilyMeter    = "meter_0"
	FamilyRelay    = "relay_0"
	FamilyStatus   = "status"
	FamilySettings = "settings"
)

// Family is a named bucket of samples shared by every device collector of a fleet.
type Family struct {
	Name string
	Help string
	Type FamilyType

	mu      sync.Mutex
	samples []Sample
}

func NewFamily(name, help string) *Family {
	return &Family{Name: name, Help: help, Type: FamilyTypeSummary}
}

// NewFleetFamilies creates the four families in exposition order.
func NewFleetFamilies() []*Family {
	return []*Family{
		NewFamily(FamilyMeter, "Meter 0"),
		NewFamily(FamilyRelay, "Relay 0"),
		NewFamily(FamilyStatus, "Status"),
		NewFamily(FamilySettings, "Settings"),
	}
}

func (f *Family) AddSample(name string, value float64, labels Labels) {
	f.Add(Sample{Name: name, Value: value, Labels: labels})
}

func (f *Family) Add(samples ...Sample) {
	f.mu.Lock()
	f.samples = append(f.samples, samples...)
	f.mu.Unlock()
}

// Samples returns the samples added since the last Reset, in insertion order.
func (f *Family) Samples() []Sample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sample(nil), f.samples...)
}

func (f *Family) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.samples)
}

func (f *Family) Reset() {
	f.mu.Lock()
	f.samples = nil
	f.mu.Unlock()
}

// Clone returns a detached copy that later Reset calls on f do not affect.
func (f *Family) Clone() *Family {
	out := NewFamily(f.Name, f.Help)
	out.Type = f.Type
	out.samples = f.Samples()
	return out
}
