// Package scene defines the scene snapshot: the latest known value of every
// tracked device factor at one instant.
package scene

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Battery holds the battery factors. It is only ever used as part of a
// State.
type Battery struct {
	// Level is the charge in percent, 0-100.
	Level Value
	// Plugged is Unplugged or Plugged.
	Plugged Value
	// Status is a Status code.
	Status Value
	// Health is a Health code.
	Health Value
	// Temperature is in tenths of a degree Celsius.
	Temperature Value
}

// Merge applies the known fields of in on top of b. Unknown fields in in
// never replace a known value.
func (b Battery) Merge(in Battery) (Battery, bool) {
	merged := Battery{
		Level:       b.Level.merge(in.Level),
		Plugged:     b.Plugged.merge(in.Plugged),
		Status:      b.Status.merge(in.Status),
		Health:      b.Health.merge(in.Health),
		Temperature: b.Temperature.merge(in.Temperature),
	}

	return merged, merged != b
}

// IsPlugged reports whether the battery is known to be on external power.
func (b Battery) IsPlugged() bool {
	v, ok := b.Plugged.Get()
	return ok && v == Plugged
}

// Celsius returns the temperature in degrees Celsius.
func (b Battery) Celsius() (float64, bool) {
	v, ok := b.Temperature.Get()
	if !ok {
		return 0, false
	}

	return float64(v) / 10, true
}

// StatusCode returns the charging status, StatusUnknown when absent.
func (b Battery) StatusCode() Status {
	return Status(b.Status.Or(int(StatusUnknown)))
}

// HealthCode returns the battery health, HealthUnknown when absent.
func (b Battery) HealthCode() Health {
	return Health(b.Health.Or(int(HealthUnknown)))
}

// MarshalZerologObject omits an unknown temperature, since -1 is also a
// valid reading of -0.1 degrees.
func (b Battery) MarshalZerologObject(e *zerolog.Event) {
	e.Int("level", b.Level.Raw()).
		Int("plugged", b.Plugged.Raw()).
		Str("status", b.StatusCode().String()).
		Str("health", b.HealthCode().String())
	if temp, ok := b.Temperature.Get(); ok {
		e.Int("temperature", temp)
	}
}

// State is an immutable scene snapshot. The Monitor hands out copies; a
// State never aliases the live scene.
type State struct {
	App        AppID
	Battery    Battery
	Brightness Value

	// Seq increases with every published change. Zero means no change was
	// ever applied.
	Seq uint64
	// Changed lists the factors that changed to produce this snapshot.
	Changed Factor
}

// New returns the default scene: the default app and every other factor
// unknown.
func New() State {
	return State{App: DefaultApp}
}

// Equal compares the factor values, ignoring Seq and Changed.
func (s State) Equal(other State) bool {
	return s.App == other.App &&
		s.Battery == other.Battery &&
		s.Brightness == other.Brightness
}

// IsDefault reports whether no factor has been observed yet.
func (s State) IsDefault() bool {
	return s.Equal(New())
}

func (s State) MarshalZerologObject(e *zerolog.Event) {
	e.Str("app", string(s.App)).
		Object("battery", s.Battery).
		Int("brightness", s.Brightness.Raw()).
		Uint64("seq", s.Seq).
		Str("changed", s.Changed.String())
}

func (s State) String() string {
	return fmt.Sprintf("app=%s level=%s plugged=%s status=%s health=%s temperature=%s brightness=%s",
		s.App, s.Battery.Level, s.Battery.Plugged, s.Battery.StatusCode(), s.Battery.HealthCode(),
		s.Battery.Temperature, s.Brightness)
}
