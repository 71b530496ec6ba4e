package scene

import "strings"

// AppID identifies the foreground application factor. Its value is opaque
// to the engine.
type AppID string

const (
	// DefaultApp is the app factor before any foreground signal arrived.
	DefaultApp AppID = "default"

	// Unknown is the raw platform sentinel for numeric factors.
	Unknown = -1
)

// Factor is a set of tracked signal dimensions.
type Factor uint8

const (
	FactorApp Factor = 1 << iota
	FactorBattery
	FactorBrightness

	FactorNone Factor = 0
	FactorAll  Factor = FactorApp | FactorBattery | FactorBrightness
)

// Has reports whether every factor in other is set in f.
func (f Factor) Has(other Factor) bool {
	return f&other == other && other != FactorNone
}

func (f Factor) String() string {
	if f == FactorNone {
		return "none"
	}

	var names []string
	if f&FactorApp != 0 {
		names = append(names, "app")
	}
	if f&FactorBattery != 0 {
		names = append(names, "battery")
	}
	if f&FactorBrightness != 0 {
		names = append(names, "brightness")
	}

	return strings.Join(names, "|")
}

// Plug states, encoded the way the platform reports them.
const (
	Unplugged = 0
	Plugged   = 1
)

// Status is a battery charging status code. Values follow the Android
// BatteryManager numbering.
type Status int

const (
	StatusUnknown     Status = 1
	StatusCharging    Status = 2
	StatusDischarging Status = 3
	StatusNotCharging Status = 4
	StatusFull        Status = 5
)

func (s Status) String() string {
	switch s {
	case StatusCharging:
		return "charging"
	case StatusDischarging:
		return "discharging"
	case StatusNotCharging:
		return "not_charging"
	case StatusFull:
		return "full"
	default:
		return "unknown"
	}
}

// Health is a battery health code. Values follow the Android
// BatteryManager numbering.
type Health int

const (
	HealthUnknown            Health = 1
	HealthGood               Health = 2
	HealthOverheat           Health = 3
	HealthDead               Health = 4
	HealthOverVoltage        Health = 5
	HealthUnspecifiedFailure Health = 6
	HealthCold               Health = 7
)

func (h Health) String() string {
	switch h {
	case HealthGood:
		return "good"
	case HealthOverheat:
		return "overheat"
	case HealthDead:
		return "dead"
	case HealthOverVoltage:
		return "over_voltage"
	case HealthUnspecifiedFailure:
		return "unspecified_failure"
	case HealthCold:
		return "cold"
	default:
		return "unknown"
	}
}
