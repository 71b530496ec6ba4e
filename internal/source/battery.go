package source

import (
	"context"
	"path/filepath"
	"strconv"

	"codeberg.org/mutker/scened/internal/errors"
	"codeberg.org/mutker/scened/internal/monitor"
	"codeberg.org/mutker/scened/internal/scene"
)

const powerSupplyDir = "class/power_supply"

var batteryStatus = map[string]scene.Status{
	"Unknown":      scene.StatusUnknown,
	"Charging":     scene.StatusCharging,
	"Discharging":  scene.StatusDischarging,
	"Not charging": scene.StatusNotCharging,
	"Full":         scene.StatusFull,
}

var batteryHealth = map[string]scene.Health{
	"Unknown":             scene.HealthUnknown,
	"Good":                scene.HealthGood,
	"Overheat":            scene.HealthOverheat,
	"Dead":                scene.HealthDead,
	"Over voltage":        scene.HealthOverVoltage,
	"Unspecified failure": scene.HealthUnspecifiedFailure,
	"Cold":                scene.HealthCold,
}

// BatterySource reads a power_supply battery and the online state of the
// external supplies.
type BatterySource struct {
	root string
	name string
}

// NewBatterySource returns a source for the named battery under sysfsRoot.
// An empty name selects the first supply of type Battery.
func NewBatterySource(sysfsRoot, name string) (*BatterySource, error) {
	root := filepath.Join(sysfsRoot, powerSupplyDir)

	if name == "" {
		path, ok := firstEntry(root, func(path string) bool {
			t, err := readString(filepath.Join(path, "type"))
			return err == nil && t == "Battery"
		})
		if !ok {
			return nil, errors.New().WithData(ErrNoBattery, root)
		}
		name = filepath.Base(path)
	}

	return &BatterySource{root: root, name: name}, nil
}

func (*BatterySource) Name() string {
	return "battery"
}

// Read fails only when the battery directory is gone. Individual missing
// attributes are reported as unknown.
func (s *BatterySource) Read(ctx context.Context) (monitor.Update, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return monitor.Update{}, errFactory.Wrap(errors.ErrTimeout, err)
	}

	dir := filepath.Join(s.root, s.name)
	if _, err := readString(filepath.Join(dir, "type")); err != nil {
		return monitor.Update{}, errFactory.Wrap(ErrReadFailed, err).WithData(dir)
	}

	battery := scene.Battery{
		Level:       readValue(filepath.Join(dir, "capacity")),
		Plugged:     s.plugged(),
		Temperature: readTemperature(filepath.Join(dir, "temp")),
	}
	if text, err := readString(filepath.Join(dir, "status")); err == nil {
		if status, ok := batteryStatus[text]; ok {
			battery.Status = scene.Known(int(status))
		}
	}
	if text, err := readString(filepath.Join(dir, "health")); err == nil {
		if health, ok := batteryHealth[text]; ok {
			battery.Health = scene.Known(int(health))
		}
	}

	return monitor.Update{Factors: scene.FactorBattery, Battery: battery}, nil
}

// plugged is Plugged when any external supply is online, Unplugged when
// supplies exist but none is online, and unknown without supplies.
func (s *BatterySource) plugged() scene.Value {
	seen := false
	online := false

	firstEntry(s.root, func(path string) bool {
		t, err := readString(filepath.Join(path, "type"))
		if err != nil || t == "Battery" {
			return false
		}

		v, ok := readValue(filepath.Join(path, "online")).Get()
		if !ok {
			return false
		}
		seen = true
		online = v > 0

		return online
	})

	switch {
	case online:
		return scene.Known(scene.Plugged)
	case seen:
		return scene.Known(scene.Unplugged)
	default:
		return scene.Value{}
	}
}

// readTemperature keeps sub-zero readings, which sysfs reports as negative
// tenths of a degree.
func readTemperature(path string) scene.Value {
	text, err := readString(path)
	if err != nil {
		return scene.Value{}
	}

	v, err := strconv.Atoi(text)
	if err != nil {
		return scene.Value{}
	}

	return scene.Known(v)
}
