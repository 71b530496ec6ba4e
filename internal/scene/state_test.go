package scene_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"codeberg.org/mutker/scened/internal/scene"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsDefault(t *testing.T) {
	s := scene.New()

	assert.Equal(t, scene.DefaultApp, s.App)
	assert.Equal(t, scene.Battery{}, s.Battery)
	assert.False(t, s.Brightness.IsKnown())
	assert.Equal(t, scene.Unknown, s.Battery.Level.Raw())
	assert.Equal(t, scene.Unknown, s.Brightness.Raw())
	assert.True(t, s.IsDefault())
	assert.Zero(t, s.Seq)
}

func TestValue(t *testing.T) {
	v, ok := scene.Known(0).Get()
	assert.True(t, ok)
	assert.Equal(t, 0, v)

	assert.False(t, scene.FromRaw(-1).IsKnown())
	assert.False(t, scene.FromRaw(-42).IsKnown())
	assert.Equal(t, scene.Known(7), scene.FromRaw(7))
	assert.Equal(t, 9, scene.Value{}.Or(9))
	assert.Equal(t, "unknown", scene.Value{}.String())
	assert.Equal(t, "55", scene.Known(55).String())
}

func TestBatteryMergeKeepsKnownValues(t *testing.T) {
	current := scene.Battery{
		Level:       scene.Known(55),
		Plugged:     scene.Known(scene.Plugged),
		Status:      scene.Known(int(scene.StatusCharging)),
		Health:      scene.Known(int(scene.HealthGood)),
		Temperature: scene.Known(300),
	}

	merged, changed := current.Merge(scene.Battery{})
	assert.False(t, changed)
	assert.Equal(t, current, merged)

	merged, changed = current.Merge(scene.Battery{Plugged: scene.Known(scene.Unplugged)})
	assert.True(t, changed)
	assert.Equal(t, 55, merged.Level.Raw())
	assert.Equal(t, scene.Unplugged, merged.Plugged.Raw())
	assert.Equal(t, 300, merged.Temperature.Raw())
	assert.False(t, merged.IsPlugged())

	_, changed = current.Merge(scene.Battery{Level: scene.Known(55)})
	assert.False(t, changed, "same value is not a change")
}

func TestBatteryCodes(t *testing.T) {
	var b scene.Battery
	assert.Equal(t, scene.StatusUnknown, b.StatusCode())
	assert.Equal(t, scene.HealthUnknown, b.HealthCode())
	_, ok := b.Celsius()
	assert.False(t, ok)

	b.Status = scene.Known(int(scene.StatusFull))
	b.Health = scene.Known(int(scene.HealthOverheat))
	b.Temperature = scene.Known(415)
	assert.Equal(t, "full", b.StatusCode().String())
	assert.Equal(t, "overheat", b.HealthCode().String())
	c, ok := b.Celsius()
	assert.True(t, ok)
	assert.InDelta(t, 41.5, c, 0.001)
}

func TestStateEqualIgnoresSequence(t *testing.T) {
	a := scene.New()
	b := scene.New()
	b.Seq = 12
	b.Changed = scene.FactorApp
	assert.True(t, a.Equal(b))

	b.App = "com.example.map"
	assert.False(t, a.Equal(b))
	assert.False(t, b.IsDefault())
}

func TestFactorString(t *testing.T) {
	assert.Equal(t, "none", scene.FactorNone.String())
	assert.Equal(t, "app|brightness", (scene.FactorApp | scene.FactorBrightness).String())
	assert.True(t, scene.FactorAll.Has(scene.FactorBattery))
	assert.False(t, scene.FactorApp.Has(scene.FactorBattery))
	assert.False(t, scene.FactorAll.Has(scene.FactorNone))
}

func TestStateMarshalZerologObject(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	s := scene.New()
	s.App = "com.example.map"
	s.Battery.Level = scene.Known(80)
	log.Info().Object("scene", s).Send()

	var entry struct {
		Scene struct {
			App        string `json:"app"`
			Brightness int    `json:"brightness"`
			Battery    struct {
				Level  int    `json:"level"`
				Status string `json:"status"`
			} `json:"battery"`
		} `json:"scene"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "com.example.map", entry.Scene.App)
	assert.Equal(t, 80, entry.Scene.Battery.Level)
	assert.Equal(t, "unknown", entry.Scene.Battery.Status)
	assert.Equal(t, -1, entry.Scene.Brightness)
}

func TestBatteryLogOmitsUnknownTemperature(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	log.Info().Object("battery", scene.Battery{Level: scene.Known(50)}).Send()
	assert.NotContains(t, buf.String(), "temperature")

	buf.Reset()
	log.Info().Object("battery", scene.Battery{Temperature: scene.Known(-1)}).Send()

	var entry struct {
		Battery map[string]any `json:"battery"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(-1), entry.Battery["temperature"], "sub-zero reading is logged")
}
