package source

import (
	"context"
	"path/filepath"

	"codeberg.org/mutker/scened/internal/errors"
	"codeberg.org/mutker/scened/internal/monitor"
	"codeberg.org/mutker/scened/internal/scene"
)

const backlightDir = "class/backlight"

// BacklightSource reads the screen brightness of a backlight device.
type BacklightSource struct {
	dir string
}

// NewBacklightSource returns a source for the named backlight under
// sysfsRoot. An empty name selects the first device.
func NewBacklightSource(sysfsRoot, name string) (*BacklightSource, error) {
	root := filepath.Join(sysfsRoot, backlightDir)

	if name == "" {
		path, ok := firstEntry(root, nil)
		if !ok {
			return nil, errors.New().WithData(ErrNoBacklight, root)
		}
		name = filepath.Base(path)
	}

	return &BacklightSource{dir: filepath.Join(root, name)}, nil
}

func (*BacklightSource) Name() string {
	return "backlight"
}

func (s *BacklightSource) Read(ctx context.Context) (monitor.Update, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return monitor.Update{}, errFactory.Wrap(errors.ErrTimeout, err)
	}

	path := filepath.Join(s.dir, "brightness")
	if _, err := readString(path); err != nil {
		return monitor.Update{}, errFactory.Wrap(ErrReadFailed, err).WithData(path)
	}

	return monitor.Update{
		Factors:    scene.FactorBrightness,
		Brightness: readValue(path),
	}, nil
}
