package source

import (
	"bufio"
	"context"
	"os"
	"strings"

	"codeberg.org/mutker/scened/internal/errors"
	"codeberg.org/mutker/scened/internal/monitor"
	"codeberg.org/mutker/scened/internal/scene"
)

// AppSource reads the foreground app id from the first line of a file kept
// up to date by an external tracker.
type AppSource struct {
	path string
}

func NewAppSource(path string) *AppSource {
	return &AppSource{path: path}
}

func (*AppSource) Name() string {
	return "app"
}

// Read returns an empty app id, which the monitor ignores, while the file
// does not exist yet.
func (s *AppSource) Read(ctx context.Context) (monitor.Update, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return monitor.Update{}, errFactory.Wrap(errors.ErrTimeout, err)
	}

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return monitor.Update{Factors: scene.FactorApp}, nil
		}
		return monitor.Update{}, errFactory.Wrap(ErrReadFailed, err).WithData(s.path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var app string
	if scanner.Scan() {
		app = strings.TrimSpace(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return monitor.Update{}, errFactory.Wrap(ErrReadFailed, err).WithData(s.path)
	}

	return monitor.Update{Factors: scene.FactorApp, App: scene.AppID(app)}, nil
}
