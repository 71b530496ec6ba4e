package config

import (
	"context"
	"os"
	"strings"
	"sync"

	"codeberg.org/mutker/scened/internal/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultInterval       = 2
	DefaultLogLevel       = "info"
	DefaultSysfsRoot      = "/sys"
	DefaultCPUFreqRoot    = "/sys/devices/system/cpu/cpufreq"
	DefaultLowBattery     = 15
	DefaultHotTemperature = 450
	DefaultJournalDB      = "/var/lib/scened/journal.db"

	configName = "scened"
	configType = "toml"
	envPrefix  = "SCENED"
)

type Config struct {
	Interval        int      `mapstructure:"interval"`
	LogLevel        string   `mapstructure:"log_level"`
	Monitor         bool     `mapstructure:"monitor"`
	Battery         string   `mapstructure:"battery"`
	Backlight       string   `mapstructure:"backlight"`
	AppFile         string   `mapstructure:"app_file"`
	SysfsRoot       string   `mapstructure:"sysfs_root"`
	CPUFreqRoot     string   `mapstructure:"cpufreq_root"`
	LowBattery      int      `mapstructure:"low_battery"`
	HotTemperature  int      `mapstructure:"hot_temperature"`
	PerformanceApps []string `mapstructure:"performance_apps"`
	Journal         bool     `mapstructure:"journal"`
	JournalDB       string   `mapstructure:"journal_db"`
}

// Loader reads configuration from file, environment and flags, in
// increasing order of precedence.
type Loader struct {
	v    *viper.Viper
	fs   *pflag.FlagSet
	opts options

	mu      sync.Mutex
	watched bool
}

func NewLoader(opts ...Option) (*Loader, error) {
	errFactory := errors.New()

	o := options{envPrefix: envPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}
	if !o.argsSet && len(os.Args) > 1 {
		o.args = os.Args[1:]
	}

	l := &Loader{
		v:    viper.New(),
		fs:   pflag.NewFlagSet(configName, pflag.ContinueOnError),
		opts: o,
	}
	if err := l.bind(); err != nil {
		return nil, err
	}

	return l, nil
}

// Load is a shortcut for NewLoader followed by Loader.Load.
func Load(opts ...Option) (*Config, error) {
	l, err := NewLoader(opts...)
	if err != nil {
		return nil, err
	}

	return l.Load()
}

func (l *Loader) bind() error {
	errFactory := errors.New()

	defaults := map[string]any{
		"interval":         DefaultInterval,
		"log_level":        DefaultLogLevel,
		"monitor":          false,
		"battery":          "",
		"backlight":        "",
		"app_file":         "",
		"sysfs_root":       DefaultSysfsRoot,
		"cpufreq_root":     DefaultCPUFreqRoot,
		"low_battery":      DefaultLowBattery,
		"hot_temperature":  DefaultHotTemperature,
		"performance_apps": []string{},
		"journal":          false,
		"journal_db":       DefaultJournalDB,
	}
	for key, value := range defaults {
		l.v.SetDefault(key, value)
	}

	l.fs.Int("interval", DefaultInterval, "Seconds between signal polls")
	l.fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	l.fs.Bool("monitor", false, "Only observe the scene, never apply policies")
	l.fs.String("battery", "", "power_supply name of the battery (autodetect when empty)")
	l.fs.String("backlight", "", "backlight device name (autodetect when empty)")
	l.fs.String("app-file", "", "File holding the foreground app id")
	l.fs.String("sysfs-root", DefaultSysfsRoot, "Root of the sysfs tree")
	l.fs.String("cpufreq-root", DefaultCPUFreqRoot, "Root of the cpufreq policy tree")
	l.fs.Int("low-battery", DefaultLowBattery, "Battery percent at or below which power is saved")
	l.fs.Int("hot-temperature", DefaultHotTemperature, "Battery temperature in tenths of a degree that forces power saving")
	l.fs.StringSlice("performance-apps", nil, "Apps that get the performance profile")
	l.fs.Bool("journal", false, "Record scene transitions in the journal database")
	l.fs.String("journal-db", DefaultJournalDB, "Path of the journal database")
	l.fs.String("config", "", "Path of the configuration file")

	if err := l.fs.Parse(l.opts.args); err != nil {
		return errFactory.Wrap(errors.ErrBindFlags, err)
	}

	var bindErr error
	l.fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || bindErr != nil {
			return
		}
		bindErr = l.v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	if bindErr != nil {
		return errFactory.Wrap(errors.ErrBindFlags, bindErr)
	}

	l.v.SetEnvPrefix(l.opts.envPrefix)
	l.v.AutomaticEnv()

	l.v.SetConfigType(configType)
	switch path := l.configPath(); {
	case path != "":
		l.v.SetConfigFile(path)
	default:
		l.v.SetConfigName(configName)
		l.v.AddConfigPath("/etc")
		l.v.AddConfigPath("/etc/scened")
	}

	return nil
}

// configPath resolves the explicit file: flag, then option, then
// <PREFIX>_CONFIG.
func (l *Loader) configPath() string {
	if f := l.fs.Lookup("config"); f != nil && f.Changed {
		return f.Value.String()
	}
	if l.opts.configPath != "" {
		return l.opts.configPath
	}

	return os.Getenv(l.opts.envPrefix + "_CONFIG")
}

// Load reads every source and validates the result.
func (l *Loader) Load() (*Config, error) {
	errFactory := errors.New()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Watch reloads the configuration file whenever it changes and hands every
// valid result to callback. Invalid files are reported through onError and
// otherwise ignored. Callbacks stop once ctx is done.
func (l *Loader) Watch(ctx context.Context, callback func(*Config), onError func(error)) error {
	errFactory := errors.New()

	if l.v.ConfigFileUsed() == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "No configuration file to watch")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watched {
		return errFactory.WithMessage(errors.ErrInvalidArgument, "Configuration is already watched")
	}
	l.watched = true

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if ctx.Err() != nil || e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}

		cfg, err := l.reload()
		if err != nil {
			if onError != nil {
				onError(errFactory.Wrap(errors.ErrReadConfig, err).WithData(e.Name))
			}
			return
		}
		callback(cfg)
	})
	l.v.WatchConfig()

	return nil
}

func (l *Loader) reload() (*Config, error) {
	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigFile returns the file that was read, if any.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Validate checks value ranges
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if !LogLevel(strings.ToLower(c.LogLevel)).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.LowBattery < 0 || c.LowBattery > 100 {
		return errFactory.WithData(errors.ErrInvalidThreshold, struct {
			Field string
			Value int
		}{"low_battery", c.LowBattery})
	}
	if c.HotTemperature <= 0 {
		return errFactory.WithData(errors.ErrInvalidThreshold, struct {
			Field string
			Value int
		}{"hot_temperature", c.HotTemperature})
	}
	if c.Journal && c.JournalDB == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "Journal enabled without journal_db")
	}

	return nil
}
