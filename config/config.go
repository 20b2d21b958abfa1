package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const CONFILE = "config.yml"

type Config struct {
	RealHW     bool   `yaml:"-" json:"-"`
	Configfile string `yaml:"-" json:"-"`

	Timing    TimingConfig    `yaml:"Timing"`
	Audio     AudioConfig     `yaml:"Audio"`
	Matrix    MatrixConfig    `yaml:"Matrix"`
	Scheduler SchedulerConfig `yaml:"Scheduler"`
	NightAuto NightAutoConfig `yaml:"NightAuto"`
	Web       WebConfig       `yaml:"Web"`
	Logging   LoggingConfig   `yaml:"Logging"`
	Hardware  HardwareConfig  `yaml:"Hardware"`
}

type TimingConfig struct {
	Green          time.Duration `yaml:"Green" json:"Green"`
	Yellow         time.Duration `yaml:"Yellow" json:"Yellow"`
	Red            time.Duration `yaml:"Red" json:"Red"`
	SignWindow     time.Duration `yaml:"SignWindow" json:"SignWindow"`
	SignAlternate  time.Duration `yaml:"SignAlternate" json:"SignAlternate"`
	NightBlink     time.Duration `yaml:"NightBlink" json:"NightBlink"`
	NightAlternate time.Duration `yaml:"NightAlternate" json:"NightAlternate"`
	BlindCycle     time.Duration `yaml:"BlindCycle" json:"BlindCycle"`
	Debounce       time.Duration `yaml:"Debounce" json:"Debounce"`
	StartupStep    time.Duration `yaml:"StartupStep" json:"StartupStep"`
	Splash         time.Duration `yaml:"Splash" json:"Splash"`
	SkipStartup    bool          `yaml:"SkipStartup" json:"SkipStartup"`
}

type CadenceConfig struct {
	OnAfter   time.Duration `yaml:"OnAfter" json:"OnAfter"`
	OffAfter  time.Duration `yaml:"OffAfter" json:"OffAfter"`
	FreqHz    uint32        `yaml:"FreqHz" json:"FreqHz"`
	FromOnset bool          `yaml:"FromOnset" json:"FromOnset"`
}

type AudioConfig struct {
	Night  CadenceConfig `yaml:"Night" json:"Night"`
	Green  CadenceConfig `yaml:"Green" json:"Green"`
	Yellow CadenceConfig `yaml:"Yellow" json:"Yellow"`
	Red    CadenceConfig `yaml:"Red" json:"Red"`
	// Volume of the simulated buzzer, 0..1
	Volume float64 `yaml:"Volume" json:"Volume"`
	// RecordFile, if set, records the simulated buzzer to a WAV file
	RecordFile string `yaml:"RecordFile" json:"RecordFile"`
}

type MatrixConfig struct {
	NightRGB   []float64 `yaml:"NightRGB" json:"NightRGB"`
	WalkRGB    []float64 `yaml:"WalkRGB" json:"WalkRGB"`
	WaitRGB    []float64 `yaml:"WaitRGB" json:"WaitRGB"`
	CautionRGB []float64 `yaml:"CautionRGB" json:"CautionRGB"`
}

type SchedulerConfig struct {
	Mode    string        `yaml:"Mode"`
	Signal  time.Duration `yaml:"Signal"`
	Display time.Duration `yaml:"Display"`
	Matrix  time.Duration `yaml:"Matrix"`
	Buttons time.Duration `yaml:"Buttons"`
}

type NightAutoConfig struct {
	Enabled   bool          `yaml:"Enabled" json:"Enabled"`
	Latitude  float64       `yaml:"Latitude" json:"Latitude"`
	Longitude float64       `yaml:"Longitude" json:"Longitude"`
	Check     time.Duration `yaml:"Check" json:"Check"`
}

type WebConfig struct {
	Enabled bool `yaml:"Enabled"`
	Port    int  `yaml:"Port"`
}

type LogConfig struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

type LoggingConfig struct {
	TUI LogConfig `yaml:"TUI"`
	HW  LogConfig `yaml:"HW"`
}

type DisplayConfig struct {
	I2CBus    string `yaml:"I2CBus"`
	BitmapDir string `yaml:"BitmapDir"`
}

type LampsConfig struct {
	RedGPIO    int `yaml:"RedGPIO"`
	YellowGPIO int `yaml:"YellowGPIO"`
	GreenGPIO  int `yaml:"GreenGPIO"`
}

type ButtonsConfig struct {
	AGPIO int `yaml:"AGPIO"`
	BGPIO int `yaml:"BGPIO"`
}

type BuzzerConfig struct {
	GPIO        int `yaml:"GPIO"`
	CycleLength int `yaml:"CycleLength"`
}

type MatrixHWConfig struct {
	SPIPort      string `yaml:"SPIPort"`
	SPIFrequency int    `yaml:"SPIFrequency"`
}

type HardwareConfig struct {
	Display DisplayConfig  `yaml:"Display"`
	Lamps   LampsConfig    `yaml:"Lamps"`
	Buttons ButtonsConfig  `yaml:"Buttons"`
	Buzzer  BuzzerConfig   `yaml:"Buzzer"`
	Matrix  MatrixHWConfig `yaml:"Matrix"`
}

const (
	SchedulerTasks = "tasks"
	SchedulerLoop  = "loop"
)

// ReadConfig reads and validates the YAML configuration in cfile.
func ReadConfig(cfile string, realhw bool) (*Config, error) {
	f, err := os.Open(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't open config file %s: %w", cfile, err)
	}
	defer f.Close()

	var conf Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&conf); err != nil {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	conf.RealHW = realhw
	conf.Configfile = cfile

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return &conf, nil
}

// Validate checks all values that would otherwise break the controller
// at runtime.
func (c *Config) Validate() error {
	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("Timing: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("Audio: %w", err)
	}
	if err := c.Matrix.Validate(); err != nil {
		return fmt.Errorf("Matrix: %w", err)
	}
	if err := c.Scheduler.Validate(c.Timing); err != nil {
		return fmt.Errorf("Scheduler: %w", err)
	}
	if err := c.NightAuto.Validate(); err != nil {
		return fmt.Errorf("NightAuto: %w", err)
	}
	if c.Web.Enabled && (c.Web.Port <= 0 || c.Web.Port > 65535) {
		return fmt.Errorf("Web: Port %d must be between 1 and 65535", c.Web.Port)
	}
	return nil
}

func (t TimingConfig) Validate() error {
	for _, p := range []struct {
		name string
		d    time.Duration
	}{
		{"Green", t.Green},
		{"Yellow", t.Yellow},
		{"Red", t.Red},
		{"SignWindow", t.SignWindow},
		{"SignAlternate", t.SignAlternate},
		{"NightBlink", t.NightBlink},
		{"NightAlternate", t.NightAlternate},
		{"BlindCycle", t.BlindCycle},
		{"StartupStep", t.StartupStep},
		{"Splash", t.Splash},
	} {
		if p.d <= 0 {
			return fmt.Errorf("%s must be greater than 0, got %s", p.name, p.d)
		}
	}
	if t.Debounce < 0 {
		return fmt.Errorf("Debounce must not be negative, got %s", t.Debounce)
	}
	return nil
}

func (c CadenceConfig) validate(name string) error {
	if c.OnAfter <= 0 || c.OffAfter <= 0 {
		return fmt.Errorf("%s: OnAfter and OffAfter must be greater than 0", name)
	}
	if c.FreqHz < 20 || c.FreqHz > 20000 {
		return fmt.Errorf("%s: FreqHz must be between 20 and 20000, got %d", name, c.FreqHz)
	}
	return nil
}

func (a AudioConfig) Validate() error {
	for _, c := range []struct {
		name    string
		cadence CadenceConfig
	}{
		{"Night", a.Night},
		{"Green", a.Green},
		{"Yellow", a.Yellow},
		{"Red", a.Red},
	} {
		if err := c.cadence.validate(c.name); err != nil {
			return err
		}
	}
	if a.Volume < 0 || a.Volume > 1 {
		return fmt.Errorf("Volume must be between 0 and 1, got %v", a.Volume)
	}
	return nil
}

func validateRGB(name string, rgb []float64) error {
	if len(rgb) != 3 {
		return fmt.Errorf("%s must have 3 components, got %d", name, len(rgb))
	}
	for _, v := range rgb {
		if v < 0 || v > 255 {
			return fmt.Errorf("%s values must be between 0 and 255, got %v", name, rgb)
		}
	}
	return nil
}

func (m MatrixConfig) Validate() error {
	for _, c := range []struct {
		name string
		rgb  []float64
	}{
		{"NightRGB", m.NightRGB},
		{"WalkRGB", m.WalkRGB},
		{"WaitRGB", m.WaitRGB},
		{"CautionRGB", m.CautionRGB},
	} {
		if err := validateRGB(c.name, c.rgb); err != nil {
			return err
		}
	}
	return nil
}

// Longest periods that still meet the rates the controller needs.
const (
	MaxSignalPeriod  = 10 * time.Millisecond
	MaxDisplayPeriod = 500 * time.Millisecond
	MaxMatrixPeriod  = 100 * time.Millisecond
	MaxButtonsPeriod = 10 * time.Millisecond
)

// Validate checks the periods against the rates the controller needs.
// Buttons must also be read faster than the debounce window.
func (s SchedulerConfig) Validate(timing TimingConfig) error {
	switch strings.ToLower(s.Mode) {
	case SchedulerTasks, SchedulerLoop:
	default:
		return fmt.Errorf("Mode must be %q or %q, got %q", SchedulerTasks, SchedulerLoop, s.Mode)
	}
	for _, p := range []struct {
		name   string
		period time.Duration
		max    time.Duration
	}{
		{"Signal", s.Signal, MaxSignalPeriod},
		{"Display", s.Display, MaxDisplayPeriod},
		{"Matrix", s.Matrix, MaxMatrixPeriod},
		{"Buttons", s.Buttons, MaxButtonsPeriod},
	} {
		if p.period <= 0 {
			return fmt.Errorf("%s period must be greater than 0, got %s", p.name, p.period)
		}
		if p.period > p.max {
			return fmt.Errorf("%s period %s must not exceed %s", p.name, p.period, p.max)
		}
	}
	if timing.Debounce > 0 && s.Buttons > timing.Debounce {
		return fmt.Errorf("Buttons period %s must not exceed the debounce window %s", s.Buttons, timing.Debounce)
	}
	return nil
}

func (n NightAutoConfig) Validate() error {
	if !n.Enabled {
		return nil
	}
	if n.Latitude < -90 || n.Latitude > 90 {
		return fmt.Errorf("Latitude must be between -90 and 90, got %v", n.Latitude)
	}
	if n.Longitude < -180 || n.Longitude > 180 {
		return fmt.Errorf("Longitude must be between -180 and 180, got %v", n.Longitude)
	}
	if n.Check <= 0 {
		return fmt.Errorf("Check must be greater than 0")
	}
	return nil
}

// Default returns the configuration the controller uses when no file is
// available, e.g. on the microcontroller build.
func Default() *Config {
	return &Config{
		Timing: TimingConfig{
			Green:          5 * time.Second,
			Yellow:         2 * time.Second,
			Red:            5 * time.Second,
			SignWindow:     2 * time.Second,
			SignAlternate:  250 * time.Millisecond,
			NightBlink:     time.Second,
			NightAlternate: 500 * time.Millisecond,
			BlindCycle:     300 * time.Millisecond,
			Debounce:       300 * time.Millisecond,
			StartupStep:    500 * time.Millisecond,
			Splash:         2 * time.Second,
		},
		Audio: AudioConfig{
			Night:  CadenceConfig{OnAfter: 2000 * time.Millisecond, OffAfter: 100 * time.Millisecond, FreqHz: 1500, FromOnset: true},
			Green:  CadenceConfig{OnAfter: 1000 * time.Millisecond, OffAfter: 100 * time.Millisecond, FreqHz: 2000, FromOnset: true},
			Yellow: CadenceConfig{OnAfter: 100 * time.Millisecond, OffAfter: 100 * time.Millisecond, FreqHz: 3000},
			Red:    CadenceConfig{OnAfter: 1500 * time.Millisecond, OffAfter: 500 * time.Millisecond, FreqHz: 1000},
			Volume: 0.2,
		},
		Matrix: MatrixConfig{
			NightRGB:   []float64{50, 50, 0},
			WalkRGB:    []float64{0, 50, 0},
			WaitRGB:    []float64{50, 0, 0},
			CautionRGB: []float64{50, 50, 0},
		},
		Scheduler: SchedulerConfig{
			Mode:    SchedulerTasks,
			Signal:  10 * time.Millisecond,
			Display: 500 * time.Millisecond,
			Matrix:  100 * time.Millisecond,
			Buttons: 10 * time.Millisecond,
		},
		NightAuto: NightAutoConfig{Check: time.Minute},
		Web:       WebConfig{Port: 8080},
		Logging: LoggingConfig{
			TUI: LogConfig{Level: "INFO", Format: "text"},
			HW:  LogConfig{Level: "INFO", Format: "json"},
		},
		Hardware: HardwareConfig{
			Display: DisplayConfig{I2CBus: "1", BitmapDir: "bitmaps"},
			Lamps:   LampsConfig{RedGPIO: 17, YellowGPIO: 27, GreenGPIO: 22},
			Buttons: ButtonsConfig{AGPIO: 5, BGPIO: 6},
			Buzzer:  BuzzerConfig{GPIO: 18, CycleLength: 32},
			Matrix:  MatrixHWConfig{SPIPort: "/dev/spidev0.0", SPIFrequency: 2500000},
		},
	}
}
