package config

// RuntimeConfig defines the subset of the configuration that can be
// safely modified at runtime through the web API. It excludes the
// scheduler and hardware settings.
type RuntimeConfig struct {
	Timing    TimingConfig    `yaml:"Timing" json:"Timing"`
	Audio     AudioConfig     `yaml:"Audio" json:"Audio"`
	Matrix    MatrixConfig    `yaml:"Matrix" json:"Matrix"`
	NightAuto NightAutoConfig `yaml:"NightAuto" json:"NightAuto"`
}

// Runtime extracts the runtime configurable part of c.
func (c *Config) Runtime() RuntimeConfig {
	return RuntimeConfig{
		Timing:    c.Timing,
		Audio:     c.Audio,
		Matrix:    c.Matrix,
		NightAuto: c.NightAuto,
	}
}

// Merge replaces the runtime configurable part of c with r.
func (c *Config) Merge(r RuntimeConfig) {
	c.Timing = r.Timing
	c.Audio = r.Audio
	c.Matrix = r.Matrix
	c.NightAuto = r.NightAuto
}
