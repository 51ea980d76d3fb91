package config

import "flag"

// Flags holds the command-line overrides shared by every subcommand.
// Zero or sentinel values mean "not set".
type Flags struct {
	Config     string
	Debug      bool
	Workers    int // -1 = not set
	NoEndSites bool
	Scale      float64
}

// RegisterFlags adds the shared flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.IntVar(&f.Workers, "workers", -1, "Kinematics worker goroutines (0 = GOMAXPROCS)")
	fs.BoolVar(&f.NoEndSites, "no-end-sites", false, "Drop End Site joints")
	fs.Float64Var(&f.Scale, "scale", 0, "Export coordinate scale")
	return f
}

// applyFlags applies CLI overrides to cfg.
func applyFlags(cfg *Config, f *Flags) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Workers >= 0 {
		cfg.Kinematics.Workers = f.Workers
	}
	if f.NoEndSites {
		cfg.Parse.KeepEndSites = false
	}
	if f.Scale > 0 {
		cfg.Export.Scale = f.Scale
	}
}
