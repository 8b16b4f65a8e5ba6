package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envPrefix is the prefix of environment variables that set flags, PRIMEGEN_WORKERS for --workers.
const envPrefix = "primegen"

// config holds the flag values after flags, environment and config file are merged.
// Flags win over the environment, which wins over the config file.
type config struct {
	Workers  int
	Rounds   int
	Pool     string
	Format   string
	Distinct bool
	Verify   bool
	Verbose  bool
}

func (c config) validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("--workers must be >= 1, got %d", c.Workers)
	case c.Rounds < 1:
		return fmt.Errorf("--rounds must be >= 1, got %d", c.Rounds)
	}

	switch c.Pool {
	case poolLimited, poolPooled:
	default:
		return fmt.Errorf("--pool must be %q or %q, got %q", poolLimited, poolPooled, c.Pool)
	}

	switch c.Format {
	case formatText, formatJSON, formatCSV:
	default:
		return fmt.Errorf("--format must be one of %q, %q, %q, got %q", formatText, formatJSON, formatCSV, c.Format)
	}
	return nil
}

// loadConfig binds cmd's flags into v, reads the environment and the config file (if
// file != "") and returns the merged config.
func loadConfig(v *viper.Viper, cmd *cobra.Command, file string) (config, error) {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return config{}, err
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	c := config{
		Workers:  v.GetInt("workers"),
		Rounds:   v.GetInt("rounds"),
		Pool:     v.GetString("pool"),
		Format:   v.GetString("format"),
		Distinct: v.GetBool("distinct"),
		Verify:   v.GetBool("verify"),
		Verbose:  v.GetBool("verbose"),
	}
	return c, c.validate()
}
