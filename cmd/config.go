package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/security"
)

// sweepGrid describes a sweep. It doubles as the layout of a sweep YAML file:
//
//	bits: [1000, 100000]
//	eavesdrop: [false, true]
//	seeds: [1, 2, 3]
//	trials: 10
//	threshold: 0.11
type sweepGrid struct {
	Bits      []int   `yaml:"bits"`
	Eavesdrop []bool  `yaml:"eavesdrop"`
	Seeds     []int64 `yaml:"seeds"`
	Trials    int     `yaml:"trials"`
	Threshold float64 `yaml:"threshold"`
}

func defaultGrid() sweepGrid {
	return sweepGrid{
		Bits:      []int{1024},
		Eavesdrop: []bool{false, true},
		Seeds:     []int64{42},
		Trials:    1,
		Threshold: security.DefaultThreshold,
	}
}

func (g sweepGrid) validate() error {
	if len(g.Bits) == 0 || len(g.Eavesdrop) == 0 || len(g.Seeds) == 0 {
		return errors.New("sweep needs at least one value for each of bits, eavesdrop and seeds")
	}
	for _, b := range g.Bits {
		if b <= 0 {
			return fmt.Errorf("%w: bits must be positive, got %d", bb84.ErrInvalidParameter, b)
		}
	}
	if g.Trials <= 0 {
		return fmt.Errorf("%w: trials must be positive, got %d", bb84.ErrInvalidParameter, g.Trials)
	}
	for _, s := range g.Seeds {
		if s > math.MaxInt64-int64(g.Trials-1) {
			return fmt.Errorf("%w: seed %d overflows over %d trials", bb84.ErrInvalidParameter, s, g.Trials)
		}
	}
	if !(g.Threshold >= 0 && g.Threshold <= 1) {
		return fmt.Errorf("%w: %v", security.ErrInvalidThreshold, g.Threshold)
	}
	return nil
}

// loadSweepConfig reads a sweep YAML file over base. Fields the file leaves
// out keep their value from base. Unknown fields are an error.
func loadSweepConfig(path string, base sweepGrid) (sweepGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sweepGrid{}, fmt.Errorf("reading sweep config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	grid := base
	if err := decoder.Decode(&grid); err != nil {
		return sweepGrid{}, fmt.Errorf("parsing sweep config %s: %w", path, err)
	}
	return grid, nil
}

// resolveGrid merges defaults, the config file if any, and the flags the user
// set explicitly, in increasing order of precedence.
func resolveGrid(flags *pflag.FlagSet, f *sweepFlags) (sweepGrid, error) {
	grid := defaultGrid()
	if f.config != "" {
		var err error
		if grid, err = loadSweepConfig(f.config, grid); err != nil {
			return sweepGrid{}, err
		}
	}
	if flags.Changed("bits") {
		grid.Bits = f.grid.Bits
	}
	if flags.Changed("eavesdrop") {
		grid.Eavesdrop = f.grid.Eavesdrop
	}
	if flags.Changed("seeds") {
		grid.Seeds = f.grid.Seeds
	}
	if flags.Changed("trials") {
		grid.Trials = f.grid.Trials
	}
	if flags.Changed("threshold") {
		grid.Threshold = f.grid.Threshold
	}
	return grid, nil
}
