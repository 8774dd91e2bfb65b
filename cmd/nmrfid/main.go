package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nmrfid/internal/models"
	"nmrfid/pkg/combine"
	"nmrfid/pkg/config"
)

// app holds the state shared by every subcommand of one invocation.
type app struct {
	verbose    bool
	configPath string

	logger *zap.Logger
	cfg    *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "nmrfid",
		Short: "Inspect NMR FID layouts and generate processing scripts",
		Long: `nmrfid maps the physical vectors of a multidimensional FID to the
logical samples they form, and turns a per-dimension list of processing
operations into a script for the processing pipeline.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a.cfg, err = config.LoadConfig(a.configPath)
			if err != nil {
				return err
			}

			zc := zap.NewProductionConfig()
			if a.verbose || a.cfg.Output.Verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			a.logger, err = zc.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.configPath, "config", "nmrfid.yaml", "path to the YAML config file")

	root.AddCommand(
		newGroupsCmd(a),
		newLoadCmd(a),
		newScriptCmd(a),
		newConfigCmd(),
	)
	return root
}

// layoutFlags describe an acquisition on the command line. Unset values
// fall back to the config file.
type layoutFlags struct {
	sizes    []int
	complex  []bool
	acqOrder string
	arrays   []int
	modes    []string
}

func (f *layoutFlags) register(cmd *cobra.Command, required bool) {
	cmd.Flags().IntSliceVar(&f.sizes, "sizes", nil, "points per dimension, direct dimension first (complex points for complex dimensions)")
	cmd.Flags().BoolSliceVar(&f.complex, "complex", nil, "complex flag per dimension (default all complex)")
	cmd.Flags().StringVar(&f.acqOrder, "acq-order", "", `acquisition order, e.g. "d2,p1" or "21"`)
	cmd.Flags().IntSliceVar(&f.arrays, "array", nil, "array size per dimension")
	cmd.Flags().StringSliceVar(&f.modes, "modes", nil, "combination mode per indirect dimension")
	if required {
		_ = cmd.MarkFlagRequired("sizes")
	}
}

// descriptor builds the acquisition descriptor and the combination modes.
func (f *layoutFlags) descriptor(cfg *config.Config) (*models.AcquisitionDescriptor, []combine.Mode, error) {
	nDim := len(f.sizes)
	desc := &models.AcquisitionDescriptor{
		Sizes:      f.sizes,
		Complex:    make([]bool, nDim),
		ArraySizes: f.arrays,
	}
	for i := range desc.Complex {
		desc.Complex[i] = true
		if i < len(f.complex) {
			desc.Complex[i] = f.complex[i]
		}
	}
	if len(desc.ArraySizes) == 0 {
		desc.ArraySizes = cfg.Acquisition.ArraySizes
	}

	text := f.acqOrder
	if text == "" {
		text = cfg.Acquisition.AcqOrder
	}
	if text != "" {
		c := *cfg
		c.Acquisition.AcqOrder = text
		order, err := c.Order(nDim)
		if err != nil {
			return nil, nil, err
		}
		desc.AcqOrder = order.Strings()
	}
	if err := desc.Validate(); err != nil {
		return nil, nil, err
	}

	var modes []combine.Mode
	if len(f.modes) > 0 {
		for _, name := range f.modes {
			m, err := combine.ParseMode(name)
			if err != nil {
				return nil, nil, err
			}
			modes = append(modes, m)
		}
	} else {
		var err error
		if modes, err = cfg.Modes(); err != nil {
			return nil, nil, err
		}
	}
	if len(modes) > nDim-1 {
		modes = modes[:max(nDim-1, 0)]
	}
	return desc, modes, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
