package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nmrfid/internal/models"
	"nmrfid/pkg/executor"
	"nmrfid/pkg/phase"
	"nmrfid/pkg/script"
)

type scriptOptions struct {
	layout  layoutFlags
	strict  bool
	dim     string
	batch   bool
	files   []string
	combine bool
	out     string
	emitDir string
	phases  []string
}

func newScriptCmd(a *app) *cobra.Command {
	o := &scriptOptions{}
	cmd := &cobra.Command{
		Use:   "script [operations file]",
		Short: "Generate a processing script from a list of per-dimension operations",
		Long: `Reads DIM(n)/PDIM(n) blocks of operations, for example a previously
generated script, and prints the interactive or batch script for them.
Header operations from the config file are added to the header.`,
		Example: `  nmrfid script ops.txt --sizes 512,128 --acq-order d2,p1
  nmrfid script ops.txt --batch --files exp1/fid,exp2/fid --out datasets
  nmrfid script ops.txt --batch --files exp1/fid,exp2/fid --emit-dir scripts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd, a, o, args[0])
		},
	}
	o.layout.register(cmd, false)
	cmd.Flags().BoolVar(&o.strict, "strict", false, "fail on the first line that cannot be parsed")
	cmd.Flags().StringVar(&o.dim, "dim", "", "only emit this key in the interactive script, e.g. D2")
	cmd.Flags().BoolVar(&o.batch, "batch", false, "generate a batch script")
	cmd.Flags().StringSliceVar(&o.files, "files", nil, "FID files of an arrayed batch run (default script.fidPath)")
	cmd.Flags().BoolVar(&o.combine, "combine", false, "write every file into one dataset (default script.combineFiles)")
	cmd.Flags().StringVar(&o.out, "out", "", "output dataset, or output directory for separate arrayed datasets")
	cmd.Flags().StringVar(&o.emitDir, "emit-dir", "", "run the batch file by file and write each script into this directory")
	cmd.Flags().StringArrayVar(&o.phases, "phase", nil, `add a phase correction "dim:ph0:ph1[:dimag]" on top of the script's PHASE, dim 1-based`)
	return cmd
}

func runScript(cmd *cobra.Command, a *app, o *scriptOptions, path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading operations: %w", err)
	}
	store, dropped, err := script.Parse(string(text), o.strict)
	if err != nil {
		return err
	}
	for _, pe := range dropped {
		a.logger.Warn("dropped script line", zap.String("file", path), zap.Int("line", pe.Line), zap.Error(pe.Err))
	}
	if err := a.cfg.ApplyHeader(store); err != nil {
		return err
	}
	if err := applyPhases(store, o.phases); err != nil {
		return err
	}

	var desc *models.AcquisitionDescriptor
	if len(o.layout.sizes) > 0 {
		if desc, _, err = o.layout.descriptor(a.cfg); err != nil {
			return err
		}
		store.Retain(desc.NDim())
	}

	h := a.cfg.ScriptHeader()
	out := cmd.OutOrStdout()
	if !o.batch {
		h.DatasetPath = ""
		if o.dim != "" {
			if h.Dim, err = script.ParseKey(o.dim); err != nil {
				return err
			}
		}
		_, err := fmt.Fprint(out, script.Interactive(h, desc, store.Snapshot()))
		return err
	}

	arr := &script.Arrayed{
		Files:   o.files,
		Combine: o.combine || a.cfg.Script.CombineFiles,
	}
	target := o.out
	if target == "" {
		target = a.cfg.Script.DatasetPath
		if len(arr.Files) > 0 && !arr.Combine {
			target = a.cfg.Script.OutputDir
		}
	}

	if o.emitDir == "" {
		_, err := fmt.Fprint(out, script.Batch(h, desc, store.Snapshot(), target, arr))
		return err
	}

	if err := os.MkdirAll(o.emitDir, 0755); err != nil {
		return fmt.Errorf("error creating script directory: %w", err)
	}
	runner := executor.NewRunner(newScriptWriter(o.emitDir), store, a.logger)
	res, err := runner.Batch(cmd.Context(), h, desc, target, arr)
	if err != nil {
		return err
	}
	for _, c := range res.Completed {
		fmt.Fprintf(out, "%s\n", c)
	}
	if res.Canceled {
		fmt.Fprintf(out, "run %s canceled after %d of %d files\n", res.RunID, len(res.Completed), max(len(arr.Files), 1))
		return nil
	}
	fmt.Fprintf(out, "run %s finished in %s\n", res.RunID, res.Elapsed)
	return nil
}

// newScriptWriter returns an executor that stores each script it is given
// as a numbered file in dir instead of running it.
func newScriptWriter(dir string) executor.Executor {
	var (
		mu sync.Mutex
		n  int
	)
	return executor.Func(func(ctx context.Context, text string, _ []*models.Vector) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		mu.Lock()
		n++
		name := filepath.Join(dir, fmt.Sprintf("process_%03d.py", n))
		mu.Unlock()
		return os.WriteFile(name, []byte(text), 0644)
	})
}

// applyPhases commits each "dim:ph0:ph1[:dimag]" correction as a delta on
// top of the PHASE operation already in store.
func applyPhases(store *script.Store, specs []string) error {
	if len(specs) == 0 {
		return nil
	}
	committed := phase.NewTracker(store, nil)
	tr := phase.NewTracker(store, phase.AppliedFunc(func(dim int) (float64, float64) {
		v, _, err := committed.ReadCommitted(dim)
		if err != nil {
			return 0, 0
		}
		return v.Ph0, v.Ph1
	}))
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) < 3 || len(parts) > 4 || (len(parts) == 4 && parts[3] != "dimag") {
			return fmt.Errorf("invalid phase %q, want dim:ph0:ph1[:dimag]", spec)
		}
		dim, err := strconv.Atoi(parts[0])
		if err != nil || dim < 1 {
			return fmt.Errorf("invalid phase dimension in %q", spec)
		}
		ph0, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return fmt.Errorf("invalid ph0 in %q: %w", spec, err)
		}
		ph1, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return fmt.Errorf("invalid ph1 in %q: %w", spec, err)
		}
		_, dimag, err := committed.ReadCommitted(dim - 1)
		if err != nil {
			return err
		}

		tr.SetDimension(dim-1, models.Axis{})
		tr.SetDimag(dim-1, dimag || len(parts) == 4)
		tr.SetLiveDelta(ph0, ph1)
		if _, err := tr.Commit(dim - 1); err != nil {
			return err
		}
	}
	return nil
}
