package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"nmrfid/internal/models"
	"nmrfid/pkg/fid"
	"nmrfid/pkg/vecgroup"
)

type groupsOptions struct {
	layout layoutFlags
	index  []int
	limit  int
}

func newGroupsCmd(a *app) *cobra.Command {
	o := &groupsOptions{}
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Print how physical vectors form hypercomplex groups",
		Example: `  nmrfid groups --sizes 512,128 --acq-order d2,p1
  nmrfid groups --sizes 512,64,32 --acq-order 321 --index 0,1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroups(cmd, a, o)
		},
	}
	o.layout.register(cmd, true)
	cmd.Flags().IntSliceVar(&o.index, "index", nil, "groups to print (default the first --limit)")
	cmd.Flags().IntVar(&o.limit, "limit", 8, "number of groups to print when --index is unset")
	return cmd
}

type loadOptions struct {
	layout    layoutFlags
	format    string
	bigEndian bool
	header    int64
	index     []int
	workers   int
}

func newLoadCmd(a *app) *cobra.Command {
	o := &loadOptions{}
	cmd := &cobra.Command{
		Use:   "load [fid]",
		Short: "Read and combine vector groups from a raw FID file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, a, o, args[0])
		},
	}
	o.layout.register(cmd, true)
	cmd.Flags().StringVar(&o.format, "format", "float64", "sample format: float64 or float32")
	cmd.Flags().BoolVar(&o.bigEndian, "big-endian", false, "samples are big-endian")
	cmd.Flags().Int64Var(&o.header, "header-bytes", 0, "bytes to skip at the start of the file")
	cmd.Flags().IntSliceVar(&o.index, "index", nil, "groups to load (default all)")
	cmd.Flags().IntVar(&o.workers, "workers", 0, "parallel group decoders (default processing.numCores)")
	return cmd
}

func runGroups(cmd *cobra.Command, a *app, o *groupsOptions) error {
	desc, modes, err := o.layout.descriptor(a.cfg)
	if err != nil {
		return err
	}
	counter, err := vecgroup.New(desc, modes)
	if err != nil {
		return err
	}
	a.logger.Debug("vector group map",
		zap.Ints("sizes", desc.Sizes),
		zap.String("acqOrder", counter.Order().String()),
		zap.Int("groupSize", counter.GroupSize()))

	out := cmd.OutOrStdout()
	printCounter(out, counter)

	indices := o.index
	if len(indices) == 0 {
		for i := 0; i < min(o.limit, counter.TotalGroups()); i++ {
			indices = append(indices, i)
		}
	}
	for _, i := range indices {
		g, err := counter.Group(i)
		if err != nil {
			return err
		}
		coords, err := counter.Coordinates(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "group %d: offsets %v %s\n", g.Index, g.Offsets, formatCoordinates(coords))
	}
	return nil
}

func printCounter(out io.Writer, c *vecgroup.Counter) {
	desc := c.Descriptor()
	fmt.Fprintf(out, "acquisition order: %s\n", c.Order())
	fmt.Fprintf(out, "group size:        %d\n", c.GroupSize())
	fmt.Fprintf(out, "total groups:      %d\n", c.TotalGroups())
	fmt.Fprintf(out, "total vectors:     %d\n", c.TotalVectors())
	for dim := 1; dim < desc.NDim(); dim++ {
		fmt.Fprintf(out, "dimension %d:       %d increments, mode %s, array %d\n",
			dim+1, c.Increments(dim), c.Mode(dim), desc.ArraySize(dim))
	}
}

func formatCoordinates(c vecgroup.Coordinates) string {
	var parts []string
	for _, dim := range sortedKeys(c.Increment) {
		parts = append(parts, fmt.Sprintf("d%d=%d", dim+1, c.Increment[dim]))
	}
	for _, dim := range sortedKeys(c.Array) {
		parts = append(parts, fmt.Sprintf("a%d=%d", dim+1, c.Array[dim]))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func runLoad(cmd *cobra.Command, a *app, o *loadOptions, path string) error {
	desc, modes, err := o.layout.descriptor(a.cfg)
	if err != nil {
		return err
	}
	opts := fid.RawOptions{HeaderBytes: o.header}
	switch o.format {
	case "float64":
		opts.Format = fid.Float64
	case "float32":
		opts.Format = fid.Float32
	default:
		return fmt.Errorf("unknown sample format %q", o.format)
	}
	if o.bigEndian {
		opts.ByteOrder = binary.BigEndian
	}

	r, err := fid.OpenRaw(path, desc, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	workers := o.workers
	if workers == 0 {
		workers = a.cfg.Processing.NumCores
	}
	l, err := fid.NewLoader(r, modes, workers, a.logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printCounter(out, l.Counter())

	ctx := cmd.Context()
	if len(o.index) == 0 {
		all, err := l.LoadAll(ctx)
		if err != nil {
			return err
		}
		for i, vecs := range all {
			printVectors(out, i, vecs)
		}
		return nil
	}
	for _, i := range o.index {
		vecs, err := l.Load(ctx, i)
		if err != nil {
			return err
		}
		printVectors(out, i, vecs)
	}
	return nil
}

func printVectors(out io.Writer, group int, vecs []*models.Vector) {
	for m, v := range vecs {
		kind := "real"
		if v.Complex {
			kind = "complex"
		}
		first := "-"
		if len(v.Data) > 0 {
			first = fmt.Sprintf("%g", v.Data[0])
			if v.Complex && len(v.Data) > 1 {
				first = fmt.Sprintf("%g%+gi", v.Data[0], v.Data[1])
			}
		}
		fmt.Fprintf(out, "group %d.%d: %d %s points, first %s, norm %.6g\n",
			group, m, v.Len(), kind, first, floats.Norm(v.Data, 2))
	}
}
