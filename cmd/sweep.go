package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/stat"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/photon"
	"github.com/alan-christopher/bb84sim/bb84/record"
	"github.com/alan-christopher/bb84sim/bb84/security"
)

const tracerName = "github.com/alan-christopher/bb84sim/cmd"

var (
	inputs = []string{"bits", "eavesdrop", "seeds"}
	// TODO: consider using reflection to pull this out of the Experiment data
	//   type.
	columns = []string{"Bits", "Eavesdrop", "Seed", "Trials", "MeanSifted",
		"MeanQBER", "StdQBER", "Undefined", "Expected", "Detected"}
)

// An Experiment packages together the result of sweeping a single
// parameterization for easy formatting.
type Experiment struct {
	// Fields corresponding to experiment parameters
	Bits      int
	Eavesdrop bool
	Seed      int64
	Trials    int

	// Fields corresponding to experiment results
	MeanSifted float64
	MeanQBER   string
	StdQBER    string
	Undefined  int
	Expected   float64
	Detected   int
}

type sweepFlags struct {
	config   string
	out      string
	compress bool
	grid     sweepGrid
}

func newSweepCmd() *cobra.Command {
	f := &sweepFlags{}
	c := &cobra.Command{
		Use:   "sweep",
		Short: "Run BB84 over the cartesian product of several parameters and print a CSV",
		Long: `Runs BB84 for each combination of --bits, --eavesdrop and --seeds. Each
combination is repeated --trials times, trial t using seed+t, and its QBER
statistics are printed as one CSV line. Every seed+trials-1 must fit in an
int64.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			grid, err := resolveGrid(cmd.Flags(), f)
			if err != nil {
				return err
			}
			var recs []record.Record
			var keep func(bb84.RunResult)
			if f.out != "" {
				keep = func(r bb84.RunResult) { recs = append(recs, record.FromResult(r)) }
			}
			if err := sweep(cmd.Context(), cmd.OutOrStdout(), grid, keep); err != nil {
				return err
			}
			if f.out != "" {
				if err := writeRecords(f.out, f.compress, recs); err != nil {
					return err
				}
				logrus.Infof("Wrote %d runs to %s", len(recs), f.out)
			}
			return nil
		},
	}
	def := defaultGrid()
	c.Flags().StringVar(&f.config, "config", "", "YAML file describing the sweep; flags given explicitly take precedence")
	c.Flags().IntSliceVar(&f.grid.Bits, "bits", def.Bits, "Numbers of photons to send")
	c.Flags().BoolSliceVar(&f.grid.Eavesdrop, "eavesdrop", def.Eavesdrop, "Whether an intercept-resend eavesdropper is present")
	c.Flags().Int64SliceVar(&f.grid.Seeds, "seeds", def.Seeds, "Base seeds")
	c.Flags().IntVar(&f.grid.Trials, "trials", def.Trials, "Trials per combination")
	c.Flags().Float64Var(&f.grid.Threshold, "threshold", def.Threshold, "QBER above which a trial counts as detected")
	c.Flags().StringVar(&f.out, "out", "", "Write every trial to this record file")
	c.Flags().BoolVar(&f.compress, "compress", false, "Compress the record file with LZ4")
	return c
}

// sweep runs every experiment in grid, writing a CSV to w. keep, if non-nil,
// is handed every run.
func sweep(ctx context.Context, w io.Writer, grid sweepGrid, keep func(bb84.RunResult)) error {
	if err := grid.validate(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "sweep")
	defer span.End()

	if _, err := fmt.Fprintln(w, header()); err != nil {
		return err
	}
	tmpl := template.Must(template.New("line").Parse(lineTmpl()))
	args := [][]interface{}{
		toInterfaces(grid.Bits),
		toInterfaces(grid.Eavesdrop),
		toInterfaces(grid.Seeds),
	}
	logrus.Infof("Starting sweep of %d experiments with %d trials each",
		len(grid.Bits)*len(grid.Eavesdrop)*len(grid.Seeds), grid.Trials)

	var firstErr error
	applyCartesian(func(args []interface{}) {
		if firstErr != nil {
			return
		}
		exp := &Experiment{
			Bits:      args[inpIndex("bits")].(int),
			Eavesdrop: args[inpIndex("eavesdrop")].(bool),
			Seed:      args[inpIndex("seeds")].(int64),
			Trials:    grid.Trials,
		}
		if err := runExperiment(ctx, tracer, exp, grid.Threshold, keep); err != nil {
			firstErr = fmt.Errorf("running %+v: %w", *exp, err)
			return
		}
		if err := tmpl.Execute(w, exp); err != nil {
			firstErr = fmt.Errorf("filling in line template: %w", err)
		}
	}, args)
	if firstErr != nil {
		span.RecordError(firstErr)
		span.SetStatus(codes.Error, firstErr.Error())
	}
	return firstErr
}

func runExperiment(ctx context.Context, tracer trace.Tracer, exp *Experiment, threshold float64, keep func(bb84.RunResult)) (err error) {
	_, span := tracer.Start(ctx, "sweep.experiment", trace.WithAttributes(
		attribute.Int("bb84.bits", exp.Bits),
		attribute.Bool("bb84.eavesdrop", exp.Eavesdrop),
		attribute.Int64("bb84.seed", exp.Seed),
		attribute.Int("bb84.trials", exp.Trials),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	exp.Expected = photon.ForFlag(exp.Eavesdrop).ExpectedQBER()
	var qbers, sifted []float64
	for t := 0; t < exp.Trials; t++ {
		seed := exp.Seed + int64(t)
		res, err := bb84.Simulate(exp.Bits, exp.Eavesdrop, &seed)
		if err != nil {
			return err
		}
		if keep != nil {
			keep(res)
		}
		q := res.QBER()
		sifted = append(sifted, float64(q.Samples()))
		v, ok := q.Value()
		if !ok {
			exp.Undefined++
			continue
		}
		qbers = append(qbers, v)
		verdict, err := security.Assess(q, threshold)
		if err != nil {
			return err
		}
		if verdict == security.Compromised {
			exp.Detected++
		}
	}
	exp.MeanSifted = stat.Mean(sifted, nil)
	exp.MeanQBER, exp.StdQBER = "undefined", "undefined"
	switch len(qbers) {
	case 0:
	case 1:
		exp.MeanQBER, exp.StdQBER = formatRate(qbers[0]), formatRate(0)
	default:
		mean, std := stat.MeanStdDev(qbers, nil)
		exp.MeanQBER, exp.StdQBER = formatRate(mean), formatRate(std)
	}
	span.SetAttributes(attribute.Int("bb84.detected", exp.Detected))
	logrus.Debugf("Experiment %+v done", *exp)
	return nil
}

func formatRate(v float64) string {
	return fmt.Sprintf("%.6f", v)
}

func inpIndex(v string) int {
	for i, inp := range inputs {
		if inp == v {
			return i
		}
	}
	return -1
}

func header() string {
	return strings.Join(columns, ", ")
}

func lineTmpl() string {
	var els []string
	for _, c := range columns {
		els = append(els, "{{."+c+"}}")
	}
	return strings.Join(els, ", ") + "\n"
}

func toInterfaces[T any](vs []T) []interface{} {
	r := make([]interface{}, 0, len(vs))
	for _, v := range vs {
		r = append(r, v)
	}
	return r
}

// applyCartesian calls f once for each element of the cartesian product of
// args, varying the last argument fastest.
func applyCartesian(f func([]interface{}), args [][]interface{}) {
	for i := range args {
		if len(args[i]) == 0 {
			return
		}
	}
	for i := range args {
		if len(args[i]) == 1 {
			continue
		}
		l := make([][]interface{}, len(args))
		r := make([][]interface{}, len(args))
		copy(l, args)
		copy(r, args)
		l[i] = args[i][:1]
		r[i] = args[i][1:]
		applyCartesian(f, l)
		applyCartesian(f, r)
		return
	}
	x := make([]interface{}, 0, len(args))
	for _, a := range args {
		x = append(x, a[0])
	}
	f(x)
}
