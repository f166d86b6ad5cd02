package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/record"
	"github.com/alan-christopher/bb84sim/bb84/security"
)

type runFlags struct {
	bits       int
	eavesdrop  bool
	seed       string
	threshold  float64
	confidence float64
	format     string
	out        string
	compress   bool
	showKeys   bool
}

// runSummary is the report printed for a single run.
type runSummary struct {
	Bits         int      `yaml:"bits"`
	Eavesdropper string   `yaml:"eavesdropper"`
	Seed         *int64   `yaml:"seed"`
	Sifted       int      `yaml:"sifted"`
	Errors       int      `yaml:"errors"`
	QBER         *float64 `yaml:"qber"` // nil when undefined
	IntervalLo   *float64 `yaml:"interval_lo,omitempty"`
	IntervalHi   *float64 `yaml:"interval_hi,omitempty"`
	Confidence   float64  `yaml:"confidence"`
	Threshold    float64  `yaml:"threshold"`
	Verdict      string   `yaml:"verdict"`
	Fingerprint  string   `yaml:"fingerprint"`

	RawKeyAlice    string `yaml:"raw_key_alice,omitempty"`
	RawKeyBob      string `yaml:"raw_key_bob,omitempty"`
	AliceBases     string `yaml:"alice_bases,omitempty"`
	BobBases       string `yaml:"bob_bases,omitempty"`
	EveBases       string `yaml:"eve_bases,omitempty"`
	SiftedKeyAlice string `yaml:"sifted_key_alice,omitempty"`
	SiftedKeyBob   string `yaml:"sifted_key_bob,omitempty"`
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	c := &cobra.Command{
		Use:   "run",
		Short: "Run a single BB84 simulation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.OutOrStdout(), f)
		},
	}
	c.Flags().IntVar(&f.bits, "bits", 1024, "Number of photons Alice sends")
	c.Flags().BoolVar(&f.eavesdrop, "eavesdrop", false, "Put an intercept-resend eavesdropper on the channel")
	c.Flags().StringVar(&f.seed, "seed", "", "Seed for a reproducible run (empty for an unseeded run)")
	c.Flags().Float64Var(&f.threshold, "threshold", security.DefaultThreshold, "QBER above which the run is reported compromised")
	c.Flags().Float64Var(&f.confidence, "confidence", 0.95, "Confidence level of the reported QBER interval")
	c.Flags().StringVar(&f.format, "format", "text", "Output format (text, yaml)")
	c.Flags().StringVar(&f.out, "out", "", "Write the run to this record file")
	c.Flags().BoolVar(&f.compress, "compress", false, "Compress the record file with LZ4")
	c.Flags().BoolVar(&f.showKeys, "show-keys", false, "Include raw and sifted keys in the output")
	return c
}

func runOnce(w io.Writer, f *runFlags) error {
	if f.format != "text" && f.format != "yaml" {
		return fmt.Errorf("unknown format %q", f.format)
	}
	seed, err := bb84.ParseSeed(f.seed)
	if err != nil {
		return err
	}
	logrus.Infof("Starting BB84 run with %d bits, eavesdrop=%v", f.bits, f.eavesdrop)
	res, err := bb84.Simulate(f.bits, f.eavesdrop, seed)
	if err != nil {
		return err
	}
	s, err := summarize(res, f)
	if err != nil {
		return err
	}
	if f.out != "" {
		if err := writeRecords(f.out, f.compress, []record.Record{record.FromResult(res)}); err != nil {
			return err
		}
		logrus.Infof("Wrote run to %s", f.out)
	}
	if f.format == "yaml" {
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(s)
	}
	return printSummary(w, s)
}

func summarize(res bb84.RunResult, f *runFlags) (runSummary, error) {
	q := res.QBER()
	verdict, err := security.Assess(q, f.threshold)
	if err != nil {
		return runSummary{}, err
	}
	fp := record.Fingerprint(res)
	s := runSummary{
		Bits:         res.NumBits(),
		Eavesdropper: res.Strategy(),
		Sifted:       q.Samples(),
		Errors:       q.Errors(),
		Confidence:   f.confidence,
		Threshold:    f.threshold,
		Verdict:      verdict.String(),
		Fingerprint:  hex.EncodeToString(fp[:]),
	}
	if seed, ok := res.Seed(); ok {
		s.Seed = &seed
	}
	if v, ok := q.Value(); ok {
		s.QBER = &v
	}
	b, ok, err := security.Interval(q, f.confidence)
	if err != nil {
		return runSummary{}, err
	}
	if ok {
		s.IntervalLo, s.IntervalHi = &b.Lo, &b.Hi
	}
	if f.showKeys {
		s.RawKeyAlice = res.RawKeyAlice().String()
		s.RawKeyBob = res.RawKeyBob().String()
		s.AliceBases = res.AliceBases().String()
		s.BobBases = res.BobBases().String()
		s.EveBases = res.EveBases().String()
		s.SiftedKeyAlice = res.SiftedKeyAlice().String()
		s.SiftedKeyBob = res.SiftedKeyBob().String()
	}
	return s, nil
}

func printSummary(w io.Writer, s runSummary) error {
	seed := "none"
	if s.Seed != nil {
		seed = fmt.Sprint(*s.Seed)
	}
	qber := "undefined"
	if s.QBER != nil {
		qber = fmt.Sprintf("%.6f", *s.QBER)
	}
	lines := [][2]string{
		{"bits", fmt.Sprint(s.Bits)},
		{"eavesdropper", s.Eavesdropper},
		{"seed", seed},
		{"sifted", fmt.Sprint(s.Sifted)},
		{"errors", fmt.Sprint(s.Errors)},
		{"qber", qber},
	}
	if s.IntervalLo != nil {
		lines = append(lines, [2]string{"interval", fmt.Sprintf("[%.6f, %.6f] at %g", *s.IntervalLo, *s.IntervalHi, s.Confidence)})
	}
	lines = append(lines,
		[2]string{"verdict", fmt.Sprintf("%s (threshold %g)", s.Verdict, s.Threshold)},
		[2]string{"fingerprint", s.Fingerprint},
	)
	for _, kv := range [][2]string{
		{"raw_key_alice", s.RawKeyAlice},
		{"raw_key_bob", s.RawKeyBob},
		{"alice_bases", s.AliceBases},
		{"bob_bases", s.BobBases},
		{"eve_bases", s.EveBases},
		{"sifted_key_alice", s.SiftedKeyAlice},
		{"sifted_key_bob", s.SiftedKeyBob},
	} {
		if kv[1] != "" {
			lines = append(lines, kv)
		}
	}
	for _, kv := range lines {
		if _, err := fmt.Fprintf(w, "%-17s %s\n", kv[0]+":", kv[1]); err != nil {
			return err
		}
	}
	return nil
}

func writeRecords(path string, compress bool, recs []record.Record) (err error) {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fh.Close(); err == nil {
			err = cerr
		}
	}()
	w, err := record.NewWriter(fh, record.WriterOptions{Compress: compress})
	if err != nil {
		return err
	}
	for _, r := range recs {
		if err := w.Write(r); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}
	return w.Close()
}
