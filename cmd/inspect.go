package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alan-christopher/bb84sim/bb84/record"
	"github.com/alan-christopher/bb84sim/bb84/security"
)

func newInspectCmd() *cobra.Command {
	threshold := security.DefaultThreshold
	c := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Summarize the runs stored in a record file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fh, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer fh.Close()
			return inspect(cmd.OutOrStdout(), fh, threshold)
		},
	}
	c.Flags().Float64Var(&threshold, "threshold", threshold, "QBER above which a run is reported compromised")
	return c
}

func inspect(w io.Writer, r io.Reader, threshold float64) error {
	rr, err := record.NewReader(r)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "Index, Bits, Strategy, Seed, Sifted, QBER, Verdict"); err != nil {
		return err
	}
	for i := 0; ; i++ {
		rec, err := rr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		verdict, err := security.Assess(rec.QBER, threshold)
		if err != nil {
			return err
		}
		seed := "none"
		if rec.Seeded {
			seed = fmt.Sprint(rec.Seed)
		}
		if _, err := fmt.Fprintf(w, "%d, %d, %s, %s, %d, %s, %s\n",
			i, rec.NumBits, rec.Strategy, seed, rec.QBER.Samples(), rec.QBER, verdict); err != nil {
			return err
		}
	}
}
