package gesture

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteTable prints s as one row per sample with a column per axis.
func WriteTable(w io.Writer, s Series) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)

	header := []string{"Sample"}
	for a := range s {
		header = append(header, "Axis "+Axis(a).String())
	}
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")+"\t"); err != nil {
		return err
	}

	samples := 0
	if len(s) > 0 {
		samples = len(s[0])
	}
	for i := 0; i < samples; i++ {
		row := fmt.Sprintf("%d", i)
		for a := range s {
			row += fmt.Sprintf("\t%.2f", s[a][i])
		}
		if _, err := fmt.Fprintln(tw, row+"\t"); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// FormatCorrelations renders a vector as "X=0.98 Y=0.95 Z=n/a".
func FormatCorrelations(c CorrelationVector) string {
	parts := make([]string, len(c))
	for a, ac := range c {
		if ac.Defined {
			parts[a] = fmt.Sprintf("%s=%.3f", Axis(a), ac.R)
		} else {
			parts[a] = fmt.Sprintf("%s=n/a", Axis(a))
		}
	}
	return strings.Join(parts, " ")
}
