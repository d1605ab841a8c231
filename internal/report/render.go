package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by Write.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// Write renders rep to w in the given format.
func Write(w io.Writer, rep *Report, format string) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(rep)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case OutputTable, "":
		return writeTable(w, rep)
	default:
		return fmt.Errorf("unknown output format %q (want %s, %s or %s)", format, OutputTable, OutputJSON, OutputYAML)
	}
}

func writeTable(w io.Writer, rep *Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Total offers\t%d\n", rep.TotalOffers)
	fmt.Fprintf(tw, "Unique vendors\t%d\n", rep.UniqueVendors)

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "VENDOR\tOFFERS")
	for _, v := range rep.TopVendors {
		fmt.Fprintf(tw, "%s\t%d\n", v.Vendor, v.Count)
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "CATEGORY\tOFFERS\tSHARE")
	for _, c := range rep.Categories {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", c.Category, c.Count, c.Percent)
	}
	return tw.Flush()
}
