/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rotblauer/tcxslim/api"
	"github.com/rotblauer/tcxslim/catz"
	"github.com/rotblauer/tcxslim/types/sport"
	"github.com/spf13/cobra"
)

var optInspectSport = sport.Unknown
var optInspectJSON bool

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] <file.tcx|file.tcx.gz|->",
	Short: "Describe a TCX document without reducing it",
	Long: `Inspect parses and validates a document and prints its laps, the
sensor columns it carries, and summary statistics for each column.
Nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setDefaultSlog(cmd, args)

		src, err := expandPath(args[0])
		if err != nil {
			return err
		}
		data, err := catz.ReadFile(src)
		if err != nil {
			return err
		}
		in, err := api.Inspect(data, optInspectSport)
		if err != nil {
			logFailure(src, err)
			return err
		}
		return writeInspection(os.Stdout, in, optInspectJSON)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().Var(&optInspectSport, "sport", "Declared activity type: Bike, Run, Swim, Other, or auto to use the document's own Sport")
	inspectCmd.Flags().BoolVar(&optInspectJSON, "json", false, "Print JSON")
}

func writeInspection(w io.Writer, in *api.Inspection, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(in)
	}
	laps := make([]string, len(in.Laps))
	for i, n := range in.Laps {
		laps[i] = humanize.Comma(int64(n))
	}
	fmt.Fprintf(w, "activity   %s\n", in.ActivityID.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "sport      %s (document: %s)\n", in.Sport, in.SourceSport)
	fmt.Fprintf(w, "laps       %d [%s]\n", len(in.Laps), strings.Join(laps, " "))
	fmt.Fprintf(w, "points     %s\n", humanize.Comma(int64(in.Trackpoints)))
	fmt.Fprintf(w, "duration   %s\n", in.Duration)
	fmt.Fprintf(w, "distance   %s\n", humanize.SIWithDigits(in.Distance, 2, "m"))
	fmt.Fprintf(w, "columns    %s\n", strings.Join(in.Columns, " "))
	if len(in.Dropped) > 0 {
		fmt.Fprintf(w, "absent     %s\n", strings.Join(in.Dropped, " "))
	}
	for _, s := range in.Stats {
		_, err := fmt.Fprintf(w, "  %-12s n=%-6d mean=%-12v median=%-12v min=%-12v max=%v\n",
			s.Column, s.Count, s.Mean, s.Median, s.Min, s.Max)
		if err != nil {
			return err
		}
	}
	return nil
}
