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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/rotblauer/tcxslim/api"
	"github.com/rotblauer/tcxslim/common"
	"github.com/rotblauer/tcxslim/params"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var optHistorySource string
var optHistoryJSON bool

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List activities recorded in the ledger",
	Long: `History prints every summary in the ledger, or the latest one for
--source. With --json the summaries are printed as JSON lines.

The ledger path is taken from --ledger, falling back to ~/.tcxslim/ledger.db.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		setDefaultSlog(cmd, args)

		path := viper.GetString("ledger")
		if path == "" {
			path = params.DefaultLedgerPath
		}
		led, err := openLedger(path)
		if err != nil {
			return err
		}
		defer led.Close()

		if optHistorySource != "" {
			src, err := expandPath(optHistorySource)
			if err != nil {
				return err
			}
			s, err := led.BySource(src)
			if err != nil {
				return fmt.Errorf("%s: %w", src, err)
			}
			return writeSummary(os.Stdout, s, optHistoryJSON)
		}

		ctx, cancel := common.InterruptContext(context.Background())
		defer cancel()
		summaries, errs := led.Dump(ctx)
		for s := range summaries {
			if err := writeSummary(os.Stdout, s, optHistoryJSON); err != nil {
				return err
			}
		}
		if err := <-errs; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&optHistorySource, "source", "", "Show the latest summary for this source path")
	historyCmd.Flags().BoolVar(&optHistoryJSON, "json", false, "Print JSON lines")
}

func writeSummary(w io.Writer, s api.Summary, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(s)
	}
	ratio := 0.0
	if s.Original > 0 {
		ratio = 100 * float64(s.Retained) / float64(s.Original)
	}
	_, err := fmt.Fprintf(w, "%s  %-5s  %s -> %s (%.1f%%)  p=%.1f  %s  %s  %s\n",
		s.ActivityID.Format("2006-01-02 15:04"),
		s.Sport,
		humanize.Comma(int64(s.Original)),
		humanize.Comma(int64(s.Retained)),
		ratio,
		s.Percentile,
		humanize.Bytes(uint64(s.OutputBytes)),
		s.Source,
		humanize.Time(s.ProcessedAt),
	)
	return err
}
