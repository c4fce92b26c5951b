package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/sheets"
	"github.com/sells-group/leadflow/internal/workspace"
)

var (
	processUser             string
	processStartRow         int
	processEndRow           int
	processDelayMs          int
	processTestMode         bool
	processUpdateScheduling bool
	processWorkbook         string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the pipeline once for a user and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts := processOptions(cmd)
		if opts.StartRow != nil && opts.EndRow != nil && *opts.StartRow > *opts.EndRow {
			return eris.New("--start-row must not be greater than --end-row")
		}

		var extra []workspace.Option
		if processWorkbook != "" {
			wb, err := sheets.OpenWorkbook(processWorkbook)
			if err != nil {
				return err
			}
			extra = append(extra, workspace.WithValues(wb))
		}

		env, err := initPipeline(ctx, "process", extra...)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Runner.Run(ctx, processUser, opts)
		if err != nil {
			return eris.Wrap(err, "process")
		}

		zap.L().Info("process complete",
			zap.String("user_id", processUser),
			zap.Int("total", res.Stats.Total),
			zap.Int("success", res.Stats.Success),
			zap.Int("failure", res.Stats.Failure),
		)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(processResponse(res))
	},
}

// processOptions maps the flags that were explicitly set onto RunOptions.
func processOptions(cmd *cobra.Command) model.RunOptions {
	opts := model.RunOptions{
		TestMode:         processTestMode,
		UpdateScheduling: processUpdateScheduling,
	}
	flags := cmd.Flags()
	if flags.Changed("start-row") {
		v := processStartRow
		opts.StartRow = &v
	}
	if flags.Changed("end-row") {
		v := processEndRow
		opts.EndRow = &v
	}
	if flags.Changed("delay") {
		v := processDelayMs
		opts.DelayBetweenEmails = &v
	}
	return opts
}

type processOutput struct {
	Success  bool            `json:"success"`
	Stats    model.RunStats  `json:"stats"`
	Previews []model.Preview `json:"previews,omitempty"`
}

func processResponse(res *model.RunResult) processOutput {
	return processOutput{Success: true, Stats: res.Stats, Previews: res.Previews}
}

func init() {
	f := processCmd.Flags()
	f.StringVar(&processUser, "user", "", "user id whose settings drive the run (required)")
	f.IntVar(&processStartRow, "start-row", 0, "first sheet row to process (header is row 1)")
	f.IntVar(&processEndRow, "end-row", 0, "last sheet row to process, inclusive")
	f.IntVar(&processDelayMs, "delay", 0, "milliseconds to wait between sends")
	f.BoolVar(&processTestMode, "test", false, "draft emails without sending them")
	f.BoolVar(&processUpdateScheduling, "update-scheduling", false, "write send status back to the contacts sheet")
	f.StringVar(&processWorkbook, "workbook", "", "read both sheets from a local .xlsx file instead of Google Sheets")
	_ = processCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(processCmd)
}
