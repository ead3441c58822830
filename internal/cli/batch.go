package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/customs-duty-engine/internal/adapters/dto"
	"github.com/kirillkom/customs-duty-engine/internal/adapters/workbook"
)

func newBatchCommand(rt *Runtime) *cobra.Command {
	var (
		in     string
		out    string
		remote bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Calculate every line of an xlsx workbook",
		Long: `Reads import lines from the first sheet of an xlsx workbook and writes a results workbook.
With --remote the batch is sent to a worker over NATS instead of being calculated locally.`,
		Example: `  dutyctl batch --in lines.xlsx --out results.xlsx
  dutyctl batch --in lines.xlsx --out results.xlsx --remote`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(in)
			if err != nil {
				return fmt.Errorf("open input workbook: %w", err)
			}
			items, err := workbook.ReadRequests(f)
			_ = f.Close()
			if err != nil {
				return err
			}
			if err := dto.CheckBatchSize(len(items), rt.Config.BatchMaxItems); err != nil {
				return err
			}

			var resp dto.BatchResponse
			if remote {
				transport, closeFn, err := rt.DialTransport(rt.Config)
				if err != nil {
					return err
				}
				defer closeFn()
				if resp, err = dto.RequestRemoteBatch(cmd.Context(), transport, items); err != nil {
					return err
				}
			} else {
				app, err := rt.OpenApp(cmd.Context(), rt.Config)
				if err != nil {
					return err
				}
				defer app.Close()
				resp = dto.ProcessBatch(cmd.Context(), app.Calculator, items, rt.minorUnits())
			}

			if err := writeWorkbookFile(out, resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d lines: %d succeeded, %d failed; results written to %s\n",
				len(resp.Items), resp.Succeeded, resp.Failed, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Input workbook (.xlsx)")
	cmd.Flags().StringVar(&out, "out", "duty-results.xlsx", "Output workbook (.xlsx)")
	cmd.Flags().BoolVar(&remote, "remote", false, "Send the batch to a worker over NATS")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func newTemplateCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write an empty input workbook with the expected columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := workbook.Template(f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "template written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "duty-batch-template.xlsx", "Output workbook (.xlsx)")
	return cmd
}

func writeWorkbookFile(path string, resp dto.BatchResponse) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := workbook.WriteResults(f, resp); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
