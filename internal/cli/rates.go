package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/customs-duty-engine/internal/adapters/dto"
	"github.com/kirillkom/customs-duty-engine/internal/infrastructure/repository/ratefile"
)

func newSchemaCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the rate tables in postgres if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, closeFn, err := rt.OpenImporter(cmd.Context(), rt.Config)
			if err != nil {
				return err
			}
			closeFn()
			fmt.Fprintln(cmd.OutOrStdout(), "rate schema is ready")
			return nil
		},
	}
}

func newSeedCommand(rt *Runtime) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:     "seed",
		Short:   "Import a YAML rate file into postgres",
		Example: "  dutyctl seed --file configs/rates.example.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := ratefile.LoadFile(file)
			if err != nil {
				return err
			}
			importer, closeFn, err := rt.OpenImporter(cmd.Context(), rt.Config)
			if err != nil {
				return err
			}
			defer closeFn()
			if err := importer.ImportRates(cmd.Context(), set); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d general, %d FTA, %d anti-dumping, %d concession records\n",
				len(set.GeneralRates), len(set.FTARates), len(set.AntiDumping), len(set.Concessions))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML rate file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// describe flattens field errors so the terminal shows which input was wrong.
func describe(err error) error {
	body := dto.ErrorFromError(err)
	if len(body.Fields) == 0 {
		return err
	}
	msg := body.Message
	for _, f := range body.Fields {
		msg += fmt.Sprintf("\n  %s: %s", f.Field, f.Message)
	}
	return errors.New(msg)
}
