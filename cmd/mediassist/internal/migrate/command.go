package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/mediassist/pkg/migrate"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate configuration between formats",
		Example: `  mediassist migrate to-yaml
  mediassist migrate to-yaml --dry-run`,
	}

	var opts migrate.ToYAMLOptions

	toYAMLCmd := &cobra.Command{
		Use:   "to-yaml",
		Short: "Convert JSON config to YAML format",
		Args:  cobra.NoArgs,
		Example: `  mediassist migrate to-yaml
  mediassist migrate to-yaml --dry-run
  mediassist migrate to-yaml --config ~/.mediassist/config.json
  mediassist migrate to-yaml --output ~/.mediassist/config.yaml --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Out = cmd.OutOrStdout()
			result, err := migrate.RunToYAML(opts)
			if err != nil {
				return err
			}
			if !opts.DryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "YAML config written to %s\n", result.OutputPath)
			}
			if len(result.Warnings) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nWarnings:")
				for _, w := range result.Warnings {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", w)
				}
			}
			return nil
		},
	}

	toYAMLCmd.Flags().StringVar(&opts.ConfigPath, "config", "",
		"JSON config file path (default: ~/.mediassist/config.json)")
	toYAMLCmd.Flags().StringVar(&opts.OutputPath, "output", "",
		"YAML output file path (default: same dir as input, .yaml extension)")
	toYAMLCmd.Flags().BoolVar(&opts.DryRun, "dry-run", false,
		"Print generated YAML without writing")
	toYAMLCmd.Flags().BoolVar(&opts.Force, "force", false,
		"Overwrite existing output file")

	cmd.AddCommand(toYAMLCmd)

	return cmd
}
