package identity

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/mediassist/cmd/mediassist/internal"
	"github.com/tinyland-inc/mediassist/pkg/identity"
)

func NewIdentityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Inspect or clear the stored session identity",
		Example: `  mediassist identity show
  mediassist identity clear`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the session identity and active patient id",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withProvider(func(p *identity.Provider) error {
					return show(cmd, p)
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget the session identity and patient id",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withProvider(func(p *identity.Provider) error {
					if err := p.Clear(); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Session identity cleared.")
					return nil
				})
			},
		},
	)

	return cmd
}

func withProvider(fn func(*identity.Provider) error) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	store, closeStore, err := internal.OpenStore(cfg, false)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(identity.NewProvider(store))
}

func show(cmd *cobra.Command, p *identity.Provider) error {
	sender, ok, err := p.Current()
	if err != nil {
		return err
	}
	if !ok {
		sender = "(none)"
	}
	patient, ok, err := p.PatientID()
	if err != nil {
		return err
	}
	if !ok {
		patient = "(none)"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sender:     %s\n", sender)
	fmt.Fprintf(out, "Patient ID: %s\n", patient)
	return nil
}
