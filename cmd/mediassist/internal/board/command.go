package board

import (
	"github.com/spf13/cobra"
)

type options struct {
	role     string
	scopeID  string
	livefeed bool
	addr     string
	debug    bool
}

func NewBoardCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:     "board",
		Aliases: []string{"b"},
		Short:   "Open the live staff board for a doctor, lab or pharmacy",
		Args:    cobra.NoArgs,
		Example: `  mediassist board --role doctor --id D-12
  mediassist board --role lab
  mediassist board --role pharmacy --livefeed --addr 127.0.0.1:8765`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return boardCmd(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.role, "role", "r", "", "Board role: doctor, lab or pharmacy")
	cmd.Flags().StringVar(&opts.scopeID, "id", "", "Doctor ID (doctor role only)")
	cmd.Flags().BoolVar(&opts.livefeed, "livefeed", false, "Serve board snapshots over websocket")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Live feed listen address (default from config)")
	cmd.Flags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
