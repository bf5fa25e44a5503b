package chat

import (
	"github.com/spf13/cobra"
)

func NewChatCommand() *cobra.Command {
	var (
		message   string
		debug     bool
		ephemeral bool
	)

	cmd := &cobra.Command{
		Use:     "chat",
		Aliases: []string{"c"},
		Short:   "Talk to the MediAssist conversation backend",
		Args:    cobra.NoArgs,
		Example: `  mediassist chat
  mediassist chat -m "book an appointment"
  mediassist chat --ephemeral --debug`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return chatCmd(message, debug, ephemeral)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Send a single message and exit")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "Keep the session identity in memory only")

	return cmd
}
