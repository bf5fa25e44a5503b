// MediAssist - terminal client for the MediAssist medical assistant
//
// Two surfaces share one binary: a patient-facing chat that drives the
// conversation backend, and a staff board that mirrors doctor, lab and
// pharmacy queues.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/mediassist/cmd/mediassist/internal"
	"github.com/tinyland-inc/mediassist/cmd/mediassist/internal/board"
	"github.com/tinyland-inc/mediassist/cmd/mediassist/internal/chat"
	"github.com/tinyland-inc/mediassist/cmd/mediassist/internal/identity"
	"github.com/tinyland-inc/mediassist/cmd/mediassist/internal/migrate"
	"github.com/tinyland-inc/mediassist/cmd/mediassist/internal/version"
)

func NewMediassistCommand() *cobra.Command {
	short := fmt.Sprintf("%s mediassist - Medical assistant client v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "mediassist",
		Short:   short,
		Example: "mediassist chat",
	}

	cmd.AddCommand(
		chat.NewChatCommand(),
		board.NewBoardCommand(),
		identity.NewIdentityCommand(),
		migrate.NewMigrateCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewMediassistCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
