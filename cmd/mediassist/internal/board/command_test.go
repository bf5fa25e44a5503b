package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBoardCommand(t *testing.T) {
	cmd := NewBoardCommand()

	require.NotNil(t, cmd)

	assert.Equal(t, "board", cmd.Use)
	assert.Equal(t, []string{"b"}, cmd.Aliases)
	assert.True(t, cmd.HasExample())
	assert.False(t, cmd.HasSubCommands())

	assert.Nil(t, cmd.Run)
	assert.NotNil(t, cmd.RunE)

	for _, name := range []string{"role", "id", "livefeed", "addr", "debug"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
}
