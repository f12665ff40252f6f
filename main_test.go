package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "migrate", "seed"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
		assert.NotNil(t, cmd.RunE, name)
	}
}

func TestMigrateStepsFlag(t *testing.T) {
	flag := migrateCmd.Flags().Lookup("steps")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}
