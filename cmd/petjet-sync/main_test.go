package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

func TestParseSyncType(t *testing.T) {
	tests := []struct {
		in   string
		want domain.SyncType
	}{
		{"airlines", domain.SyncTypeAirlines},
		{"countryPolicies", domain.SyncTypeCountryPolicies},
		{"sync-airports", domain.SyncTypeAirports},
		{"analyze-pet-policies", domain.SyncTypePetPolicies},
	}
	for _, tt := range tests {
		got, err := parseSyncType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := parseSyncType("hotels")
	assert.ErrorIs(t, err, domain.ErrUnknownSyncType)
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"serve", "worker", "all", "drive", "reset", "status"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestRootCommand_FlagKeysExist(t *testing.T) {
	root := newRootCommand()
	for flag := range commandFlagKeys {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Flags().Lookup(flag) != nil {
				found = true
			}
		}
		assert.True(t, found, "no subcommand defines --%s", flag)
	}
}

func TestDriveCommand_RejectsUnknownType(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"drive", "hotels", "--remote"})

	err := root.Execute()
	assert.ErrorIs(t, err, domain.ErrUnknownSyncType)
	assert.Empty(t, out.String())
}

func TestDriveCommand_RemoteRequiresURL(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("FUNCTIONS_URL", "")
	root := newRootCommand()
	root.SetArgs([]string{"drive", "airlines", "--remote"})

	err := root.Execute()
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
