package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/navikt/avtalt/internal/config"
	"github.com/navikt/avtalt/internal/models"
	"github.com/navikt/avtalt/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDependencies() (*Dependencies, *bytes.Buffer) {
	out := &bytes.Buffer{}
	deps := &Dependencies{
		ServerConfig:      config.ServerConfig{Port: "8080"},
		NegotiationConfig: config.NegotiationConfig{Horizon: 24, BusQueueSize: 1024},
		Out:               out,
	}
	return deps, out
}

func writeRosterFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "roster.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSimulateRunsRosterToCompletion(t *testing.T) {
	deps, out := testDependencies()
	path := writeRosterFile(t, `
[meeting]
name = "Team Sync"
date = "2024-07-20"
duration = 2
minimum_participants = 3

[[participants]]
name = "alice"
available = [{ date = "2024-07-20", start = 9, end = 17 }]

[[participants]]
name = "bob"
available = [{ date = "2024-07-20", start = 9, end = 12 }]

[[participants]]
name = "carol"
available = [{ date = "2024-07-20", start = 8, end = 11 }]
`)

	cmd := NewSimulateCmd(deps)
	cmd.SetArgs([]string{"--file", path})
	require.NoError(t, cmd.Execute())

	output := out.String()
	assert.Contains(t, output, "Meeting schedule request: Team Sync 2024-07-20 2 3")
	assert.Contains(t, output, "agreed on 2024-07-20 9-11")

	// The summary table carries the slot and the sorted voters
	assert.Contains(t, output, "2024-07-20 9-11")
	assert.Contains(t, output, "alice, bob, carol")
}

func TestSimulatePrintsAbandonedOutcome(t *testing.T) {
	deps, out := testDependencies()
	path := writeRosterFile(t, `
[meeting]
name = "Team Sync"
date = "2024-07-20"
duration = 4
minimum_participants = 2

[[participants]]
name = "alice"
available = [{ date = "2024-07-20", start = 0, end = 4 }]

[[participants]]
name = "bob"
available = [{ date = "2024-07-20", start = 12, end = 16 }]
`)

	cmd := NewSimulateCmd(deps)
	cmd.SetArgs([]string{"-f", path})
	require.NoError(t, cmd.Execute())

	output := out.String()
	assert.Contains(t, output, "Meeting abandoned: no suitable slot found")
	assert.Contains(t, output, "abandoned")
}

func TestSimulateRejectsRosterWithoutWindows(t *testing.T) {
	deps, _ := testDependencies()
	path := writeRosterFile(t, `
[meeting]
name = "Team Sync"
date = "2024-07-20"
duration = 2
minimum_participants = 2

[[participants]]
name = "alice"
available = [{ date = "2024-07-20", start = 9, end = 17 }]

[[participants]]
name = "carol"
`)

	cmd := NewSimulateCmd(deps)
	cmd.SetArgs([]string{"-f", path})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carol has no availability windows")
}

func TestSimulateMissingRosterFile(t *testing.T) {
	deps, _ := testDependencies()

	cmd := NewSimulateCmd(deps)
	cmd.SetArgs([]string{"-f", filepath.Join(t.TempDir(), "nope.toml")})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	assert.Error(t, cmd.Execute())
}

func TestJoinRequiresRedis(t *testing.T) {
	deps, _ := testDependencies()

	cmd := NewJoinCmd(deps)
	cmd.SetArgs([]string{"--negotiation", "negotiation-1", "--name", "alice", "--window", "9-17"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_ENABLED")
}

func TestWindowFlag(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		want    []models.TimeSlot
		wantErr bool
	}{
		{
			name:   "SingleWindow",
			values: []string{"9-17"},
			want:   []models.TimeSlot{{StartTime: 9, EndTime: 17}},
		},
		{
			name:   "MultipleWindowsWithSpaces",
			values: []string{"9 - 12", "14-17"},
			want:   []models.TimeSlot{{StartTime: 9, EndTime: 12}, {StartTime: 14, EndTime: 17}},
		},
		{
			name:    "MissingSeparator",
			values:  []string{"917"},
			wantErr: true,
		},
		{
			name:    "NonNumeric",
			values:  []string{"nine-17"},
			wantErr: true,
		},
		{
			name:    "EndBeforeStart",
			values:  []string{"17-9"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var flag windowListFlag
			var err error
			for _, value := range tt.values {
				if err = flag.Set(value); err != nil {
					break
				}
			}
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, flag.slots)
		})
	}
}

func TestWindowFlagString(t *testing.T) {
	var flag windowListFlag
	require.NoError(t, flag.Set("9-12"))
	require.NoError(t, flag.Set("14-17"))
	assert.Equal(t, "9-12,14-17", flag.String())
}

func TestRootCommandWiresSubcommands(t *testing.T) {
	deps, _ := testDependencies()
	root := NewRootCmd(deps)

	names := make([]string, 0)
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "simulate")
	assert.Contains(t, names, "join")
	assert.Contains(t, names, "version")
	assert.Equal(t, version.Version, root.Version)
}

func TestVersionCommand(t *testing.T) {
	deps, out := testDependencies()

	cmd := NewVersionCmd(deps)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), version.Full())
}
