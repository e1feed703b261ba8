package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/navikt/avtalt/internal/bus"
	membus "github.com/navikt/avtalt/internal/bus/memory"
	"github.com/navikt/avtalt/internal/config"
	"github.com/navikt/avtalt/internal/models"
	"github.com/navikt/avtalt/internal/repository/memory"
	"github.com/navikt/avtalt/internal/service"
)

func NewSimulateCmd(deps *Dependencies) *cobra.Command {
	var rosterPath string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one negotiation fully in-process",
		Long:  "Load a roster file and negotiate on the in-memory bus, printing the transcript as it happens. Every participant's availability must be in the roster.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(deps, rosterPath)
		},
	}

	cmd.Flags().StringVarP(&rosterPath, "file", "f", "", "Path to the roster TOML file")
	cmd.MarkFlagRequired("file")

	return cmd
}

func runSimulate(deps *Dependencies, rosterPath string) error {
	roster, err := config.LoadRoster(rosterPath)
	if err != nil {
		return err
	}

	// Simulation runs every agent in this process, so the file must carry
	// availability for everyone
	for _, entry := range roster.Participants {
		if len(entry.Available) == 0 {
			return fmt.Errorf("roster participant %s has no availability windows", entry.Name)
		}
	}

	repo := memory.NewRepository()
	busFactory := func(string) (bus.Bus, error) {
		return membus.NewBus(deps.NegotiationConfig.BusQueueSize), nil
	}
	negotiationService := service.NewNegotiationService(repo, busFactory, deps.NegotiationConfig)

	// Print transcript lines as the negotiation produces them
	negotiationService.RegisterUpdateCallback(func(update service.NegotiationUpdate) {
		if update.Line != "" {
			fmt.Fprintln(deps.Out, update.Line)
		}
	})

	ctx := context.Background()
	record, err := negotiationService.StartNegotiation(ctx, roster.Meeting, roster.Participants)
	if err != nil {
		return err
	}

	final, err := negotiationService.WaitForCompletion(ctx, record.ID)
	if err != nil {
		return err
	}

	printOutcome(deps.Out, final)
	return nil
}

// printOutcome renders the terminal state of a negotiation as a summary table
func printOutcome(out io.Writer, negotiation *models.Negotiation) {
	fmt.Fprintln(out)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Status", "Slot", "Participants", "Reason"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	row := []string{negotiation.Status.String(), "", "", ""}
	if outcome := negotiation.Outcome; outcome != nil {
		if outcome.Slot != nil {
			row[1] = outcome.Slot.Key()
		}
		row[2] = strings.Join(outcome.Participants, ", ")
		row[3] = outcome.Reason
	}
	table.Append(row)
	table.Render()
}
