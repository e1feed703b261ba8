package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	redisbus "github.com/navikt/avtalt/internal/bus/redis"
	"github.com/navikt/avtalt/internal/models"
	"github.com/navikt/avtalt/internal/negotiation"
	"github.com/navikt/avtalt/internal/participant"
	"github.com/navikt/avtalt/internal/utils"
)

func NewJoinCmd(deps *Dependencies) *cobra.Command {
	var negotiationID string
	var name string
	var windows windowListFlag

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a negotiation as a standalone participant",
		Long:  "Attach to a running negotiation over Redis and answer availability requests until interrupted. Availability stays in this process; only accept and reject votes go on the wire.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(deps, negotiationID, name, windows.slots)
		},
	}

	cmd.Flags().StringVar(&negotiationID, "negotiation", "", "ID of the negotiation to join")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Roster name to join under")
	cmd.Flags().Var(&windows, "window", "Availability window as START-END, repeatable")
	cmd.MarkFlagRequired("negotiation")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("window")

	return cmd
}

// windowListFlag accumulates repeated --window values
type windowListFlag struct {
	slots []models.TimeSlot
}

var _ pflag.Value = (*windowListFlag)(nil)

func (f *windowListFlag) String() string {
	parts := make([]string, len(f.slots))
	for i, slot := range f.slots {
		parts[i] = fmt.Sprintf("%d-%d", slot.StartTime, slot.EndTime)
	}
	return strings.Join(parts, ",")
}

func (f *windowListFlag) Set(value string) error {
	slot, err := parseWindow(value)
	if err != nil {
		return err
	}
	f.slots = append(f.slots, slot)
	return nil
}

func (f *windowListFlag) Type() string {
	return "start-end"
}

func runJoin(deps *Dependencies, negotiationID, name string, available []models.TimeSlot) error {
	if !deps.RedisConfig.Enabled {
		return errors.New("joining a negotiation needs Redis, set REDIS_ENABLED=true")
	}

	name = utils.SanitizeName(name)
	if name == "" {
		return errors.New("participant name is empty")
	}
	if name == negotiation.CoordinatorID {
		return fmt.Errorf("participant name %q is reserved", name)
	}

	negotiationBus, err := redisbus.NewBus(deps.RedisConfig, negotiationID)
	if err != nil {
		return fmt.Errorf("failed to connect to negotiation bus: %w", err)
	}
	defer negotiationBus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := participant.New(name, available)
	if err := p.Join(ctx, negotiationBus); err != nil {
		return fmt.Errorf("failed to join negotiation: %w", err)
	}
	defer p.Close()

	fmt.Fprintf(deps.Out, "%s joined negotiation %s, answering availability requests\n", name, negotiationID)

	// Stay on the bus until interrupted
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown

	fmt.Fprintln(deps.Out, "Leaving negotiation")
	return nil
}

// parseWindow turns one START-END flag value into an availability window.
// Votes compare times of day only, so the window carries no date.
func parseWindow(w string) (models.TimeSlot, error) {
	start, end, found := strings.Cut(w, "-")
	if !found {
		return models.TimeSlot{}, fmt.Errorf("invalid window %q, want START-END", w)
	}
	startTime, err := strconv.Atoi(strings.TrimSpace(start))
	if err != nil {
		return models.TimeSlot{}, fmt.Errorf("invalid window %q, want START-END", w)
	}
	endTime, err := strconv.Atoi(strings.TrimSpace(end))
	if err != nil {
		return models.TimeSlot{}, fmt.Errorf("invalid window %q, want START-END", w)
	}
	if startTime < 0 || endTime <= startTime {
		return models.TimeSlot{}, fmt.Errorf("invalid window %q, start must come before end", w)
	}
	return models.TimeSlot{StartTime: startTime, EndTime: endTime}, nil
}
