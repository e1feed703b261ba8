package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/navikt/avtalt/internal/config"
	"github.com/navikt/avtalt/internal/version"
)

// Dependencies carries the loaded configuration and the writer commands
// print to
type Dependencies struct {
	ServerConfig      config.ServerConfig
	RedisConfig       config.RedisConfig
	NegotiationConfig config.NegotiationConfig
	Out               io.Writer
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "avtalt",
		Short: "Negotiate meeting slots between distributed participants",
		Long:  "A coordinator/participant system that finds the first meeting slot enough participants can attend, without anyone revealing their calendar.",
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.AddCommand(NewServeCmd(deps))
	rootCmd.AddCommand(NewSimulateCmd(deps))
	rootCmd.AddCommand(NewJoinCmd(deps))
	rootCmd.AddCommand(NewVersionCmd(deps))

	return rootCmd
}
