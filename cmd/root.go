package cmd

import (
	"github.com/spf13/cobra"

	"github.com/innovyom/breedscan-go/cmd/serve"
	"github.com/innovyom/breedscan-go/cmd/validate"
	"github.com/innovyom/breedscan-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "breedscan",
		Short: "Breedscan animal breed classification service",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		validate.Command(settings),
	)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
}
