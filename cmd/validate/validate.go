// Package validate implements the validate command, which checks the
// loaded configuration and exits.
package validate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/innovyom/breedscan-go/internal/conf"
)

// Command creates the validate command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the service configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.ValidateSettings(settings); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration OK")
			return nil
		},
	}
}
