package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodewatch/plugind/pkg/config"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the configuration file's JSON Schema",
	Long: `Reflects the Config struct into a JSON Schema document.

Useful for validating a config.yaml before starting the collector, or for
editors that support YAML-schema association.`,
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	out, err := config.SchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to render schema: %w", err)
	}
	_, err = os.Stdout.Write(append(out, '\n'))
	return err
}
