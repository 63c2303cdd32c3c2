package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodewatch/plugind/internal/cli/prompt"
	"github.com/nodewatch/plugind/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing configuration file without prompting")
}

func runInit(cmd *cobra.Command, args []string) error {
	var path string
	if GetConfigFile() != "" {
		path = GetConfigFile()
	} else {
		path = config.GetDefaultConfigPath()
	}

	force := initForce
	if !force {
		if _, statErr := os.Stat(path); statErr == nil {
			confirmed, confirmErr := prompt.ConfirmWithForce(fmt.Sprintf("%s already exists, overwrite", path), force)
			if confirmErr != nil {
				if prompt.IsAborted(confirmErr) {
					fmt.Println("aborted: configuration file left untouched")
					return nil
				}
				return confirmErr
			}
			if !confirmed {
				fmt.Println("aborted: configuration file left untouched")
				return nil
			}
			force = true
		}
	}

	err := config.InitConfigToPath(path, force)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to list your plugin directories")
	fmt.Println("  2. Start the collector with: plugind start")
	fmt.Printf("  3. Or specify a custom config: plugind start --config %s\n", path)
	return nil
}
