package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rshade/finboard/internal/config"
)

// errConfigExists is returned by config init when the target file exists
// and --force was not given.
var errConfigExists = errors.New("configuration file already exists, use --force to overwrite")

// NewConfigInitCmd writes a default configuration, either the user file or
// a project-local .finboard/config.yaml.
func NewConfigInitCmd() *cobra.Command {
	var force, project bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Long: `Writes the default configuration to ~/.finboard/config.yaml
(or $FINBOARD_CONFIG).

With --project the file goes to ./.finboard/config.yaml, or under
--project-dir, next to a .gitignore that keeps exports, caches and logs out
of version control. An existing .gitignore is never touched.`,
		Example: `  finboard config init
  finboard config init --project
  finboard config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !project {
				return initUserConfig(cmd, force)
			}
			dir := config.GetResolvedProjectDir()
			if dir == "" {
				dir = ".finboard"
			}
			return initProjectConfig(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	cmd.Flags().BoolVar(&project, "project", false, "write project-local configuration")
	return cmd
}

// writeDefaults saves the default configuration to path unless a file is
// already there and force is off.
func writeDefaults(path string, force bool) error {
	if !force {
		switch _, err := os.Stat(path); {
		case err == nil:
			return errConfigExists
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}
	if err := config.Default().Save(path); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}
	return nil
}

func initProjectConfig(cmd *cobra.Command, projectDir string, force bool) error {
	path := filepath.Join(projectDir, "config.yaml")
	if err := writeDefaults(path, force); err != nil {
		return err
	}

	created, err := config.EnsureGitignore(projectDir)
	if err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	cmd.Printf("Configuration initialized at %s\n", path)
	if created {
		cmd.Println("Created .gitignore to keep exports and caches out of version control")
	}
	return nil
}

func initUserConfig(cmd *cobra.Command, force bool) error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if err := writeDefaults(path, force); err != nil {
		return err
	}
	if err := config.EnsureSubDirs(); err != nil {
		cmd.PrintErrf("Warning: %v\n", err)
	}

	cmd.Println("Configuration initialized successfully")
	cmd.Printf("Configuration file: %s\n", path)
	return nil
}
