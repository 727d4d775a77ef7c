package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/fuzzidx/configs"
	"github.com/Aman-CERP/fuzzidx/internal/config"
	"github.com/Aman-CERP/fuzzidx/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage fuzzidx configuration.

Configuration precedence (lowest to highest):
  1. Defaults
  2. User config (~/.config/fuzzidx/config.yaml)
  3. Project config (.fuzzidx.yaml, .fuzzidx.yml or .fuzzidx.toml)
  4. Environment variables (FUZZIDX_*)`,
		Example: `  # Create .fuzzidx.yaml in the current directory
  fuzzidx config init

  # Show effective configuration
  fuzzidx config show --json`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a project configuration file",
		Long: `Write .fuzzidx.yaml to the project root from a commented template.
With --force an existing file is backed up first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration after a backup")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print configuration file paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := filepath.Abs(projectDir)
			if err != nil {
				return err
			}
			project := config.FindProjectConfig(root)
			if project == "" {
				project = "(none)"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user:    %s\nproject: %s\n", config.GetUserConfigPath(), project)
			return nil
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	root, err := filepath.Abs(projectDir)
	if err != nil {
		return fmt.Errorf("failed to resolve project root: %w", err)
	}

	if existing := config.FindProjectConfig(root); existing != "" {
		if !force {
			out.Warning("Project configuration already exists")
			out.Statusf("📁", "Location: %s", existing)
			out.Status("💡", "Use --force to replace it (a backup is kept)")
			return nil
		}
		backup, err := config.BackupFile(existing)
		if err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
		if err := os.Remove(existing); err != nil {
			return fmt.Errorf("failed to remove old config: %w", err)
		}
		out.Statusf("💾", "Backup: %s", backup)
	}

	path := filepath.Join(root, ".fuzzidx.yaml")
	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created project configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. List your searchable fields and their sources")
	out.Status("", "  2. Run 'fuzzidx config show' to verify")
	out.Status("", "  3. Run 'fuzzidx index'")
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
