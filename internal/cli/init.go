package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

const configHeader = "# bulkdump configuration\n" +
	"# Every key can be overridden by a BULKDUMP_* environment variable,\n" +
	"# e.g. BULKDUMP_EXPORT_PAGE_SIZE, or by the matching command flag.\n\n"

func newInitCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml",
		Long:  "Create the configuration directory and write config.yaml with default values.\nAn existing config.yaml is left unchanged.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, e)
		},
	}
}

func runInit(cmd *cobra.Command, e *env) error {
	if err := os.MkdirAll(e.configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	path := filepath.Join(e.configDir, configFileExt)
	wrote, err := writeConfigIfMissing(path)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if wrote {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Config already exists at %s\n", path)
	}
	return nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. If it already exists, the function returns false and nil
// (idempotent).
func writeConfigIfMissing(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	data, err := yaml.Marshal(types.DefaultConfig())
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
