package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"opsconsole/internal/config"
	"opsconsole/internal/db"
	"opsconsole/internal/models"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage opsconsole configuration",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a non-secret setting",
	Long: `Set a non-secret setting in the config table.

Keys:
  ` + strings.Join(models.SettableKeys, "\n  ") + `

Environment variables (OPC_BILLING_ACCOUNT_ID, OPC_PAGE_SIZE, ...) take
precedence over stored values.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a stored setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a stored setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show settings and which sources have credentials",
	RunE:  runConfigShow,
}

var configTokenCmd = &cobra.Command{
	Use:   "token <source>",
	Short: "Store an API token in the system keyring",
	Long: `Store the API token for a source in the system keyring.

The token is read from --token or, preferably, from stdin so it does not
end up in shell history. OPC_<SOURCE>_TOKEN overrides the stored token.

Sources: ` + strings.Join(config.Sources, ", "),
	Args: cobra.ExactArgs(1),
	RunE: runConfigToken,
}

var configClearTokenCmd = &cobra.Command{
	Use:   "clear-token <source>",
	Short: "Remove a stored API token",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigClearToken,
}

var configTokenValue string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd, configGetCmd, configUnsetCmd, configShowCmd, configTokenCmd, configClearTokenCmd)

	configTokenCmd.Flags().StringVar(&configTokenValue, "token", "", "API token (use stdin for security)")
}

// validateSetting checks a key and normalizes its value.
func validateSetting(key, value string) (string, error) {
	if !slices.Contains(models.SettableKeys, key) {
		return "", fmt.Errorf("unknown key %q (run 'opc config set --help' for the list)", key)
	}
	value = strings.TrimSpace(value)
	switch key {
	case models.ConfigPageSize, models.ConfigMaxItems:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return "", fmt.Errorf("%s must be a positive integer", key)
		}
	case models.ConfigMaxRunDuration:
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return "", fmt.Errorf("%s must be a positive duration like 90m", key)
		}
	case models.ConfigBillingBaseURL, models.ConfigCRMBaseURL, models.ConfigSCMBaseURL,
		models.ConfigTranscriptsURL, models.ConfigMessagingBaseURL:
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return "", fmt.Errorf("%s must be an http(s) URL", key)
		}
	}
	return value, nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	value, err := validateSetting(args[0], args[1])
	if err != nil {
		return err
	}
	if err := db.SetConfig(args[0], value); err != nil {
		return fmt.Errorf("failed to save %s: %w", args[0], err)
	}
	formatter().Success(fmt.Sprintf("%s updated", args[0]))
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	value, err := db.GetConfig(args[0])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s is not set", args[0])
	}
	if err != nil {
		return err
	}
	formatter().KeyValue(args[0], value)
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	if err := db.DeleteConfig(args[0]); err != nil {
		return fmt.Errorf("failed to remove %s: %w", args[0], err)
	}
	formatter().Success(fmt.Sprintf("%s removed", args[0]))
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	settings := map[string]string{}
	for _, key := range models.SettableKeys {
		if v, err := db.GetConfig(key); err == nil {
			settings[key] = v
		}
	}
	creds := config.Load(configGetter)
	limits := config.LoadSettings(configGetter)

	sources := map[string]string{}
	for _, src := range config.Sources {
		sources[src] = "ready"
		if err := creds.Require(src); err != nil {
			var credErr *config.CredentialsError
			if errors.As(err, &credErr) {
				sources[src] = "missing " + strings.Join(credErr.Missing, ", ")
			} else {
				sources[src] = err.Error()
			}
		}
	}

	if IsJSONOutput() {
		OutputJSON(map[string]interface{}{
			"settings": settings,
			"limits":   limits,
			"sources":  sources,
		})
		return nil
	}

	fmt.Println("Settings:")
	for _, key := range models.SettableKeys {
		v, ok := settings[key]
		if !ok {
			v = "(not set)"
		}
		fmt.Printf("  %-22s %s\n", key, v)
	}
	fmt.Println("\nLimits:")
	fmt.Printf("  %-22s %d\n", "page size", limits.PageSize)
	fmt.Printf("  %-22s %d\n", "max items", limits.MaxItems)
	fmt.Printf("  %-22s %s\n", "max run duration", limits.MaxRunDuration)
	fmt.Println("\nSources:")
	for _, src := range config.Sources {
		fmt.Printf("  %-22s %s\n", src, sources[src])
	}
	return nil
}

func runConfigToken(cmd *cobra.Command, args []string) error {
	src := args[0]
	if !config.IsSource(src) {
		return fmt.Errorf("unknown source %q (expected one of %s)", src, strings.Join(config.Sources, ", "))
	}

	token := strings.TrimSpace(configTokenValue)
	if token == "" {
		if !IsJSONOutput() {
			fmt.Fprintf(os.Stderr, "%s token (paste and press Enter): ", src)
		}
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		return fmt.Errorf("token is required")
	}

	if err := config.SetToken(src, token); err != nil {
		return err
	}
	formatter().Success(fmt.Sprintf("%s token stored in system keyring", src))
	return nil
}

func runConfigClearToken(cmd *cobra.Command, args []string) error {
	if !config.IsSource(args[0]) {
		return fmt.Errorf("unknown source %q (expected one of %s)", args[0], strings.Join(config.Sources, ", "))
	}
	if err := config.ClearToken(args[0]); err != nil {
		return err
	}
	formatter().Success(fmt.Sprintf("%s token cleared", args[0]))
	return nil
}
