package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"opsconsole/internal/config"
	"opsconsole/internal/db"
	"opsconsole/internal/models"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show machine, database and configured sources",
	Long:  `Display the machine hash, the database in use and which external sources have credentials.`,
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

// hashHostname returns a short, stable identifier for a host.
func hashHostname(hostname string) string {
	h := sha256.Sum256([]byte(hostname))
	return hex.EncodeToString(h[:])[:8]
}

// readySources lists the sources whose credentials are complete.
func readySources(creds config.Credentials) []string {
	var ready []string
	for _, src := range config.Sources {
		if creds.Require(src) == nil {
			ready = append(ready, src)
		}
	}
	return ready
}

func runWhoami(cmd *cobra.Command, args []string) error {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	machine := hashHostname(hostname)

	dbPath, _ := db.GetDefaultDBPath()
	initializedAt, _ := db.GetConfig(models.ConfigInitializedAt)
	ready := readySources(config.Load(configGetter))

	if IsJSONOutput() {
		result := map[string]interface{}{
			"machine_hash": machine,
			"database":     dbPath,
			"sources":      ready,
		}
		if initializedAt != "" {
			result["initialized_at"] = initializedAt
		}
		OutputJSON(result)
		return nil
	}

	fmt.Printf("Machine:  %s\n", machine)
	fmt.Printf("Database: %s\n", dbPath)
	if initializedAt != "" {
		fmt.Printf("Since:    %s\n", initializedAt)
	}
	if len(ready) == 0 {
		fmt.Println("Sources:  (none configured)")
	} else {
		fmt.Printf("Sources:  %s\n", strings.Join(ready, ", "))
	}

	return nil
}
