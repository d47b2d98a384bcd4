package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"opsconsole/internal/db"
	"opsconsole/internal/models"
	"opsconsole/internal/scheduler"
)

var (
	forceInit     bool
	initGitignore bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize opsconsole in the current directory",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Force reinitialize (drops the existing database)")
	initCmd.Flags().BoolVar(&initGitignore, "gitignore", false, "Add the data directory to .gitignore")
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	dataDir := filepath.Join(cwd, db.DataDir)
	dbPath := filepath.Join(dataDir, db.DBFileName)

	// Check if already initialized
	if info, err := os.Stat(dataDir); err == nil && info.IsDir() {
		if !forceInit {
			return fmt.Errorf("already initialized. Use --force to reinitialize")
		}
		if err := os.RemoveAll(dataDir); err != nil {
			return fmt.Errorf("failed to remove existing data directory: %w", err)
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	database, err := db.InitDB(dbPath)
	if err != nil {
		return err
	}

	if err := database.Create(&models.Config{Key: models.ConfigSchemaVersion, Value: db.SchemaVersion}).Error; err != nil {
		return fmt.Errorf("failed to save schema version: %w", err)
	}
	if err := database.Create(&models.Config{Key: models.ConfigInitializedAt, Value: time.Now().Format(time.RFC3339)}).Error; err != nil {
		return fmt.Errorf("failed to save initialization time: %w", err)
	}

	if initGitignore {
		if err := addToGitignore(cwd, db.DataDir); err != nil {
			// Non-fatal, just warn
			fmt.Fprintf(os.Stderr, "Warning: could not add to .gitignore: %v\n", err)
		}
	}

	if IsJSONOutput() {
		OutputJSON(map[string]interface{}{"success": true, "path": dataDir})
		return nil
	}

	fmt.Printf("opsconsole initialized in %s/\n", db.DataDir)
	fmt.Println("\nNext steps:")
	fmt.Println("  opc config token <source>        Store an API token")
	fmt.Println("  opc config show                  Check what is configured")
	fmt.Println("  opc sync all                     Run every sync once")
	fmt.Printf("  %-32s Optional cron schedules for 'opc serve'\n", filepath.Join(db.DataDir, scheduler.DefaultFile))

	return nil
}

func addToGitignore(dir, entry string) error {
	gitignorePath := filepath.Join(dir, ".gitignore")

	content, err := os.ReadFile(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == entry || line == entry+"/" {
			return nil // Already in gitignore
		}
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	// Add newline if file doesn't end with one
	if len(content) > 0 && content[len(content)-1] != '\n' {
		if _, err := f.WriteString("\n"); err != nil {
			return err
		}
	}
	_, err = f.WriteString(entry + "/\n")
	return err
}
