package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"opsconsole/internal/models"
)

const (
	// DataDir is the directory name for console data
	DataDir = ".opsconsole"
	// DBFileName is the database filename within the data directory
	DBFileName = "db.sqlite"
	// SchemaVersion is the current schema version
	SchemaVersion = "1"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	db   *gorm.DB
	dbMu sync.RWMutex
)

// Open connects to the database with the given driver and runs migrations.
// For sqlite the dsn is a file path; for postgres it is a connection URL.
func Open(driver, dsn string) (*gorm.DB, error) {
	// Configure GORM with silent logger for production.
	// TranslateError maps unique violations to gorm.ErrDuplicatedKey.
	// Mapping associations are only used for preloading, so no foreign keys.
	config := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,

		DisableForeignKeyConstraintWhenMigrating: true,
	}

	var dialector gorm.Dialector
	switch driver {
	case "", DriverSQLite:
		// Ensure the directory exists
		dir := filepath.Dir(dsn)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (expected %s or %s)", driver, DriverSQLite, DriverPostgres)
	}

	database, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "" || driver == DriverSQLite {
		if err := configureSQLite(database); err != nil {
			return nil, err
		}
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return database, nil
}

// configureSQLite sizes the pool and enables WAL so scheduled and manual
// runs can share the file.
func configureSQLite(database *gorm.DB) error {
	// Note: SQLite supports multiple readers but only one writer.
	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)

	// Wait on lock instead of failing immediately
	if err := database.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := database.Exec("PRAGMA busy_timeout=5000").Error; err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return nil
}

// InitDB initializes the shared sqlite connection used by the CLI
func InitDB(dbPath string) (*gorm.DB, error) {
	return InitWithDriver(DriverSQLite, dbPath)
}

// InitWithDriver initializes the shared connection with an explicit driver
func InitWithDriver(driver, dsn string) (*gorm.DB, error) {
	database, err := Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	dbMu.Lock()
	db = database
	dbMu.Unlock()
	return database, nil
}

// runMigrations runs all database migrations
func runMigrations(database *gorm.DB) error {
	return database.AutoMigrate(
		&models.Config{},
		&models.Company{},
		&models.CRMCompany{},
		&models.Invoice{},
		&models.Repository{},
		&models.MeetingTranscript{},
		&models.Channel{},
		&models.CompanyMapping{},
		&models.RepositoryMapping{},
		&models.RunLog{},
		&models.RunLogDetail{},
	)
}

// GetDB returns the current database connection
func GetDB() *gorm.DB {
	dbMu.RLock()
	defer dbMu.RUnlock()
	return db
}

// SetDB sets the database connection (used for testing)
func SetDB(database *gorm.DB) {
	dbMu.Lock()
	defer dbMu.Unlock()
	db = database
}

// CloseDB closes the database connection
func CloseDB() error {
	dbMu.Lock()
	defer dbMu.Unlock()

	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	err = sqlDB.Close()
	db = nil
	return err
}

// FindProjectRoot searches upwards for a directory containing DataDir
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := cwd
	for {
		dataPath := filepath.Join(dir, DataDir)
		if info, err := os.Stat(dataPath); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not an opsconsole workspace (no %s/ found)", DataDir)
		}
		dir = parent
	}
}

// GetDefaultDBPath returns the default database path for the current workspace
func GetDefaultDBPath() (string, error) {
	if path := os.Getenv("OPC_DB_PATH"); path != "" {
		return path, nil
	}
	root, err := FindProjectRoot()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			return "", cwdErr
		}
		return filepath.Join(cwd, DataDir, DBFileName), nil
	}
	return filepath.Join(root, DataDir, DBFileName), nil
}

// EnsureInitialized opens the configured database if it is not open yet.
// OPC_DB_DRIVER=postgres with OPC_DATABASE_URL selects a server database.
func EnsureInitialized() error {
	dbMu.RLock()
	isNil := db == nil
	dbMu.RUnlock()

	if !isNil {
		return nil
	}

	if driver := os.Getenv("OPC_DB_DRIVER"); driver == DriverPostgres {
		dsn := os.Getenv("OPC_DATABASE_URL")
		if dsn == "" {
			return fmt.Errorf("OPC_DB_DRIVER=postgres requires OPC_DATABASE_URL")
		}
		_, err := InitWithDriver(DriverPostgres, dsn)
		return err
	}

	dbPath, err := GetDefaultDBPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("opsconsole not initialized. Run 'opc init' first")
	}
	_, err = InitDB(dbPath)
	return err
}

// SetConfig sets a configuration value
func SetConfig(key, value string) error {
	config := models.Config{Key: key, Value: value}
	return GetDB().Save(&config).Error
}

// GetConfig gets a configuration value
func GetConfig(key string) (string, error) {
	var config models.Config
	err := GetDB().Where("key = ?", key).First(&config).Error
	if err != nil {
		return "", err
	}
	return config.Value, nil
}

// DeleteConfig removes a configuration value
func DeleteConfig(key string) error {
	return GetDB().Where("key = ?", key).Delete(&models.Config{}).Error
}
