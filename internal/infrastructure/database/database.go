package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/logger"
)

var SchemaRegistry []interface{}

func RegisterSchemaForAutoMigrate(models ...interface{}) {
	SchemaRegistry = append(SchemaRegistry, models...)
}

var DB *gorm.DB

// Config holds database configuration
type Config struct {
	DatabaseURL string
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
	LogLevel    gormlogger.LogLevel
}

// Connect creates a new database connection with the given configuration
func Connect(cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   "thought_engine.",
			SingularTable: false,
		},
		Logger: gormlogger.Default.LogMode(cfg.LogLevel),
	})
	if err != nil {
		log := logger.GetLogger()
		log.Error().
			Str("error_code", "8f2a4c1e-0d5b-4e7a-9c3f-6b1d8e2a5f90").
			Err(err).
			Msg("unable to connect to database")
		return nil, err
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)

	log := logger.GetLogger()
	log.Info().Msg("Successfully connected to database")
	DB = db
	return DB, nil
}

// NewDB creates a new database connection using DSN
func NewDB(dsn string) (*gorm.DB, error) {
	return Connect(Config{
		DatabaseURL: dsn,
		MaxIdle:     10,
		MaxOpen:     25,
		MaxLifetime: 1 * time.Hour,
		LogLevel:    gormlogger.Silent,
	})
}

type DatabaseMigration struct {
	gorm.Model
	Version string `gorm:"not null;uniqueIndex"`
}

// Migration creates the schema, enables pgvector, and auto-migrates all
// registered models. embeddingDimensions sizes the vector columns.
func Migration(db *gorm.DB, embeddingDimensions int) error {
	schemaName := "thought_engine"

	if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;", schemaName)).Error; err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector;").Error; err != nil {
		return fmt.Errorf("failed to enable pgvector extension: %w", err)
	}

	hasTable := db.Migrator().HasTable(&DatabaseMigration{})
	if !hasTable {
		if err := db.AutoMigrate(&DatabaseMigration{}); err != nil {
			return fmt.Errorf("failed to create 'database_migration' table: %w", err)
		}
		for _, model := range SchemaRegistry {
			if err := db.AutoMigrate(model); err != nil {
				log := logger.GetLogger()
				log.Error().
					Str("error_code", "3b7e9d42-5a1c-48f6-b2e8-0c4d7f9a1e63").
					Err(err).
					Msgf("failed to auto migrate schema: %T", model)
				return err
			}
		}
		if err := migrateVectorColumns(db, schemaName, embeddingDimensions); err != nil {
			return err
		}
	}
	return nil
}

// migrateVectorColumns adds the pgvector columns AutoMigrate cannot express.
func migrateVectorColumns(db *gorm.DB, schemaName string, dimensions int) error {
	statements := []string{
		fmt.Sprintf("ALTER TABLE %s.thoughts ADD COLUMN IF NOT EXISTS embedding vector(%d);", schemaName, dimensions),
		fmt.Sprintf("ALTER TABLE %s.cache_entries ADD COLUMN IF NOT EXISTS embedding vector(%d);", schemaName, dimensions),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_cache_entries_embedding ON %s.cache_entries USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);", schemaName),
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to migrate vector columns: %w", err)
		}
	}
	return nil
}
