// Package bootstrap wires the application's components from config
package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"riciti/pkg/config"
	"riciti/pkg/database"
	"riciti/pkg/database/migrations"
	"riciti/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupDB connects the database and migrates the schema
func SetupDB() {
	var dbConfig gorm.Dialector
	switch config.Get("database.connection") {
	case "postgresql":
		dbConfig = setupPostgreSQL()
	case "sqlite":
		dbConfig = setupSQLite()
	default:
		panic(errors.New("unsupported database connection: " + config.Get("database.connection")))
	}

	database.Connect(dbConfig, logger.NewGormLogger())

	setupDBPool()

	if err := database.AutoMigrate(database.DB, migrations.RegisterTables(), migrations.RegisterStatements()); err != nil {
		logger.ErrorString("Database", "AutoMigrate", "schema migration failed: "+err.Error())
		panic(err)
	}
	logger.InfoString("Database", "AutoMigrate", "schema is up to date")
}

func setupPostgreSQL() gorm.Dialector {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		config.Get("database.postgresql.host"),
		config.Get("database.postgresql.port"),
		config.Get("database.postgresql.username"),
		config.Get("database.postgresql.password"),
		config.Get("database.postgresql.database"),
		config.Get("database.postgresql.sslmode"),
	)
	return postgres.New(postgres.Config{
		DSN: dsn,
	})
}

func setupSQLite() gorm.Dialector {
	// foreign keys and a busy timeout so the conditional updates serialise
	return sqlite.Open(config.Get("database.sqlite.database") + "?_foreign_keys=on&_busy_timeout=5000")
}

func setupDBPool() {
	database.SQLDB.SetMaxOpenConns(config.GetInt("database.postgresql.max_open_connections"))
	database.SQLDB.SetMaxIdleConns(config.GetInt("database.postgresql.max_idle_connections"))
	database.SQLDB.SetConnMaxLifetime(time.Duration(config.GetInt("database.postgresql.max_life_seconds")) * time.Second)
}
