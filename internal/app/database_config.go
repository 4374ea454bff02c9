package app

import (
	"strings"

	"github.com/mysterymsg/mystery/internal/database"
)

// DriverMongo selects the document store instead of a SQL database.
const DriverMongo = "mongodb"

// NormalisedDriver returns the lower-cased driver name with aliases resolved.
func (c DatabaseConfig) NormalisedDriver() string {
	switch driver := strings.ToLower(strings.TrimSpace(c.Driver)); driver {
	case "", "sqlite", "sqlite3":
		return "sqlite"
	case "postgres", "postgresql":
		return "postgres"
	case "mongo", "mongodb":
		return DriverMongo
	default:
		return driver
	}
}

// SQLConfig converts DatabaseConfig into the gorm connection options.
func (c DatabaseConfig) SQLConfig() database.Config {
	dbCfg := database.Config{
		Driver: c.NormalisedDriver(),
		Path:   strings.TrimSpace(c.Path),
		DSN:    strings.TrimSpace(c.DSN),
	}

	switch dbCfg.Driver {
	case "postgres":
		dbCfg.Host = strings.TrimSpace(c.Postgres.Host)
		dbCfg.Port = c.Postgres.Port
		dbCfg.Name = strings.TrimSpace(c.Postgres.Database)
		dbCfg.User = strings.TrimSpace(c.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(c.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(c.MySQL.Host)
		dbCfg.Port = c.MySQL.Port
		dbCfg.Name = strings.TrimSpace(c.MySQL.Database)
		dbCfg.User = strings.TrimSpace(c.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(c.MySQL.Password)
	}

	return dbCfg
}

// MongoConfig converts DatabaseConfig into MongoDB client options.
func (c DatabaseConfig) MongoConfig() database.MongoConfig {
	name := strings.TrimSpace(c.MongoDB.Database)
	if name == "" {
		name = "mystery"
	}
	return database.MongoConfig{
		URI:      strings.TrimSpace(c.MongoDB.URI),
		Database: name,
		Timeout:  c.MongoDB.Timeout,
		AppName:  "mystery-message",
	}
}
