package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/thomst/searchkit/internal/db"
	"github.com/thomst/searchkit/internal/domain"
)

// Config carries runtime settings for the server and the relation
// traversal depth of the query builder.
type Config struct {
	ServerAddr     string
	MaxDepth       int
	MigrationsPath string
	Database       db.Config
}

// Load reads config.yaml from configPath, falling back to defaults and
// environment overrides (SEARCHKIT_DATABASE_HOST and so on).
func Load(configPath string) (Config, error) {
	cfg := Config{
		ServerAddr:     ":8080",
		MaxDepth:       domain.DefaultMaxDepth,
		MigrationsPath: "migrations",
		Database:       db.DefaultConfig(),
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv() // allow environment overrides
	v.SetEnvPrefix("SEARCHKIT")

	// Optional: Map nested keys to flat env vars
	v.BindEnv("server.addr")
	v.BindEnv("searchkit.max_depth")
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	// Override defaults if values exist
	if v.IsSet("server.addr") {
		cfg.ServerAddr = v.GetString("server.addr")
	}
	if v.IsSet("searchkit.max_depth") {
		cfg.MaxDepth = v.GetInt("searchkit.max_depth")
	}
	if v.IsSet("searchkit.migrations_path") {
		cfg.MigrationsPath = v.GetString("searchkit.migrations_path")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	return cfg, nil
}
