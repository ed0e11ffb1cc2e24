package db

import (
	"testing"

	"github.com/canchat/canchat/internal/config"
)

func TestRunMigrateUnknownCommand(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "chat",
		Password: "secret",
		Database: "canchat",
		SSLMode:  "disable",
	}
	if err := RunMigrate(nil, cfg, nil, "sideways", nil); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestRunMigrateForceRequiresVersion(t *testing.T) {
	if err := RunMigrate(nil, config.PostgresConfig{}, nil, "force", nil); err == nil {
		t.Fatal("expected error when force is missing its version argument")
	}
}
