package main

import (
	"fmt"
	"os"

	"github.com/plandeck/plandeck/internal/cli"
	"github.com/plandeck/plandeck/internal/config"
	"github.com/plandeck/plandeck/internal/db"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	database, err := db.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	app := &cli.App{
		Database: database,
		UoW:      db.NewSQLiteUnitOfWork(database),
	}

	rootCmd := cli.NewRootCmd(app)
	return rootCmd.Execute()
}
