// Command trackly serves the tracking and reporting API.
package main

import (
	"log"
	"log/slog"
	"time"

	"trackly/internal"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	if err := app.DBManager.MigrateDatabase(); err != nil {
		app.Logger.Error("Failed to run migrations", slog.Any("error", err))
		log.Fatal(err)
	}

	if err := app.Run(shutdownTimeout); err != nil {
		app.Logger.Error("Application exited with error", slog.Any("error", err))
		log.Fatal(err)
	}
}
