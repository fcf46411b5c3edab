package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var dbURL, migrationsPath string

	flag.StringVar(&dbURL, "db-url", os.Getenv("DATABASE_URL"), "database connection url")
	flag.StringVar(&migrationsPath, "migrations-path", "./migrations", "path to migrations")
	flag.Parse()

	if dbURL == "" {
		panic("db-url is required")
	}

	m, err := migrate.New("file://"+migrationsPath, dbURL)
	if err != nil {
		panic(err)
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}
		panic(err)
	}

	fmt.Println("migrations applied successfully")
}
