package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"ms-deals/internal/config"
	"ms-deals/internal/database/migrations"
	"ms-deals/internal/logger"
)

func main() {
	steps := flag.Int("steps", 0, "apply n migrations (negative rolls back); 0 with 'up' applies all")
	dir := flag.String("dir", "", "migrations directory (defaults to MIGRATIONS_DIR)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [flags] up|down|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger("")
	defer log.Close()

	if *dir == "" {
		*dir = cfg.Database.MigrationsDir
	}

	runner := migrations.NewRunner(cfg.Database.DSN, *dir, log)
	defer runner.Close()

	var err error
	switch flag.Arg(0) {
	case "up":
		if *steps != 0 {
			err = runner.Steps(*steps)
		} else {
			err = runner.Up()
		}
	case "down":
		if *steps != 0 {
			err = runner.Steps(-abs(*steps))
		} else {
			err = runner.Down()
		}
	case "version":
		version, dirty, verr := runner.Version()
		if verr == nil {
			fmt.Printf("version=%d dirty=%t\n", version, dirty)
		}
		err = verr
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
