// Command budget-seed imports a JSON seed file of recurring expense
// templates and ensures the first budget month for an owner.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"budget/internal/config"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage"
)

func main() {
	_ = godotenv.Load()

	var (
		file  = flag.String("file", "seed.json", "path to the seed JSON file")
		owner = flag.String("owner", "", "budget owner (defaults to BUDGET_OWNER)")
		month = flag.String("month", "", "first month as YYYY-MM (defaults to the current month)")
	)
	flag.Parse()

	logger := applog.New(applog.Config{Component: "seed"})

	cfg := config.Load()
	if *owner == "" {
		*owner = cfg.DefaultOwner
	}

	firstMonth := core.NormalizeMonth(time.Now())
	if *month != "" {
		parsed, err := core.ParseMonth(*month)
		if err != nil {
			logger.Error("Invalid month flag", "month", *month, "error", err)
			os.Exit(1)
		}
		firstMonth = parsed
	}

	f, err := os.Open(*file)
	if err != nil {
		logger.Error("Failed to open seed file", "file", *file, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	data, err := services.ParseSeedData(f)
	if err != nil {
		logger.Error("Failed to parse seed file", "file", *file, "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	svc := services.NewBudgetService(repo, services.WithForecastWindow(cfg.ForecastWindow))
	defer svc.Close()

	m, err := svc.ImportSeed(context.Background(), *owner, data, firstMonth)
	if err != nil {
		logger.Error("Seed import failed", "owner", *owner, "error", err)
		os.Exit(1)
	}

	templates, err := svc.ListTemplates(context.Background(), *owner, false)
	if err != nil {
		logger.Error("Failed to list templates after import", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Imported %d templates for %s, first month %s (net income %s)\n",
		len(templates), *owner, core.FormatMonth(m.Month), m.NetIncome)
}
