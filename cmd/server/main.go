package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"promowatch/internal/collector"
	"promowatch/internal/config"
	"promowatch/internal/handlers"
	"promowatch/internal/history"
	"promowatch/internal/jobs"
	"promowatch/internal/ozon"
	"promowatch/internal/version"
	"promowatch/internal/worker"
)

func main() {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	cfg := config.Load()

	sink, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		// History is best-effort; the checker runs without it.
		log.Printf("History sink disabled: %v", err)
		sink = nil
	} else {
		defer sink.Close()
	}

	store := jobs.NewStore(cfg.MaxJobs, cfg.JobTTL)

	sessions := func(fresh bool) (collector.Session, error) {
		return ozon.NewSession(ozon.SessionConfig{
			Headless:     cfg.Headless,
			UserDataDir:  cfg.UserDataDir,
			FreshProfile: fresh,
			PageTimeout:  cfg.PageTimeout,
			GetRetries:   cfg.GetRetries,
			LabelWait:    cfg.LabelWait,
		})
	}

	w := worker.New(store, sink, sessions, cfg)
	w.Start()
	defer w.Stop()

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	checkHandler := handlers.NewCheckHandler(sessions)
	jobHandler := handlers.NewJobHandler(store, w)
	exportHandler := handlers.NewExportHandler(store)

	e.POST("/check", checkHandler.Check)
	e.POST("/batch", jobHandler.CreateBatch)
	e.POST("/auto-batch", jobHandler.CreateAutoBatch)
	e.POST("/search-only", jobHandler.CreateSearchOnly)
	e.GET("/jobs", jobHandler.List)
	e.GET("/jobs/:id", jobHandler.Status)
	e.POST("/jobs/:id/stop", jobHandler.Stop)
	e.GET("/jobs/:id/csv", exportHandler.ResultsCSV)
	e.GET("/jobs/:id/xlsx", exportHandler.ResultsXLSX)
	e.GET("/jobs/:id/search-csv", exportHandler.SearchCSV)
	e.GET("/jobs/:id/search-xlsx", exportHandler.SearchXLSX)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	})

	log.Printf("Starting promowatch v%s on port %s", version.Version, port)
	if err := e.Start(fmt.Sprintf(":%s", port)); err != nil {
		log.Fatal(err)
	}
}
