package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"omicpath/adapters/postgres"
	"omicpath/domain/core"
	"omicpath/domain/report"
	"omicpath/internal/migration"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate <database_url> [report_json_dir]")
	}

	databaseURL := os.Args[1]

	// Connect to database
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Schema version %s applied", runner.Version())

	if len(os.Args) < 3 {
		return
	}
	reportDir := os.Args[2]

	files, err := findReportFiles(reportDir)
	if err != nil {
		log.Fatalf("Failed to find report files: %v", err)
	}
	log.Printf("Found %d report files to import", len(files))

	repo := postgres.NewReportRepository(db)
	imported := 0
	skipped := 0

	for _, file := range files {
		rep, err := loadReportFromFile(file)
		if err != nil {
			log.Printf("Failed to load report from %s: %v", file, err)
			skipped++
			continue
		}

		if err := repo.SaveReport(ctx, rep); err != nil {
			log.Printf("Failed to save report %s: %v", rep.RunID, err)
			skipped++
			continue
		}

		imported++
		log.Printf("Imported report %s from %s", rep.RunID, filepath.Base(file))
	}

	log.Printf("Import complete: %d imported, %d skipped", imported, skipped)
}

func findReportFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}

		return nil
	})

	return files, err
}

// loadReportFromFile decodes a report; files without a run id get one
// derived from their path so repeated imports replace the same run
func loadReportFromFile(filePath string) (*report.Report, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, err
	}

	if rep.RunID == "" {
		abs, err := filepath.Abs(filePath)
		if err != nil {
			abs = filePath
		}
		rep.RunID = core.RunID(uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)).String())
	}
	return &rep, nil
}
