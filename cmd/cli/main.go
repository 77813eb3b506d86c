package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/wicketlens/WicketLens/pkg/logger"
	"github.com/wicketlens/WicketLens/pkg/models"
	"github.com/wicketlens/WicketLens/pkg/wicketlens"
)

// Global flags
var (
	dbPath     string
	backendURL string
	owner      string
)

func init() {
	flag.StringVar(&dbPath, "db", getEnvOrDefault("WICKETLENS_DB_PATH", "wicketlens.sqlite3"), "Path to the SQLite database file")
	flag.StringVar(&backendURL, "backend", os.Getenv("WICKETLENS_BACKEND_URL"), "Live analysis backend URL (empty for simulation mode)")
	flag.StringVar(&owner, "owner", os.Getenv("WICKETLENS_OWNER"), "Owner id for durable storage (generated when empty)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func createService() (wicketlens.Service, error) {
	return wicketlens.NewService(
		wicketlens.WithDBPath(dbPath),
		wicketlens.WithBackendURL(backendURL),
	)
}

func main() {
	log := logger.GetLogger()

	printBanner()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	os.Args = append(os.Args[:1], os.Args[2:]...)
	flag.Parse()

	if owner == "" {
		owner = uuid.NewString()
		log.Debugf("Generated owner id: %s", owner)
	}

	switch command {
	case "analyze":
		handleAnalyze()
	case "result":
		handleResult()
	case "history":
		handleHistory()
	case "stats":
		handleStats()
	case "delete":
		handleDelete()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAnalyze() {
	if flag.NArg() < 1 {
		fmt.Println("Usage: wicketlens analyze [flags] <video-file>")
		os.Exit(1)
	}
	videoPath := flag.Arg(0)

	service := mustService()
	defer service.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	lastPct := -1.0
	onProgress := func(pct float64) {
		if pct != lastPct {
			fmt.Printf("\rFingerprinting... %3.0f%%", pct)
			lastPct = pct
		}
		if pct >= 100 {
			fmt.Println()
		}
	}
	onStep := func(step models.Step) {
		if step.Status == models.StepCompleted || step.Status == models.StepFailed {
			fmt.Printf("  [%s] %s\n", step.Status, step.Name)
		}
	}

	report, err := service.Analyze(ctx, owner, videoPath, models.DefaultMatchConfig(), onProgress, onStep)
	if err != nil {
		fmt.Printf("Analysis failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("Decision:    %s\n", report.Decision)
	fmt.Printf("Confidence:  %.1f%%\n", report.Confidence)
	fmt.Printf("Umpire call: %v\n", report.UmpiresCall)
	fmt.Printf("Report id:   %s\n", report.ID)
}

func handleResult() {
	if flag.NArg() < 1 {
		fmt.Println("Usage: wicketlens result [flags] <report-id>")
		os.Exit(1)
	}
	service := mustService()
	defer service.Close()

	report, err := service.GetResult(context.Background(), owner, flag.Arg(0))
	if err != nil {
		fmt.Printf("Lookup failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(report)
}

func handleHistory() {
	service := mustService()
	defer service.Close()

	entries, err := service.ListHistory(context.Background(), owner, 0)
	if err != nil {
		fmt.Printf("History failed: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("No analyses yet.")
		return
	}
	for _, e := range entries {
		fmt.Printf("%-40s %-8s %6.1f%%  %s\n", e.ID, e.Decision, e.Confidence, e.AnalyzedAt.Format("2006-01-02 15:04"))
	}
}

func handleStats() {
	service := mustService()
	defer service.Close()

	stats, err := service.GetStats(context.Background(), owner)
	if err != nil {
		fmt.Printf("Stats failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Total analyses:     %d\n", stats.TotalAnalyses)
	fmt.Printf("OUT decisions:      %d\n", stats.OutDecisions)
	fmt.Printf("NOT OUT decisions:  %d\n", stats.NotOutDecisions)
	fmt.Printf("Average confidence: %.1f%%\n", stats.AverageConfidence)
}

func handleDelete() {
	if flag.NArg() < 1 {
		fmt.Println("Usage: wicketlens delete [flags] <report-id>")
		os.Exit(1)
	}
	service := mustService()
	defer service.Close()

	ok, err := service.Remove(context.Background(), owner, flag.Arg(0))
	if err != nil || !ok {
		fmt.Printf("Delete failed for %s\n", flag.Arg(0))
		os.Exit(1)
	}
	fmt.Printf("Deleted %s\n", flag.Arg(0))
}

func mustService() wicketlens.Service {
	service, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		os.Exit(1)
	}
	return service
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Failed to encode output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func printBanner() {
	fmt.Print(`
 __      __ _       _        _   _
 \ \    / /(_) ___ | | __ ___| |_| |    ___ _ __  ___
  \ \/\/ / | |/ __|| |/ // _ \ __| |   / _ \ '_ \/ __|
   \    /  | | (__ |   <|  __/ |_| |__|  __/ | | \__ \
    \/\/   |_|\___||_|\_\\___|\__|_____\___|_| |_|___/

  Leg-before-wicket decision support

`)
}

func printUsage() {
	fmt.Println(`Usage: wicketlens <command> [flags] [args]

Commands:
  analyze <video>   Analyze a video and print the decision
  result <id>       Print the full report for an analysis
  history           List past analyses
  stats             Aggregate decision statistics
  delete <id>       Remove an analysis

Flags (after the command):
  -db <path>        SQLite database path
  -backend <url>    Live analysis backend URL
  -owner <id>       Owner id for durable storage`)
}
