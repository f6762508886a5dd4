package main

import (
	"flag"
	"fmt"
	"os"

	"clickweaver.com/clickweaver-go/internal/config"
	"clickweaver.com/clickweaver-go/internal/database"
	"clickweaver.com/clickweaver-go/pkg/conditions"
)

func main() {
	configPath := flag.String("config", "", "Settings file supplying scenario dir and database path")
	scenarioDir := flag.String("dir", "", "Directory containing scenario YAML files to import")
	scenarioFile := flag.String("file", "", "Single scenario YAML file to import")
	dbPath := flag.String("db", "", "Path to database file")
	list := flag.Bool("list", false, "List scenarios already in the database")
	flag.Parse()

	// An explicit flag wins; the settings file fills whatever is missing.
	if *configPath != "" {
		cfg, err := config.LoadFromINI(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		if *scenarioDir == "" && *scenarioFile == "" {
			*scenarioDir = cfg.ScenarioDir
		}
		if *dbPath == "" {
			*dbPath = cfg.DatabasePath
		}
	}
	if *dbPath == "" {
		*dbPath = "data/scenarios.db"
	}

	if *scenarioDir == "" && *scenarioFile == "" && !*list {
		fmt.Println("Usage:")
		fmt.Println("  Import directory: import-scenarios -dir <directory> [-db <database>]")
		fmt.Println("  Import file:      import-scenarios -file <scenario.yaml> [-db <database>]")
		fmt.Println("  From settings:    import-scenarios -config <Engine.ini>")
		fmt.Println("  List:             import-scenarios -list [-db <database>]")
		os.Exit(1)
	}

	db, err := database.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	if *list {
		listScenarios(db)
		return
	}

	registry := conditions.NewRegistry()

	if *scenarioFile != "" {
		if _, err := registry.LoadFromFile(*scenarioFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *scenarioFile, err)
			os.Exit(1)
		}
	}

	if *scenarioDir != "" {
		if _, err := registry.LoadFromDirectory(*scenarioDir); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load directory %s: %v\n", *scenarioDir, err)
			os.Exit(1)
		}
	}

	imported := 0
	for _, sc := range registry.Scenarios() {
		eventList, _ := registry.Events(sc.ID)
		if err := db.CreateScenario(sc, eventList); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to import scenario %s: %v\n", sc.Name, err)
			os.Exit(1)
		}
		fmt.Printf("Imported %s (%s) with %d events\n", sc.Name, sc.ID, len(eventList))
		imported++
	}

	fmt.Printf("\n%d scenario(s) imported into %s\n", imported, *dbPath)
}

func listScenarios(db *database.DB) {
	scenarios, err := db.ListScenarios()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list scenarios: %v\n", err)
		os.Exit(1)
	}

	if len(scenarios) == 0 {
		fmt.Println("No scenarios in database.")
		return
	}

	for _, sc := range scenarios {
		eventList, err := db.GetEventList(sc.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load events for %s: %v\n", sc.Name, err)
			os.Exit(1)
		}
		fmt.Printf("%s  %s  (%d events, created %s)\n",
			sc.ID, sc.Name, len(eventList), sc.CreatedAt.Format("2006-01-02"))
	}
}
