package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"

	"taskforge/config"
	"taskforge/db"
	"taskforge/events"
	"taskforge/handlers"
	"taskforge/llm"
	"taskforge/pipeline"
	"taskforge/planner"
	"taskforge/prompts"
	"taskforge/subtasks"
	"taskforge/validation"
)

// stores bundles the persistence surfaces behind the service interfaces
type stores struct {
	*db.TaskStore
	*db.SubtaskStore
	*db.PlanStore
}

func main() {
	config.Initialize()
	cfg := config.Get()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	bus := events.NewBus()
	defer bus.Close()

	store := &stores{
		TaskStore:    db.NewTaskStore(database),
		SubtaskStore: db.NewSubtaskStore(database),
		PlanStore:    db.NewPlanStore(database),
	}

	llmClient := llm.NewClient(cfg)
	promptStore := prompts.NewStore(cfg.PromptsDir)
	validator := validation.NewManager(false)
	contexts := pipeline.NewDBContextStore(db.NewContextStore(database))

	runner := pipeline.NewRunner([]pipeline.Step{
		pipeline.NewTaskUnderstandingStep(llmClient, promptStore),
		pipeline.NewProjectUnderstandingStep(llmClient, promptStore, cfg.ProjectsRoot),
	}, validator, contexts, bus)

	plannerSvc := planner.NewPlanner(store, llmClient, promptStore, contexts, bus)
	subtaskSvc := subtasks.NewService(store, bus)

	// Create a new rweb server with options
	s := rweb.NewServer(rweb.ServerOptions{
		Address: cfg.Address,
		Verbose: true,
	})

	// Add middleware for request logging
	s.Use(rweb.RequestInfo)

	h := handlers.New(cfg, store.TaskStore, subtaskSvc, plannerSvc, runner, contexts, bus)
	h.SetupRoutes(s)

	// Shut down cleanly on interrupt
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Info("Shutting down")
		bus.Close()
		database.Close()
		os.Exit(0)
	}()

	log.Printf("Starting TaskForge server on %s", cfg.Address)
	log.Fatal(s.Run())
}
