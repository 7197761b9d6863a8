package main

import (
	"log"
	"os"
)

func main() {
	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	os.MkdirAll(cfg.ReportOutputDir, 0755)

	var overlay *DomainOverlay
	if cfg.DomainOverlayPath != "" {
		overlay, err = LoadDomainOverlay(cfg.DomainOverlayPath)
		if err != nil {
			log.Fatalf("Failed to load domain overlay: %v", err)
		}
	}

	gen := NewLLMClient(cfg)
	classifier := NewDomainClassifier(overlay)
	runner := NewCritiqueRunner(gen, cfg.ScoreJitter)
	synth := NewSynthesizer(gen, NewIssueDeduplicator())
	workflow := NewWorkflow(db, classifier, runner, synth, nil)
	notifier := NewNotifier(cfg)
	orch := NewOrchestrator(cfg, db, workflow, notifier)

	StartReviewPoller(cfg, db, orch)
	StartCleanupSweeper(cfg, db)

	log.Println("Starting Manuscript Review Bot...")
	select {}
}
