package main

import (
	"context"
	"flag"
	"log"
	"os"

	"CryptoFactors/internal/di"
	"CryptoFactors/internal/domain/models"
	"CryptoFactors/internal/ingest"
	"CryptoFactors/internal/scheduler"
	"CryptoFactors/pkg/config"
)

// CSV backfill loader: reads tick files, pushes them through the configured
// ingest backend, and optionally drains the processing queue in place.
func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	file := flag.String("file", "", "csv file to ingest")
	dir := flag.String("dir", "", "directory of csv files to ingest")
	process := flag.Bool("process", false, "process all enqueued dates after ingesting")
	flag.Parse()

	if *file == "" && *dir == "" {
		log.Fatal("either -file or -dir is required")
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	l, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	m := di.ProvideMetrics()
	stores, err := di.ProvideStores(cfg, l)
	if err != nil {
		log.Fatalf("stores init failed: %v", err)
	}
	producer, err := di.ProvideKafkaProducer(cfg)
	if err != nil {
		log.Fatalf("kafka producer init failed: %v", err)
	}
	pub := di.ProvideTickPublisher(producer, cfg)
	ingestor := di.ProvideTickIngestor(pub, stores, m, l, cfg)
	defer ingestor.Close()

	reader := ingest.NewCSVReader(l)
	var ticks []models.PriceTick
	if *file != "" {
		ticks, err = reader.ReadFile(*file)
	} else {
		ticks, err = reader.ReadDir(*dir)
	}
	if err != nil {
		log.Fatalf("csv read failed: %v", err)
	}

	ctx := context.Background()
	const chunk = 5000
	for start := 0; start < len(ticks); start += chunk {
		end := start + chunk
		if end > len(ticks) {
			end = len(ticks)
		}
		if err := ingestor.IngestBatch(ctx, ticks[start:end]); err != nil {
			log.Fatalf("ingest failed: %v", err)
		}
	}
	log.Printf("ingested %d ticks", len(ticks))

	if !*process {
		return
	}

	daily := di.ProvideDailyAggregator(stores, m, l)
	windows := di.ProvideWindowAggregator(stores, m, l)
	reconciler := di.ProvideReconciler(stores, m, l)
	processor := di.ProvideDateProcessor(daily, windows, reconciler, stores, m, l, cfg)
	sched := scheduler.New(processor, stores.Queue, 0, nil, l)

	for {
		pending, err := stores.Queue.Pending(ctx)
		if err != nil {
			log.Fatalf("queue read failed: %v", err)
		}
		if len(pending) == 0 {
			break
		}
		outcome, err := sched.RunOnce(ctx)
		if err != nil {
			log.Printf("processing error: %v", err)
			os.Exit(1)
		}
		log.Printf("processed %s: inserted=%d updated=%d symbol_errors=%d",
			outcome.Date, outcome.Inserted, outcome.Updated, outcome.SymbolErrors)
	}
	log.Printf("queue drained")
}
