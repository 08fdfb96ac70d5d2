package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"pet-aging-server/modules/aging"
	"pet-aging-server/modules/common/config"
	"pet-aging-server/modules/common/database"
	"pet-aging-server/modules/common/gemini"
	redisClient "pet-aging-server/modules/common/redis"
	"pet-aging-server/modules/common/storage"
	"pet-aging-server/modules/worker"
)

// CORS middleware
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Health check endpoint
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "pet-aging-server",
	})
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Shared infrastructure
	rdb := redisClient.Connect(cfg)
	if rdb == nil {
		log.Fatal("❌ Failed to connect to Redis")
	}

	dbClient := database.NewClient()
	if dbClient == nil {
		log.Fatal("❌ Failed to initialize Database client")
	}

	storageClient := storage.NewClient()

	geminiClient := gemini.NewClient(context.Background())
	if geminiClient == nil {
		log.Fatal("❌ Failed to initialize Gemini client")
	}

	// Simulation pipeline
	cache := redisClient.NewCache(rdb)
	queue := redisClient.NewQueue(rdb)
	gate := redisClient.NewGate(rdb)

	preparer := aging.NewPreparer(storageClient, cache, cfg.PrepareMaxEdge, cfg.PrepareJPEGQuality, cfg.PrepareCacheTTL)

	service := aging.NewService(dbClient, storageClient, preparer, geminiClient, queue, gate, aging.Tunables{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		RunTimeout: cfg.RunTimeout,
	})

	// Queue worker (background)
	go worker.StartWorker(service, rdb, cfg.WorkerConcurrency)

	// Router
	r := mux.NewRouter()
	r.Use(enableCORS)

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")

	handler := aging.NewHandler(service)
	handler.RegisterRoutes(r)
	handler.RegisterWatchRoutes(r)

	log.Printf("🚀 Pet Aging Server starting on port %s", cfg.Port)
	log.Printf("❤️  Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("📡 Watch endpoint: ws://localhost:%s/simulations/watch/{scanId}", cfg.Port)

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
