package worker

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"pet-aging-server/modules/aging"
	redisClient "pet-aging-server/modules/common/redis"
)

// StartWorker - watch the simulation queue and run jobs. Concurrency is
// bounded so a burst of scans cannot pile up generation API calls.
func StartWorker(service *aging.Service, rdb *redis.Client, concurrency int) {
	log.Println("🔄 Simulation queue worker starting...")

	if concurrency < 1 {
		concurrency = 1
	}
	slots := make(chan struct{}, concurrency)

	log.Printf("👀 Watching queue: %s (concurrency: %d)", redisClient.QueueKey, concurrency)

	ctx := context.Background()

	for {
		// BRPOP - blocking right pop
		result, err := rdb.BRPop(ctx, 0, redisClient.QueueKey).Result()
		if err != nil {
			log.Printf("❌ Redis BRPOP error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		// result[0] is the queue key, result[1] is the scan_id
		scanID := result[1]
		log.Printf("🎯 Received simulation job: %s", scanID)

		slots <- struct{}{}
		go func(id string) {
			defer func() { <-slots }()
			service.ProcessScan(ctx, id)
		}(scanID)
	}
}
