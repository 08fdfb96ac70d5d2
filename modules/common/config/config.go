package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-backed setting the server uses.
type Config struct {
	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase
	SupabaseURL            string
	SupabaseServiceKey     string
	SupabaseStorageBaseURL string
	StorageBucket          string

	// Gemini API
	GeminiAPIKey string
	GeminiModel  string

	// Server
	Port string

	// Simulation pipeline tunables
	MaxRetries        int           // extra attempts per horizon after the first
	RetryDelay        time.Duration // base inter-attempt delay, grows per attempt
	RequestTimeout    time.Duration // per generation request
	ConnectTimeout    time.Duration // dial timeout to the generation API
	RunTimeout        time.Duration // whole-run wall-clock budget
	WorkerConcurrency int           // concurrent orchestrator runs

	// Image preparation tunables
	PrepareMaxEdge     int           // long-edge pixel cap before downscale
	PrepareJPEGQuality int           // re-encode quality
	PrepareCacheTTL    time.Duration // prepared-image cache lifetime
}

var globalConfig *Config

// LoadConfig reads the environment (and an optional .env file) into the
// global config. Must run before GetConfig.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	useTLS := true
	if tlsStr := os.Getenv("REDIS_USE_TLS"); tlsStr != "" {
		if parsed, err := strconv.ParseBool(tlsStr); err == nil {
			useTLS = parsed
		}
	}

	globalConfig = &Config{
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   useTLS,

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:     getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBaseURL: getEnv("SUPABASE_STORAGE_BASE_URL", ""),
		StorageBucket:          getEnv("STORAGE_BUCKET", "pet-images"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),

		Port: getEnv("PORT", "8080"),

		MaxRetries:        getEnvInt("SIM_MAX_RETRIES", 2),
		RetryDelay:        getEnvSeconds("SIM_RETRY_DELAY_SECONDS", 5),
		RequestTimeout:    getEnvSeconds("SIM_REQUEST_TIMEOUT_SECONDS", 120),
		ConnectTimeout:    getEnvSeconds("SIM_CONNECT_TIMEOUT_SECONDS", 5),
		RunTimeout:        getEnvSeconds("SIM_RUN_TIMEOUT_SECONDS", 420),
		WorkerConcurrency: getEnvInt("SIM_WORKER_CONCURRENCY", 2),

		PrepareMaxEdge:     getEnvInt("PREPARE_MAX_EDGE", 1024),
		PrepareJPEGQuality: getEnvInt("PREPARE_JPEG_QUALITY", 78),
		PrepareCacheTTL:    getEnvSeconds("PREPARE_CACHE_TTL_SECONDS", 600),
	}

	if err := globalConfig.validate(); err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   Redis: %s:%s (TLS: %v)", globalConfig.RedisHost, globalConfig.RedisPort, globalConfig.RedisUseTLS)
	log.Printf("   Supabase: %s (bucket: %s)", globalConfig.SupabaseURL, globalConfig.StorageBucket)
	log.Printf("   Gemini: %s", globalConfig.GeminiModel)
	log.Printf("   Pipeline: retries=%d, run budget=%s, workers=%d",
		globalConfig.MaxRetries, globalConfig.RunTimeout, globalConfig.WorkerConcurrency)

	return globalConfig, nil
}

// GetConfig returns the loaded config.
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

func (c *Config) validate() error {
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Second
}

// GetRedisAddr builds the Redis connection string.
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
