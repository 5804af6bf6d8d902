package config

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/andresuchdata/stocksim/internal/simulation"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Dataset    DatasetConfig
	Simulation SimulationConfig
	Storage    StorageConfig
	Drive      DriveConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL renders the lib/pq connection string. DATABASE_URL, when set, wins.
func (d DatabaseConfig) URL() string {
	if url := viper.GetString("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

type CacheConfig struct {
	Enabled           bool
	RedisURL          string
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	RedisDB           int
	SummaryTTLSeconds int
	KPITTLSeconds     int
}

type DatasetConfig struct {
	// DatasetPath is the canonical inventory CSV.
	DatasetPath string
	// ForecastPath is the optional forecast table; empty means every row is
	// backfilled from demand.
	ForecastPath string
	// DataDir receives staged ingest files; ArtifactsDir receives pipeline
	// output (ledgers, KPI CSVs, SQLite exports).
	DataDir      string
	ArtifactsDir string
	// PolicyDir holds the YAML policy presets.
	PolicyDir        string
	MinHistoryPoints int
}

type SimulationConfig struct {
	LeadTimeDays      int
	SafetyStockFactor float64
	HoldingCostRate   float64
	StockoutCostRate  float64
	FixedOrderCost    float64
	PipelineWorkers   int
}

// Params converts the configured defaults to engine parameters.
func (s SimulationConfig) Params() simulation.Params {
	return simulation.Params{
		LeadTimeDays:      s.LeadTimeDays,
		SafetyStockFactor: s.SafetyStockFactor,
		HoldingCostRate:   s.HoldingCostRate,
		StockoutCostRate:  s.StockoutCostRate,
		OrderCostFixed:    s.FixedOrderCost,
	}
}

type StorageConfig struct {
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		defaults := simulation.DefaultParams()

		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
		viper.SetDefault("ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "stocksim")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_SUMMARY_TTL_SECONDS", 300)
		viper.SetDefault("CACHE_KPI_TTL_SECONDS", 60)
		viper.SetDefault("DATASET_PATH", "./data/retail_store_inventory.csv")
		viper.SetDefault("FORECAST_PATH", "")
		viper.SetDefault("DATA_DIR", "./data")
		viper.SetDefault("ARTIFACTS_DIR", "./data_out")
		viper.SetDefault("POLICY_DIR", "./configs/policies")
		viper.SetDefault("MIN_HISTORY_POINTS", 30)
		viper.SetDefault("PIPELINE_WORKERS", runtime.NumCPU())
		viper.SetDefault("SIM_LEAD_TIME_DAYS", defaults.LeadTimeDays)
		viper.SetDefault("SIM_SAFETY_STOCK_FACTOR", defaults.SafetyStockFactor)
		viper.SetDefault("SIM_HOLDING_COST_RATE", defaults.HoldingCostRate)
		viper.SetDefault("SIM_STOCKOUT_COST_RATE", defaults.StockoutCostRate)
		viper.SetDefault("SIM_FIXED_ORDER_COST", defaults.OrderCostFixed)
		viper.SetDefault("MINIO_ENDPOINT", "")
		viper.SetDefault("MINIO_ACCESS_KEY", "")
		viper.SetDefault("MINIO_SECRET_KEY", "")
		viper.SetDefault("MINIO_BUCKET", "stocksim-artifacts")
		viper.SetDefault("MINIO_USE_SSL", false)
		viper.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
		viper.SetDefault("DRIVE_FOLDER_ID", "")

		// Read from environment variables
		viper.AutomaticEnv()

		// Staged files and artifacts land here; create the dirs up front.
		ensureDir(viper.GetString("DATA_DIR"))
		ensureDir(viper.GetString("ARTIFACTS_DIR"))

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			Cache: CacheConfig{
				Enabled:           viper.GetBool("CACHE_ENABLED"),
				RedisURL:          viper.GetString("REDIS_URL"),
				RedisHost:         viper.GetString("REDIS_HOST"),
				RedisPort:         viper.GetString("REDIS_PORT"),
				RedisPassword:     viper.GetString("REDIS_PASSWORD"),
				RedisDB:           viper.GetInt("REDIS_DB"),
				SummaryTTLSeconds: viper.GetInt("CACHE_SUMMARY_TTL_SECONDS"),
				KPITTLSeconds:     viper.GetInt("CACHE_KPI_TTL_SECONDS"),
			},
			Dataset: DatasetConfig{
				DatasetPath:      viper.GetString("DATASET_PATH"),
				ForecastPath:     viper.GetString("FORECAST_PATH"),
				DataDir:          viper.GetString("DATA_DIR"),
				ArtifactsDir:     viper.GetString("ARTIFACTS_DIR"),
				PolicyDir:        viper.GetString("POLICY_DIR"),
				MinHistoryPoints: viper.GetInt("MIN_HISTORY_POINTS"),
			},
			Simulation: SimulationConfig{
				LeadTimeDays:      viper.GetInt("SIM_LEAD_TIME_DAYS"),
				SafetyStockFactor: viper.GetFloat64("SIM_SAFETY_STOCK_FACTOR"),
				HoldingCostRate:   viper.GetFloat64("SIM_HOLDING_COST_RATE"),
				StockoutCostRate:  viper.GetFloat64("SIM_STOCKOUT_COST_RATE"),
				FixedOrderCost:    viper.GetFloat64("SIM_FIXED_ORDER_COST"),
				PipelineWorkers:   viper.GetInt("PIPELINE_WORKERS"),
			},
			Storage: StorageConfig{
				MinIOEndpoint:  viper.GetString("MINIO_ENDPOINT"),
				MinIOAccessKey: viper.GetString("MINIO_ACCESS_KEY"),
				MinIOSecretKey: viper.GetString("MINIO_SECRET_KEY"),
				MinIOBucket:    viper.GetString("MINIO_BUCKET"),
				MinIOUseSSL:    viper.GetBool("MINIO_USE_SSL"),
			},
			Drive: DriveConfig{
				CredentialsJSON: viper.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
				FolderID:        viper.GetString("DRIVE_FOLDER_ID"),
			},
		}
	})

	return instance
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
