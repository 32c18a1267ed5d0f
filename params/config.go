package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Kafka struct {
	Brokers []string
	Topic   string
	GroupID string
}

type Storage struct {
	PebblePath string
	WALPath    string
	// WALReplay rebuilds the book by resubmitting the journal instead
	// of restoring the snapshot. Recovery path for a missing or
	// corrupt snapshot.
	WALReplay bool
}

type Config struct {
	// AssetSymbol names the single instrument this engine matches.
	AssetSymbol string
	// PositionLimits caps net positions per asset; assets without an
	// entry are unbounded.
	PositionLimits map[string]int64

	Kafka   Kafka
	Storage Storage

	APIAddr string
	LogFile string
}

func Default() Config {
	return Config{
		AssetSymbol:    "asset_1",
		PositionLimits: map[string]int64{"asset_1": 100},
		Kafka: Kafka{
			Brokers: []string{"localhost:9092"},
			Topic:   "orders",
			GroupID: "matchd",
		},
		Storage: Storage{
			PebblePath: "data/matchbook",
			WALPath:    "data/orders.wal",
		},
		APIAddr: ":8080",
		LogFile: "data/matchd.log",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("ASSET_SYMBOL"); v != "" {
		cfg.AssetSymbol = v
	}
	if v := os.Getenv("POSITION_LIMITS"); v != "" {
		// Example: "asset_1=100,asset_2=250"
		cfg.PositionLimits = parseLimits(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("KAFKA_GROUP_ID"); v != "" {
		cfg.Kafka.GroupID = v
	}
	if v := os.Getenv("PEBBLE_PATH"); v != "" {
		cfg.Storage.PebblePath = v
	}
	if v := os.Getenv("WAL_PATH"); v != "" {
		cfg.Storage.WALPath = v
	}
	if v := os.Getenv("WAL_REPLAY"); v != "" {
		cfg.Storage.WALReplay = v == "true"
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}

	return cfg
}

func parseLimits(s string) map[string]int64 {
	out := make(map[string]int64)
	for _, pair := range strings.Split(s, ",") {
		asset, limit, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(limit, 10, 64)
		if err != nil {
			continue
		}
		out[asset] = n
	}
	return out
}
