package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var pricesYAML []byte

type Config struct {
	Store       StoreConfig
	Camera      CameraConfig
	Recognition RecognitionConfig
	Database    DatabaseConfig
	Sightings   SightingsConfig
	OpenAI      OpenAIConfig
	Gemini      GeminiConfig
	Embedding   EmbeddingConfig
	Web         WebConfig
	Prices      PricesConfig
}

type StoreConfig struct {
	Path        string // known-face store file
	SnapshotDir string // directory for sighting snapshot JPEGs
}

type CameraConfig struct {
	Device int // V4L2 device index
	Width  int // requested capture width, 0 keeps the device default
	Height int // requested capture height, 0 keeps the device default
}

type RecognitionConfig struct {
	Threshold   float64 // maximum Euclidean distance for a match
	Scale       float64 // detection downscale factor in (0, 1]
	ModelsDir   string  // dlib model files for the face recognizer
	CascadePath string  // Haar cascade XML for the fast detector
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL for store sync
	MaxOpenConns int    // maximum open connections (default 25)
	MaxIdleConns int    // maximum idle connections (default 5)
	IndexPath    string // path to persist the HNSW index (optional)
}

type SightingsConfig struct {
	Driver   string // "sqlite" (default) or "mysql"
	DSN      string // database file for sqlite, DSN for mysql
	Cooldown int    // seconds before the same person is recorded again
}

type OpenAIConfig struct {
	Token string
	Model string // empty selects the provider default
}

type GeminiConfig struct {
	APIKey string
	Model  string // empty selects the provider default
}

type EmbeddingConfig struct {
	URL string // remote encoder endpoint, e.g. http://localhost:8000
	Dim int    // defaults to 128
}

type WebConfig struct {
	Port int
	Host string
}

type PricesConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

type ModelPricing struct {
	Standard RequestPricing `yaml:"standard"`
	Batch    RequestPricing `yaml:"batch"`
}

type RequestPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envStr reads an environment variable, falling back to a default when unset.
func envStr(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var prices PricesConfig
	if err := yaml.Unmarshal(pricesYAML, &prices); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded prices.yaml: " + err.Error())
	}

	return &Config{
		Store: StoreConfig{
			Path:        envStr("STORE_PATH", "known_faces.dat"),
			SnapshotDir: envStr("SNAPSHOT_DIR", "snapshots"),
		},
		Camera: CameraConfig{
			Device: envInt("CAMERA_DEVICE", 0),
			Width:  envInt("CAMERA_WIDTH", 0),
			Height: envInt("CAMERA_HEIGHT", 0),
		},
		Recognition: RecognitionConfig{
			Threshold:   envFloat("RECOGNITION_THRESHOLD", 0.6),
			Scale:       envFloat("RECOGNITION_SCALE", 0.5),
			ModelsDir:   envStr("MODELS_DIR", "models"),
			CascadePath: os.Getenv("CASCADE_PATH"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			IndexPath:    os.Getenv("HNSW_INDEX_PATH"),
		},
		Sightings: SightingsConfig{
			Driver:   envStr("SIGHTINGS_DRIVER", "sqlite"),
			DSN:      envStr("SIGHTINGS_DSN", "facewatch.db"),
			Cooldown: envInt("SIGHTINGS_COOLDOWN", 30),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
			Model: os.Getenv("OPENAI_MODEL"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  os.Getenv("GEMINI_MODEL"),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", 128),
		},
		Web: WebConfig{
			Port: envInt("WEB_PORT", 8080),
			Host: envStr("WEB_HOST", "0.0.0.0"),
		},
		Prices: prices,
	}
}

// GetModelPricing returns pricing for a specific model, with fallback defaults
func (c *Config) GetModelPricing(modelName string) ModelPricing {
	if pricing, ok := c.Prices.Models[modelName]; ok {
		return pricing
	}
	// Return zero pricing if model not found
	return ModelPricing{}
}
