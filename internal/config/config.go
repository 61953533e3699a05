// Package config loads the pipeline's environment-sourced configuration
// (spec §6) into a Config struct composed of one sub-config per
// component, following the teacher's composition-over-flat-struct style.
package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config is the root configuration for the worker and operator CLI.
type Config struct {
	Database   DatabaseConfig
	Storage    StorageConfig
	Remote     RemoteConfig
	FaceEngine FaceEngineConfig
	Cluster    ClusterConfig
	Match      MatchConfig
	Worker     WorkerConfig
}

// DatabaseConfig is the relational backend DSN and pool sizing.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// StorageConfig is the filesystem root for selfies and thumbnails (4.A).
type StorageConfig struct {
	Root               string
	ThumbnailMaxSize   int
	SelfieRetention    time.Duration
}

// RemoteConfig configures the Remote Folder Client (4.B).
type RemoteConfig struct {
	APIKey        string
	MaxSyncImages int // 0 means unlimited
}

// FaceEngineConfig configures the Face Engine (4.C).
type FaceEngineConfig struct {
	ServiceURL        string // sidecar embedding-service base URL
	ModelCacheDir      string
	DetSize            int
	DetScoreThreshold  float64
	MinFaceRatio       float64
	MinSharpness       float64
	MaxFacesPerImage   int
	ResizeMaxSide      int
	EnableFallback     bool
}

// ClusterConfig configures the Clusterer (4.E).
type ClusterConfig struct {
	Eps        float64
	MinSamples int
}

// MatchConfig configures the Matcher (4.F).
type MatchConfig struct {
	ThresholdPercent  float64
	TopMargin         float64
	AutoRelaxDrop     float64
	AutoRelaxMinThreshold float64

	// ApproxPreFilterMinFaces is the event face count above which the
	// Matcher builds an ephemeral HNSW graph to narrow the candidate
	// set before the exact cosine pass. 0 disables the pre-filter, and
	// events below this size always go straight to the exact scan.
	ApproxPreFilterMinFaces int
	// ApproxPreFilterCandidates is how many approximate nearest faces
	// to keep per pre-filter search, widened well past max_results so
	// the exact pass still sees every photo a genuine match could land
	// on.
	ApproxPreFilterCandidates int
}

// WorkerConfig configures the Worker / Pipeline Driver (4.H).
type WorkerConfig struct {
	PollInterval        time.Duration
	IdleSleep            time.Duration
	Concurrency          int
	AutoSyncEnabled      bool
	AutoSyncInterval     time.Duration
	AutoSyncBatchSize    int
}

// AdaptiveDefaults mirrors the small embedded tuning table the teacher
// keeps as prices.yaml for AI model pricing; here it holds the
// matching/clustering defaults named in spec §9 as "config, not
// constants". The table is compiled into the binary; operators override
// individual values through the environment variables Load reads.
type AdaptiveDefaults struct {
	ClusterEps            float64 `yaml:"cluster_eps"`
	ClusterMinSamples     int     `yaml:"cluster_min_samples"`
	ThresholdPercent      float64 `yaml:"face_similarity_threshold_percent"`
	TopMargin             float64 `yaml:"face_top_margin"`
	AutoRelaxDrop         float64 `yaml:"face_auto_relax_drop"`
	AutoRelaxMinThreshold float64 `yaml:"face_auto_relax_min_threshold"`
}

// envInt reads an environment variable and parses it as an integer,
// falling back to defaultVal when unset, empty or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envDurationSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(envInt(key, defaultSeconds)) * time.Second
}

// Load reads configuration from the environment, falling back to the
// defaults recorded in defaults.yaml and in original_source/config.py.
func Load() *Config {
	var defaults AdaptiveDefaults
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          envString("DATABASE_URL", ""),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Storage: StorageConfig{
			Root:             envString("STORAGE_ROOT", "storage"),
			ThumbnailMaxSize: envInt("THUMBNAIL_MAX_SIZE", 1200),
			SelfieRetention:  time.Duration(envInt("SELFIE_RETENTION_HOURS", 24)) * time.Hour,
		},
		Remote: RemoteConfig{
			APIKey:        envString("GOOGLE_DRIVE_API_KEY", envString("GOOGLE_API_KEY", "")),
			MaxSyncImages: envInt("MAX_SYNC_IMAGES", 5000),
		},
		FaceEngine: FaceEngineConfig{
			ServiceURL:       envString("FACE_ENGINE_URL", "http://localhost:8800"),
			ModelCacheDir:    envString("FACE_MODEL_CACHE_DIR", "~/.cache/grabpic-face-models"),
			DetSize:          envInt("FACE_DET_SIZE", 640),
			DetScoreThreshold: envFloat("FACE_DET_SCORE_THRESHOLD", 0.78),
			MinFaceRatio:     envFloat("FACE_MIN_FACE_RATIO", 0.0014),
			MinSharpness:     envFloat("FACE_MIN_SHARPNESS", 10.0),
			MaxFacesPerImage: envInt("FACE_MAX_FACES_PER_IMAGE", 26),
			ResizeMaxSide:    envInt("FACE_RESIZE_MAX_SIDE", 2200),
			EnableFallback:   envBool("ENABLE_ML_FALLBACK", true),
		},
		Cluster: ClusterConfig{
			Eps:        envFloat("CLUSTER_EPS", defaults.ClusterEps),
			MinSamples: envInt("CLUSTER_MIN_SAMPLES", defaults.ClusterMinSamples),
		},
		Match: MatchConfig{
			ThresholdPercent:          envFloat("FACE_SIMILARITY_THRESHOLD_PERCENT", defaults.ThresholdPercent),
			TopMargin:                 envFloat("FACE_TOP_MARGIN", defaults.TopMargin),
			AutoRelaxDrop:             envFloat("FACE_AUTO_RELAX_DROP", defaults.AutoRelaxDrop),
			AutoRelaxMinThreshold:     envFloat("FACE_AUTO_RELAX_MIN_THRESHOLD", defaults.AutoRelaxMinThreshold),
			ApproxPreFilterMinFaces:   envInt("FACE_APPROX_PREFILTER_MIN_FACES", 4000),
			ApproxPreFilterCandidates: envInt("FACE_APPROX_PREFILTER_CANDIDATES", 2000),
		},
		Worker: WorkerConfig{
			PollInterval:      envDurationSeconds("JOB_POLL_INTERVAL_SECONDS", 2),
			IdleSleep:         envDurationSeconds("JOB_IDLE_SLEEP_SECONDS", 1),
			Concurrency:       envInt("WORKER_CONCURRENCY", 2),
			AutoSyncEnabled:   envBool("AUTO_SYNC_ENABLED", true),
			AutoSyncInterval:  time.Duration(envInt("AUTO_SYNC_INTERVAL_MINUTES", 5)) * time.Minute,
			AutoSyncBatchSize: envInt("AUTO_SYNC_BATCH_SIZE", 4),
		},
	}
}
