package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Cluster.Eps != 0.32 {
		t.Errorf("expected default cluster eps 0.32, got %f", cfg.Cluster.Eps)
	}
	if cfg.Cluster.MinSamples != 2 {
		t.Errorf("expected default cluster min samples 2, got %d", cfg.Cluster.MinSamples)
	}
	if cfg.Match.ThresholdPercent != 90.0 {
		t.Errorf("expected default threshold 90.0, got %f", cfg.Match.ThresholdPercent)
	}
	if cfg.Match.AutoRelaxMinThreshold != 78.0 {
		t.Errorf("expected default relax floor 78.0, got %f", cfg.Match.AutoRelaxMinThreshold)
	}
	if cfg.Worker.Concurrency != 2 {
		t.Errorf("expected default worker concurrency 2, got %d", cfg.Worker.Concurrency)
	}
	if cfg.Remote.MaxSyncImages != 5000 {
		t.Errorf("expected default max sync images 5000, got %d", cfg.Remote.MaxSyncImages)
	}
}

func TestLoad_ClusterEpsOverride(t *testing.T) {
	t.Setenv("CLUSTER_EPS", "0.5")

	cfg := Load()

	if cfg.Cluster.Eps != 0.5 {
		t.Errorf("expected overridden cluster eps 0.5, got %f", cfg.Cluster.Eps)
	}
}

func TestLoad_InvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "not-a-number")

	cfg := Load()

	if cfg.Worker.Concurrency != 2 {
		t.Errorf("expected fallback to default 2 for invalid input, got %d", cfg.Worker.Concurrency)
	}
}

func TestLoad_MaxSyncImagesZeroMeansUnlimited(t *testing.T) {
	t.Setenv("MAX_SYNC_IMAGES", "0")

	cfg := Load()

	if cfg.Remote.MaxSyncImages != 0 {
		t.Errorf("expected 0 to be preserved (unlimited), got %d", cfg.Remote.MaxSyncImages)
	}
}

func TestLoad_DriveAPIKeyAliasFallback(t *testing.T) {
	t.Setenv("GOOGLE_DRIVE_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "fallback-key")

	cfg := Load()

	if cfg.Remote.APIKey != "fallback-key" {
		t.Errorf("expected GOOGLE_API_KEY fallback, got %q", cfg.Remote.APIKey)
	}
}

func TestLoad_AutoSyncBoolParsing(t *testing.T) {
	t.Setenv("AUTO_SYNC_ENABLED", "false")

	cfg := Load()

	if cfg.Worker.AutoSyncEnabled {
		t.Error("expected auto sync disabled")
	}
}
