package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "cl-dev",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "cl-dev" {
		t.Errorf("unexpected firestore project: %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "cl-dev" {
		t.Errorf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.Enabled {
		t.Error("expected pubsub disabled by default")
	}
	if cfg.PubSub.LedgerTopic != defaultLedgerTopic {
		t.Errorf("unexpected default ledger topic: %s", cfg.PubSub.LedgerTopic)
	}
	if cfg.Catalog.GenerationCap != defaultGenerationCap {
		t.Errorf("unexpected default generation cap: %d", cfg.Catalog.GenerationCap)
	}
	if cfg.Inventory.LowStockThreshold != defaultLowStockThreshold {
		t.Errorf("unexpected default low stock threshold: %d", cfg.Inventory.LowStockThreshold)
	}
	if cfg.Inventory.RecentChanges != defaultRecentChanges {
		t.Errorf("unexpected default recent changes: %d", cfg.Inventory.RecentChanges)
	}
	if cfg.Inventory.BulkWorkers != defaultBulkWorkers {
		t.Errorf("unexpected default bulk workers: %d", cfg.Inventory.BulkWorkers)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                   "9090",
		"API_SERVER_READ_TIMEOUT":           "20s",
		"API_SERVER_WRITE_TIMEOUT":          "25s",
		"API_SERVER_IDLE_TIMEOUT":           "2m",
		"API_FIRESTORE_PROJECT_ID":          "cl-prod",
		"API_FIRESTORE_EMULATOR_HOST":       "localhost:8900",
		"API_PUBSUB_PROJECT_ID":             "cl-events",
		"API_PUBSUB_LEDGER_TOPIC":           "stock-ledger",
		"API_PUBSUB_ENABLED":                "true",
		"API_CATALOG_GENERATION_CAP":        "120",
		"API_INVENTORY_LOW_STOCK_THRESHOLD": "3",
		"API_INVENTORY_RECENT_CHANGES":      "25",
		"API_INVENTORY_BULK_WORKERS":        "4",
		"API_INVENTORY_BULK_MAX_ITEMS":      "50",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Firestore.EmulatorHost != "localhost:8900" {
		t.Errorf("unexpected emulator host: %s", cfg.Firestore.EmulatorHost)
	}
	if cfg.PubSub.ProjectID != "cl-events" {
		t.Errorf("unexpected pubsub project: %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.LedgerTopic != "stock-ledger" {
		t.Errorf("unexpected ledger topic: %s", cfg.PubSub.LedgerTopic)
	}
	if !cfg.PubSub.Enabled {
		t.Error("expected pubsub enabled")
	}
	if cfg.Catalog.GenerationCap != 120 {
		t.Errorf("unexpected generation cap: %d", cfg.Catalog.GenerationCap)
	}
	if cfg.Inventory.LowStockThreshold != 3 {
		t.Errorf("unexpected low stock threshold: %d", cfg.Inventory.LowStockThreshold)
	}
	if cfg.Inventory.RecentChanges != 25 {
		t.Errorf("unexpected recent changes: %d", cfg.Inventory.RecentChanges)
	}
	if cfg.Inventory.BulkWorkers != 4 {
		t.Errorf("unexpected bulk workers: %d", cfg.Inventory.BulkWorkers)
	}
	if cfg.Inventory.BulkMaxItems != 50 {
		t.Errorf("unexpected bulk max items: %d", cfg.Inventory.BulkMaxItems)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_FIRESTORE_PROJECT_ID=cl-dot\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "cl-dot" {
		t.Errorf("expected firestore project from dotenv, got %s", cfg.Firestore.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if fields := verr.Fields(); len(fields) != 1 || fields[0] != "Firestore.ProjectID" {
		t.Fatalf("unexpected missing fields %v", fields)
	}
}

func TestLoadInvalidNumericFallsBackToDefault(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID":   "cl-dev",
		"API_CATALOG_GENERATION_CAP": "not-a-number",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Catalog.GenerationCap != defaultGenerationCap {
		t.Errorf("expected fallback generation cap, got %d", cfg.Catalog.GenerationCap)
	}
}

func TestLoadPubSubEnabledRequiresTopic(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "cl-dev",
		"API_PUBSUB_ENABLED":       "true",
		"API_PUBSUB_LEDGER_TOPIC":  "  ",
	}

	_, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if fields := verr.Fields(); len(fields) != 1 || fields[0] != "PubSub.LedgerTopic" {
		t.Fatalf("unexpected missing fields %v", fields)
	}
}
