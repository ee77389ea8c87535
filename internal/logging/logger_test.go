package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLoggingState() {
	CloseAll()
	CloseAudit()
	loggers = make(map[Category]*Logger)
	logsDir = ""
	workspace = ""
	config = loggingConfig{}
	configLoaded = false
	auditLogger = nil
}

func writeTestConfig(t *testing.T, tempDir, content string) {
	t.Helper()
	configDir := filepath.Join(tempDir, ".semsearch")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.json"), []byte(content), 0644))
}

func TestAllCategoriesLog(t *testing.T) {
	tempDir := t.TempDir()
	writeTestConfig(t, tempDir, `{
		"logging": {
			"level": "debug",
			"debug_mode": true,
			"categories": {
				"boot": true, "cli": true, "parse": true, "embedding": true,
				"vectorstore": true, "ranker": true, "sona": true,
				"indexer": true, "watcher": true, "server": true, "descriptions": true
			}
		}
	}`)

	resetLoggingState()
	require.NoError(t, Initialize(tempDir))
	assert.True(t, IsDebugMode())

	categories := []Category{
		CategoryBoot, CategoryCLI, CategoryParse, CategoryEmbedding,
		CategoryVectorStore, CategoryRanker, CategorySona,
		CategoryIndexer, CategoryWatcher, CategoryServer, CategoryDescriptions,
	}

	for _, cat := range categories {
		assert.True(t, IsCategoryEnabled(cat), "category %s should be enabled", cat)
		logger := Get(cat)
		logger.Info("info for %s", cat)
		logger.Debug("debug for %s", cat)
		logger.Warn("warn for %s", cat)
		logger.Error("error for %s", cat)
	}

	Boot("boot log")
	CLI("cli log")
	Parse("parse log")
	Embedding("embedding log")
	VectorStore("vectorstore log")
	Ranker("ranker log")
	Sona("sona log")
	Indexer("indexer log")
	Watcher("watcher log")
	Server("server log")
	Descriptions("descriptions log")

	CloseAll()
	CloseAudit()

	logsPath := filepath.Join(tempDir, ".semsearch", "logs")
	entries, err := os.ReadDir(logsPath)
	require.NoError(t, err)

	for _, cat := range categories {
		found := false
		for _, entry := range entries {
			if strings.Contains(entry.Name(), string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(logsPath, entry.Name()))
				require.NoError(t, err)
				assert.NotEmpty(t, content, "log file for %s should not be empty", cat)
				break
			}
		}
		assert.True(t, found, "expected a log file for category %s", cat)
	}
}

func TestDebugModeDisabled(t *testing.T) {
	tempDir := t.TempDir()
	writeTestConfig(t, tempDir, `{
		"logging": {
			"level": "debug",
			"debug_mode": false,
			"categories": {"boot": true, "indexer": true}
		}
	}`)

	resetLoggingState()
	require.NoError(t, Initialize(tempDir))
	assert.False(t, IsDebugMode())

	for _, cat := range []Category{CategoryBoot, CategoryIndexer, CategoryParse} {
		assert.False(t, IsCategoryEnabled(cat), "category %s should be disabled in production mode", cat)
	}

	Boot("should not be logged")
	Indexer("should not be logged")

	logger := Get(CategoryBoot)
	logger.Info("should not be logged")
	logger.Error("should not be logged")

	CloseAll()
	CloseAudit()

	logsPath := filepath.Join(tempDir, ".semsearch", "logs")
	if entries, err := os.ReadDir(logsPath); err == nil {
		assert.Empty(t, entries, "expected no log files in production mode")
	}
}

func TestCategoryToggle(t *testing.T) {
	tempDir := t.TempDir()
	writeTestConfig(t, tempDir, `{
		"logging": {
			"level": "debug",
			"debug_mode": true,
			"categories": {"boot": true, "indexer": true, "watcher": false, "parse": false}
		}
	}`)

	resetLoggingState()
	require.NoError(t, Initialize(tempDir))

	assert.True(t, IsCategoryEnabled(CategoryBoot))
	assert.True(t, IsCategoryEnabled(CategoryIndexer))
	assert.False(t, IsCategoryEnabled(CategoryWatcher))
	assert.False(t, IsCategoryEnabled(CategoryParse))
	assert.True(t, IsCategoryEnabled(CategorySona), "category not in config should default to enabled")

	Boot("should be logged")
	Indexer("should be logged")
	Watcher("should not be logged")
	Parse("should not be logged")
	Sona("should be logged")

	CloseAll()
	CloseAudit()

	logsPath := filepath.Join(tempDir, ".semsearch", "logs")
	entries, err := os.ReadDir(logsPath)
	require.NoError(t, err)

	var hasBoot, hasIndexer, hasWatcher, hasParse bool
	for _, e := range entries {
		name := e.Name()
		hasBoot = hasBoot || strings.Contains(name, "boot")
		hasIndexer = hasIndexer || strings.Contains(name, "indexer")
		hasWatcher = hasWatcher || strings.Contains(name, "watcher")
		hasParse = hasParse || strings.Contains(name, "parse")
	}

	assert.True(t, hasBoot)
	assert.True(t, hasIndexer)
	assert.False(t, hasWatcher, "watcher log should not exist when disabled")
	assert.False(t, hasParse, "parse log should not exist when disabled")
}

func TestTimerLogging(t *testing.T) {
	tempDir := t.TempDir()
	writeTestConfig(t, tempDir, `{"logging": {"level": "debug", "debug_mode": true}}`)

	resetLoggingState()
	require.NoError(t, Initialize(tempDir))

	timer := StartTimer(CategoryIndexer, "TestOperation")
	time.Sleep(time.Millisecond)
	elapsed := timer.Stop()

	assert.Greater(t, elapsed, time.Duration(0))

	CloseAll()
	CloseAudit()
}
