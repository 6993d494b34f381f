package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func resetLogging(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { install(zap.NewNop(), Options{}) })
}

// TestAllCategoriesLog tests that every category writes to the output file when debug_mode is true
func TestAllCategoriesLog(t *testing.T) {
	resetLogging(t)
	logPath := filepath.Join(t.TempDir(), "demski.log")

	require.NoError(t, Initialize(Options{Level: "debug", Format: "json", DebugMode: true, OutputPath: logPath}))
	assert.True(t, IsDebugMode())

	for _, cat := range AllCategories {
		assert.True(t, IsCategoryEnabled(cat), "category %s should be enabled", cat)
		logger := Get(cat)
		logger.Info("Test info message for %s", cat)
		logger.Debug("Test debug message for %s", cat)
	}
	Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	for _, cat := range AllCategories {
		assert.Contains(t, string(content), `"logger":"`+string(cat)+`"`)
		assert.Contains(t, string(content), "Test debug message for "+string(cat))
	}
}

// TestDebugModeDisabled tests that only warnings get through when debug_mode is false
func TestDebugModeDisabled(t *testing.T) {
	resetLogging(t)
	logPath := filepath.Join(t.TempDir(), "prod.log")
	require.NoError(t, Initialize(Options{Level: "debug", DebugMode: false, OutputPath: logPath}))
	assert.False(t, IsDebugMode())

	Sampler("This should NOT be logged")
	SamplerDebug("This should NOT be logged")
	SamplerWarn("rejection streak")
	Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "NOT be logged")
	assert.Contains(t, string(content), "rejection streak")
}

// TestCategoryToggle tests individual category enable/disable
func TestCategoryToggle(t *testing.T) {
	resetLogging(t)
	core, logs := observer.New(zapcore.DebugLevel)
	InitializeWithCore(core, Options{
		DebugMode:  true,
		Categories: map[string]bool{"sampler": true, "oracle": false},
	})

	assert.True(t, IsCategoryEnabled(CategorySampler))
	assert.False(t, IsCategoryEnabled(CategoryOracle))
	assert.True(t, IsCategoryEnabled(CategoryStore), "unlisted categories default to enabled")

	Sampler("sampler message")
	OracleWarn("oracle message")
	Store("store message")

	var names []string
	for _, e := range logs.All() {
		names = append(names, e.LoggerName)
	}
	assert.Equal(t, []string{"sampler", "store"}, names)
}

func TestLoggerWithFields(t *testing.T) {
	resetLogging(t)
	core, logs := observer.New(zapcore.InfoLevel)
	InitializeWithCore(core, Options{DebugMode: true})

	Get(CategoryEngine).With("run", "abc").Info("done in %d iterations", 12)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "done in 12 iterations", entry.Message)
	assert.Equal(t, "abc", entry.ContextMap()["run"])
}

func TestTimerThreshold(t *testing.T) {
	resetLogging(t)
	core, logs := observer.New(zapcore.DebugLevel)
	InitializeWithCore(core, Options{DebugMode: true})

	timer := StartTimer(CategorySampler, "iteration")
	time.Sleep(2 * time.Millisecond)
	elapsed := timer.StopWithThreshold(time.Nanosecond)
	assert.GreaterOrEqual(t, elapsed, 2*time.Millisecond)

	warns := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warns, 1)
	assert.True(t, strings.HasPrefix(warns[0].Message, "iteration took"))

	StartTimer(CategorySampler, "fast").StopWithThreshold(time.Hour)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.DebugLevel).Len())
}

func TestInitializeRejectsBadOptions(t *testing.T) {
	resetLogging(t)
	assert.Error(t, Initialize(Options{Level: "loud"}))
	assert.Error(t, Initialize(Options{Format: "xml"}))
}

func TestNoopBeforeInitialize(t *testing.T) {
	resetLogging(t)
	install(zap.NewNop(), Options{})
	assert.NotPanics(t, func() {
		Get(CategoryBoot).Error("nowhere")
		Closure("nowhere")
	})
}
