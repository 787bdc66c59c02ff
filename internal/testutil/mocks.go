// Package testutil holds the hand-written mocks shared by package tests.
package testutil

import (
	"context"
	"time"

	autherrors "github.com/MichaelAJay/go-auth/errors"
	"github.com/MichaelAJay/go-cache"
	"github.com/MichaelAJay/go-config"
	"github.com/MichaelAJay/go-logger"
	"github.com/MichaelAJay/go-metrics"
)

// LogCall records a single logger invocation.
type LogCall struct {
	Level   string
	Message string
	Fields  []logger.Field
}

// MockLogger records every log call.
type MockLogger struct {
	Calls []LogCall
}

func (m *MockLogger) log(level, msg string, fields []logger.Field) {
	m.Calls = append(m.Calls, LogCall{Level: level, Message: msg, Fields: fields})
}

func (m *MockLogger) Debug(msg string, fields ...logger.Field) { m.log("DEBUG", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...logger.Field)  { m.log("INFO", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...logger.Field)  { m.log("WARN", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...logger.Field) { m.log("ERROR", msg, fields) }
func (m *MockLogger) Fatal(msg string, fields ...logger.Field) { m.log("FATAL", msg, fields) }

func (m *MockLogger) With(fields ...logger.Field) logger.Logger {
	return m
}

func (m *MockLogger) WithContext(ctx context.Context) logger.Logger {
	return m
}

// Count returns how many calls were made at level.
func (m *MockLogger) Count(level string) int {
	n := 0
	for _, c := range m.Calls {
		if c.Level == level {
			n++
		}
	}
	return n
}

// MockMetrics is a metrics.Registry that keeps one metric per name.
type MockMetrics struct {
	counters   map[string]*MockCounter
	timers     map[string]*MockTimer
	gauges     map[string]*MockGauge
	histograms map[string]*MockHistogram
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		counters:   make(map[string]*MockCounter),
		timers:     make(map[string]*MockTimer),
		gauges:     make(map[string]*MockGauge),
		histograms: make(map[string]*MockHistogram),
	}
}

func (m *MockMetrics) Counter(opts metrics.Options) metrics.Counter {
	if c, ok := m.counters[opts.Name]; ok {
		return c
	}
	c := &MockCounter{name: opts.Name}
	m.counters[opts.Name] = c
	return c
}

func (m *MockMetrics) Timer(opts metrics.Options) metrics.Timer {
	if t, ok := m.timers[opts.Name]; ok {
		return t
	}
	t := &MockTimer{name: opts.Name}
	m.timers[opts.Name] = t
	return t
}

func (m *MockMetrics) Gauge(opts metrics.Options) metrics.Gauge {
	if g, ok := m.gauges[opts.Name]; ok {
		return g
	}
	g := &MockGauge{name: opts.Name}
	m.gauges[opts.Name] = g
	return g
}

func (m *MockMetrics) Histogram(opts metrics.Options) metrics.Histogram {
	if h, ok := m.histograms[opts.Name]; ok {
		return h
	}
	h := &MockHistogram{name: opts.Name}
	m.histograms[opts.Name] = h
	return h
}

func (m *MockMetrics) Unregister(name string) {
	delete(m.counters, name)
	delete(m.timers, name)
	delete(m.gauges, name)
	delete(m.histograms, name)
}

func (m *MockMetrics) Each(fn func(metrics.Metric)) {
	for _, c := range m.counters {
		fn(c)
	}
	for _, t := range m.timers {
		fn(t)
	}
	for _, g := range m.gauges {
		fn(g)
	}
	for _, h := range m.histograms {
		fn(h)
	}
}

// CounterValue returns the value of the named counter, or 0 if never created.
func (m *MockMetrics) CounterValue(name string) float64 {
	if c, ok := m.counters[name]; ok {
		return c.value
	}
	return 0
}

type MockCounter struct {
	name  string
	value float64
}

func (c *MockCounter) Inc()                                   { c.value++ }
func (c *MockCounter) Add(value float64)                      { c.value += value }
func (c *MockCounter) With(tags metrics.Tags) metrics.Counter { return c }
func (c *MockCounter) Name() string                           { return c.name }
func (c *MockCounter) Description() string                    { return "" }
func (c *MockCounter) Type() metrics.Type                     { return metrics.TypeCounter }
func (c *MockCounter) Tags() metrics.Tags                     { return metrics.Tags{} }

type MockTimer struct {
	name      string
	durations []time.Duration
}

func (t *MockTimer) Record(d time.Duration)      { t.durations = append(t.durations, d) }
func (t *MockTimer) RecordSince(start time.Time) { t.Record(time.Since(start)) }
func (t *MockTimer) Time(fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	t.Record(d)
	return d
}
func (t *MockTimer) With(tags metrics.Tags) metrics.Timer { return t }
func (t *MockTimer) Name() string                         { return t.name }
func (t *MockTimer) Description() string                  { return "" }
func (t *MockTimer) Type() metrics.Type                   { return metrics.TypeTimer }
func (t *MockTimer) Tags() metrics.Tags                   { return metrics.Tags{} }

type MockGauge struct {
	name  string
	value float64
}

func (g *MockGauge) Set(value float64)                    { g.value = value }
func (g *MockGauge) Add(value float64)                    { g.value += value }
func (g *MockGauge) Inc()                                 { g.value++ }
func (g *MockGauge) Dec()                                 { g.value-- }
func (g *MockGauge) With(tags metrics.Tags) metrics.Gauge { return g }
func (g *MockGauge) Name() string                         { return g.name }
func (g *MockGauge) Description() string                  { return "" }
func (g *MockGauge) Type() metrics.Type                   { return metrics.TypeGauge }
func (g *MockGauge) Tags() metrics.Tags                   { return metrics.Tags{} }

type MockHistogram struct {
	name   string
	values []float64
}

func (h *MockHistogram) Observe(value float64)                    { h.values = append(h.values, value) }
func (h *MockHistogram) With(tags metrics.Tags) metrics.Histogram { return h }
func (h *MockHistogram) Name() string                             { return h.name }
func (h *MockHistogram) Description() string                      { return "" }
func (h *MockHistogram) Type() metrics.Type                       { return metrics.TypeHistogram }
func (h *MockHistogram) Tags() metrics.Tags                       { return metrics.Tags{} }

// MockConfig is a map-backed config.Config.
type MockConfig struct {
	data map[string]any
}

func NewMockConfig(values map[string]any) *MockConfig {
	data := make(map[string]any, len(values))
	for k, v := range values {
		data[k] = v
	}
	return &MockConfig{data: data}
}

func (m *MockConfig) Get(key string) (any, bool) {
	val, ok := m.data[key]
	return val, ok
}

func (m *MockConfig) GetString(key string) (string, bool) {
	if s, ok := m.data[key].(string); ok {
		return s, true
	}
	return "", false
}

func (m *MockConfig) GetInt(key string) (int, bool) {
	if i, ok := m.data[key].(int); ok {
		return i, true
	}
	return 0, false
}

func (m *MockConfig) GetBool(key string) (bool, bool) {
	if b, ok := m.data[key].(bool); ok {
		return b, true
	}
	return false, false
}

func (m *MockConfig) GetFloat(key string) (float64, bool) {
	if f, ok := m.data[key].(float64); ok {
		return f, true
	}
	return 0, false
}

func (m *MockConfig) GetStringSlice(key string) ([]string, bool) {
	if ss, ok := m.data[key].([]string); ok {
		return ss, true
	}
	return nil, false
}

func (m *MockConfig) Set(key string, value any) error {
	m.data[key] = value
	return nil
}

func (m *MockConfig) Load(source config.Source) error {
	return nil
}

func (m *MockConfig) Validate() error {
	return nil
}

// MockCache is a map-backed cache.Cache that ignores TTLs.
type MockCache struct {
	data   map[string]any
	SetErr error
}

func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string]any)}
}

func (m *MockCache) Get(ctx context.Context, key string) (any, bool, error) {
	if val, ok := m.data[key]; ok {
		return val, true, nil
	}
	return nil, false, autherrors.ErrCacheMiss
}

func (m *MockCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.data[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *MockCache) Clear(ctx context.Context) error {
	m.data = make(map[string]any)
	return nil
}

func (m *MockCache) Has(ctx context.Context, key string) bool {
	_, ok := m.data[key]
	return ok
}

func (m *MockCache) GetKeys(ctx context.Context) []string {
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys
}

func (m *MockCache) Close() error {
	return nil
}

func (m *MockCache) GetMany(ctx context.Context, keys []string) (map[string]any, error) {
	values := make(map[string]any, len(keys))
	for _, key := range keys {
		if val, ok := m.data[key]; ok {
			values[key] = val
		}
	}
	return values, nil
}

func (m *MockCache) SetMany(ctx context.Context, items map[string]any, ttl time.Duration) error {
	for key, value := range items {
		m.data[key] = value
	}
	return nil
}

func (m *MockCache) DeleteMany(ctx context.Context, keys []string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *MockCache) GetMetadata(ctx context.Context, key string) (*cache.CacheEntryMetadata, error) {
	return nil, nil
}

func (m *MockCache) GetManyMetadata(ctx context.Context, keys []string) (map[string]*cache.CacheEntryMetadata, error) {
	return nil, nil
}

func (m *MockCache) GetMetrics() *cache.CacheMetricsSnapshot {
	return nil
}

// MockEncrypter hashes by prefixing a fixed marker so tests can assert delegation.
type MockEncrypter struct {
	HashErr     error
	VerifyErr   error
	HashCalls   int
	VerifyCalls int
}

const mockHashPrefix = "mockhash:"

func (m *MockEncrypter) Encrypt(data []byte) ([]byte, error)                        { return data, nil }
func (m *MockEncrypter) EncryptWithAAD(data, additionalData []byte) ([]byte, error) { return data, nil }
func (m *MockEncrypter) Decrypt(data []byte) ([]byte, error)                        { return data, nil }
func (m *MockEncrypter) DecryptWithAAD(data, additionalData []byte) ([]byte, error) { return data, nil }
func (m *MockEncrypter) HashLookupData(data []byte) []byte                          { return data }
func (m *MockEncrypter) GetKeyVersion() string                                      { return "v1" }

func (m *MockEncrypter) HashPassword(password []byte) ([]byte, error) {
	m.HashCalls++
	if m.HashErr != nil {
		return nil, m.HashErr
	}
	return append([]byte(mockHashPrefix), password...), nil
}

func (m *MockEncrypter) VerifyPassword(hashedPassword, password []byte) (bool, error) {
	m.VerifyCalls++
	if m.VerifyErr != nil {
		return false, m.VerifyErr
	}
	return string(hashedPassword) == mockHashPrefix+string(password), nil
}
