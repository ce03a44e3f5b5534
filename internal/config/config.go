// v0
// internal/config/config.go
package config

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"nrgchamp/strcontrol/internal/breaker"
	"nrgchamp/strcontrol/internal/flood"
	"nrgchamp/strcontrol/internal/traffic"
)

// Config is the whole runtime configuration. Network integrations stay disabled
// while their address is empty.
type Config struct {
	PropertiesPath string
	LogDir         string
	LogLevel       slog.Level

	// Flood loop
	ZoneID         string
	SensorID       string
	SamplePeriod   time.Duration
	QueueCapacity  int
	IngestDeadline time.Duration
	InvalidEvery   int
	Seed           uint64
	Policy         flood.RiskPolicy

	// Traffic loop
	Intersection string
	Phases       traffic.Phases
	TickPeriod   time.Duration
	TickDeadline time.Duration

	// Integrations
	HTTPBind         string
	KafkaBrokers     []string
	AlertTopicPrefix string
	CommandTopic     string
	CommandGroup     string
	MQTTBroker       string
	MQTTClientID     string
	MQTTTopicPrefix  string
	AlertQueue       int
	AlertTimeout     time.Duration
	Breaker          breaker.Settings
}

// Defaults returns the reference configuration.
func Defaults() *Config {
	return &Config{
		LogDir:           ".",
		LogLevel:         slog.LevelInfo,
		ZoneID:           "Zona-Norte",
		SensorID:         "SEN-001",
		SamplePeriod:     250 * time.Millisecond,
		QueueCapacity:    1000,
		IngestDeadline:   flood.DefaultProcessingDeadline,
		InvalidEvery:     20,
		Policy:           flood.DefaultPolicy(),
		Intersection:     "INT-01",
		Phases:           traffic.DefaultPhases(),
		TickPeriod:       traffic.DefaultTickPeriod,
		TickDeadline:     traffic.DefaultTickDeadline,
		AlertTopicPrefix: "flood.alerts",
		CommandTopic:     "strcontrol.commands",
		CommandGroup:     "strcontrol",
		MQTTClientID:     "strcontrol",
		MQTTTopicPrefix:  "strcontrol",
		AlertQueue:       256,
		AlertTimeout:     5 * time.Second,
		Breaker:          breaker.DefaultSettings(),
	}
}

// Load starts from Defaults, applies the properties file named by STR_PROPERTIES
// when set, then environment overrides, and validates the result.
func Load(log *slog.Logger) (*Config, error) {
	c := Defaults()
	c.PropertiesPath = os.Getenv("STR_PROPERTIES")
	if c.PropertiesPath != "" {
		props, err := loadProps(c.PropertiesPath)
		if err != nil {
			return nil, err
		}
		c.applyProps(props, log)
	}
	if err := c.applyEnv(log); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyProps(p map[string]string, log *slog.Logger) {
	c.ZoneID = gets(p, "zoneId", c.ZoneID)
	c.SensorID = gets(p, "sensorId", c.SensorID)
	c.SamplePeriod = getd(p, "sample_period", c.SamplePeriod, log)
	c.QueueCapacity = geti(p, "queue_capacity", c.QueueCapacity, log)
	c.IngestDeadline = getd(p, "ingest_deadline", c.IngestDeadline, log)
	c.InvalidEvery = geti(p, "invalid_every", c.InvalidEvery, log)
	c.Seed = uint64(geti(p, "seed", int(c.Seed), log))

	c.Policy.Water.Vigilancia = getf(p, "water.vigilancia", c.Policy.Water.Vigilancia, log)
	c.Policy.Water.Alerta = getf(p, "water.alerta", c.Policy.Water.Alerta, log)
	c.Policy.Water.Emergencia = getf(p, "water.emergencia", c.Policy.Water.Emergencia, log)
	c.Policy.Rain.Vigilancia = getf(p, "rain.vigilancia", c.Policy.Rain.Vigilancia, log)
	c.Policy.Rain.Alerta = getf(p, "rain.alerta", c.Policy.Rain.Alerta, log)
	c.Policy.Rain.Emergencia = getf(p, "rain.emergencia", c.Policy.Rain.Emergencia, log)

	c.Intersection = gets(p, "intersection", c.Intersection)
	c.Phases.Verde = getd(p, "dwell.verde", c.Phases.Verde, log)
	c.Phases.Amarillo = getd(p, "dwell.amarillo", c.Phases.Amarillo, log)
	c.Phases.Rojo = getd(p, "dwell.rojo", c.Phases.Rojo, log)
	c.TickPeriod = getd(p, "tick_period", c.TickPeriod, log)
	c.TickDeadline = getd(p, "tick_deadline", c.TickDeadline, log)

	c.AlertQueue = geti(p, "alert_queue", c.AlertQueue, log)
	c.AlertTimeout = getd(p, "alert_timeout", c.AlertTimeout, log)
}

func (c *Config) applyEnv(log *slog.Logger) error {
	c.LogDir = getenv("LOG_DIR", c.LogDir)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			log.Warn("invalid LOG_LEVEL, using default", "val", v, "default", c.LogLevel.String())
		}
	}
	c.HTTPBind = getenv("HTTP_BIND", c.HTTPBind)
	c.KafkaBrokers = split(getenv("KAFKA_BROKERS", strings.Join(c.KafkaBrokers, ",")), ",")
	c.AlertTopicPrefix = getenv("ALERT_TOPIC_PREFIX", c.AlertTopicPrefix)
	c.CommandTopic = getenv("COMMAND_TOPIC", c.CommandTopic)
	c.CommandGroup = getenv("COMMAND_GROUP", c.CommandGroup)
	c.MQTTBroker = getenv("MQTT_BROKER", c.MQTTBroker)
	c.MQTTClientID = getenv("MQTT_CLIENT_ID", c.MQTTClientID)
	c.MQTTTopicPrefix = getenv("MQTT_TOPIC_PREFIX", c.MQTTTopicPrefix)

	s, err := breakerFromEnv(c.Breaker)
	if err != nil {
		return err
	}
	c.Breaker = s
	return nil
}

func breakerFromEnv(s breaker.Settings) (breaker.Settings, error) {
	s.Enabled = parseEnvBool("CB_ENABLED")

	var err error
	if s.FailureThreshold, err = parseEnvInt("CB_KAFKA_FAILURE_THRESHOLD", s.FailureThreshold); err != nil {
		return s, err
	}
	if s.SuccessThreshold, err = parseEnvInt("CB_KAFKA_SUCCESS_THRESHOLD", s.SuccessThreshold); err != nil {
		return s, err
	}
	openSeconds, err := parseEnvFloat("CB_KAFKA_OPEN_SECONDS", s.OpenFor.Seconds())
	if err != nil {
		return s, err
	}
	timeoutMS, err := parseEnvInt("CB_KAFKA_TIMEOUT_MS", int(s.Timeout.Milliseconds()))
	if err != nil {
		return s, err
	}
	backoffMS, err := parseEnvInt("CB_KAFKA_BACKOFF_MS", int(s.Backoff.Milliseconds()))
	if err != nil {
		return s, err
	}

	if s.FailureThreshold < 1 {
		return s, fmt.Errorf("CB_KAFKA_FAILURE_THRESHOLD must be >= 1")
	}
	if s.SuccessThreshold < 1 {
		return s, fmt.Errorf("CB_KAFKA_SUCCESS_THRESHOLD must be >= 1")
	}
	if openSeconds <= 0 {
		return s, fmt.Errorf("CB_KAFKA_OPEN_SECONDS must be > 0")
	}
	if timeoutMS < 0 {
		return s, fmt.Errorf("CB_KAFKA_TIMEOUT_MS must be >= 0")
	}
	if backoffMS < 0 {
		return s, fmt.Errorf("CB_KAFKA_BACKOFF_MS must be >= 0")
	}
	s.OpenFor = time.Duration(openSeconds * float64(time.Second))
	s.Timeout = time.Duration(timeoutMS) * time.Millisecond
	s.Backoff = time.Duration(backoffMS) * time.Millisecond
	return s, nil
}

// Validate checks values a properties file could break.
func (c *Config) Validate() error {
	var errs []error
	if c.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("queue_capacity must be >= 1, got %d", c.QueueCapacity))
	}
	if c.AlertQueue < 1 {
		errs = append(errs, fmt.Errorf("alert_queue must be >= 1, got %d", c.AlertQueue))
	}
	for name, d := range map[string]time.Duration{
		"sample_period":   c.SamplePeriod,
		"ingest_deadline": c.IngestDeadline,
		"tick_period":     c.TickPeriod,
		"tick_deadline":   c.TickDeadline,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.InvalidEvery < 0 {
		errs = append(errs, fmt.Errorf("invalid_every must be >= 0, got %d", c.InvalidEvery))
	}
	if c.ZoneID == "" || c.SensorID == "" {
		errs = append(errs, errors.New("zoneId and sensorId must not be empty"))
	}
	if err := c.Policy.Check(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Phases.Check(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func loadProps(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load properties file: %w", err)
	}
	defer f.Close()
	m := map[string]string{}
	s := bufio.NewScanner(f)
	for s.Scan() {
		ln := strings.TrimSpace(s.Text())
		if ln == "" || strings.HasPrefix(ln, "#") || strings.HasPrefix(ln, "//") {
			continue
		}
		k, v, ok := strings.Cut(ln, "=")
		if !ok {
			continue
		}
		m[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return m, nil
}

func gets(m map[string]string, key, def string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return def
}

func getf(m map[string]string, key string, def float64, log *slog.Logger) float64 {
	if v, ok := m[key]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Warn("invalid float in properties, using default", "key", key, "val", v, "default", def)
	}
	return def
}

func geti(m map[string]string, key string, def int, log *slog.Logger) int {
	if v, ok := m[key]; ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Warn("invalid int in properties, using default", "key", key, "val", v, "default", def)
	}
	return def
}

func getd(m map[string]string, key string, def time.Duration, log *slog.Logger) time.Duration {
	if v, ok := m[key]; ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Warn("invalid duration in properties, using default", "key", key, "val", v, "default", def)
	}
	return def
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func split(s, sep string) []string {
	if s == "" {
		return nil
	}
	p := strings.Split(s, sep)
	out := make([]string, 0, len(p))
	for _, x := range p {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}

func parseEnvBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func parseEnvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, nil
}

func parseEnvFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
