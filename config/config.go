package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alem-hub/caliper-fixtures/internal/domain/caliper"
	"github.com/alem-hub/caliper-fixtures/pkg/timeutil"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTest        Environment = "test"
	EnvProduction  Environment = "production"
)

// ClockMode selects where "now" timestamps come from.
type ClockMode string

const (
	// ClockFixed starts at Fixture.EventTime and advances ClockStep per reading.
	ClockFixed ClockMode = "fixed"
	// ClockSystem reads the wall clock.
	ClockSystem ClockMode = "system"
)

// IDMode selects how event identifiers are generated.
type IDMode string

const (
	// IDDeterministic derives name-based UUIDs from the sensor and a sequence number.
	IDDeterministic IDMode = "deterministic"
	// IDRandom uses random UUIDs.
	IDRandom IDMode = "random"
	// IDNone leaves events without an id.
	IDNone IDMode = "none"
)

// ConfigFileEnv names the environment variable holding an optional YAML config path.
const ConfigFileEnv = "CALIPER_CONFIG"

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	// Application
	App AppConfig `yaml:"app"`

	// Fixed values shared by every generated entity
	Fixture Fixture `yaml:"fixture"`

	// The imaginary school the scenario runs in
	School School `yaml:"school"`

	// Envelope encoding
	Output OutputConfig `yaml:"output"`

	// Observability
	Observability ObservabilityConfig `yaml:"observability"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string      `yaml:"name"`
	Environment Environment `yaml:"environment"`
	Debug       bool        `yaml:"debug"`
	Version     string      `yaml:"version"`
}

// Fixture holds the identifier base and the fixed timestamps stamped on entities.
// All timestamps use timeutil.InstantLayout.
type Fixture struct {
	IDBase   string `yaml:"id_base"`
	SensorID string `yaml:"sensor_id"`

	CreateTime    string `yaml:"create_time"`
	ModTime       string `yaml:"mod_time"`
	EventSendTime string `yaml:"event_send_time"`
	EventTime     string `yaml:"event_time"`
	StartTime     string `yaml:"start_time"`
	EndTime       string `yaml:"end_time"`
	PubTime       string `yaml:"pub_time"`
	ActTime       string `yaml:"act_time"`
	ShowTime      string `yaml:"show_time"`
	StartOnTime   string `yaml:"start_on_time"`
	SubmitTime    string `yaml:"submit_time"`

	VersionNumber  string `yaml:"version_number"`
	VersionEdition string `yaml:"version_edition"`

	Clock     ClockMode     `yaml:"clock"`
	ClockStep time.Duration `yaml:"clock_step"`
	EventIDs  IDMode        `yaml:"event_ids"`
}

// Student identifies the learner driving the scenario.
type Student struct {
	ID   string `yaml:"id"`
	SSID string `yaml:"ssid"`
}

// NamedRef is an identifier with a display name.
type NamedRef struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// School describes the course, assessment and people of a scenario run.
type School struct {
	Section             caliper.Section        `yaml:"section"`
	Assessment          caliper.AssessmentSpec `yaml:"assessment"`
	AssessmentAttemptID string                 `yaml:"assessment_attempt_id"`
	Items               []caliper.ItemSpec     `yaml:"items"`
	Student             Student                `yaml:"student"`
	Group               NamedRef               `yaml:"group"`
	SessionID           string                 `yaml:"session_id"`
	Tool                NamedRef               `yaml:"tool"`
	CoursePage          NamedRef               `yaml:"course_page"`
	EpubVolume          NamedRef               `yaml:"epub_volume"`
	EpubSubChapter      NamedRef               `yaml:"epub_subchapter"`
	Result              caliper.ResultSpec     `yaml:"result"`
}

// OutputConfig selects how envelopes are written.
type OutputConfig struct {
	Format string `yaml:"format"` // json, yaml, cbor
	Pretty bool   `yaml:"pretty"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"` // debug, info, warn, error
	LogFormat string `yaml:"log_format"`
}

// Default returns the configuration of the Kentfield Math 7 fixture set.
func Default() *Config {
	const act = "2015-08-16T05:00:00.000000Z"

	return &Config{
		App: AppConfig{
			Name:        "caliper-fixtures",
			Environment: EnvDevelopment,
			Version:     "0.1.0",
		},
		Fixture: Fixture{
			IDBase:         "https://kentfieldschools.org",
			SensorID:       "1",
			CreateTime:     "2015-08-01T06:00:00.000000Z",
			ModTime:        "2015-09-02T11:30:00.000000Z",
			EventSendTime:  "2015-09-15T11:05:01.000000Z",
			EventTime:      "2015-09-15T10:15:00.000000Z",
			StartTime:      "2015-09-15T10:15:00.000000Z",
			EndTime:        "2015-09-15T11:05:00.000000Z",
			PubTime:        "2015-08-15T09:30:00.000000Z",
			ActTime:        act,
			ShowTime:       act,
			StartOnTime:    act,
			SubmitTime:     "2015-09-28T11:59:59.000000Z",
			VersionNumber:  "1.0",
			VersionEdition: "2nd ed.",
			Clock:          ClockFixed,
			ClockStep:      time.Second,
			EventIDs:       IDDeterministic,
		},
		School: School{
			Section: caliper.Section{
				CourseName:    "Math 7",
				SchoolID:      "104",
				CourseNumber:  "7177",
				SectionNumber: "4",
				YearAbbr:      "1617",
				TermAbbr:      "FY",
			},
			Assessment: caliper.AssessmentSpec{
				ID:          "44001",
				Name:        "Read George Washington",
				MaxAttempts: 2,
				MaxSubmits:  2,
				MaxScore:    100.0,
			},
			AssessmentAttemptID: "1",
			Items: []caliper.ItemSpec{{
				ID:          "44001.1",
				Name:        "Washington Quiz Question 1",
				MaxAttempts: 2,
				MaxSubmits:  2,
				MaxScore:    10.0,
				AttemptID:   "11",
				Response: caliper.ItemResponse{
					ID:     "44001.1.X",
					Kind:   caliper.ResponseFillinBlank,
					Values: []string{"February 22"},
				},
			}},
			Student:   Student{ID: "123456", SSID: "10736344450"},
			Group:     NamedRef{ID: "1", Name: "All Students"},
			SessionID: "4585130",
			Tool:      NamedRef{ID: "https://successnet.pearson.com", Name: "Pearson SuccessNet"},
			CoursePage: NamedRef{
				ID:   "https://www.kentfieldschools.org/kent/classes/math7/index.html",
				Name: "Welcome to Math 7",
			},
			EpubVolume: NamedRef{
				ID:   "https://example.com/viewer/book/34843#epubcfi(/4/3)",
				Name: "The Glorious Cause: The American Revolution, 1763-1789 (Oxford History of the United States)",
			},
			EpubSubChapter: NamedRef{
				ID:   "https://example.com/viewer/book/34843#epubcfi(/4/3/1)",
				Name: "Key Figures: George Washington",
			},
			Result: caliper.NewResultSpec("Good job", 95.0),
		},
		Output: OutputConfig{
			Format: "json",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CALIPER_CONFIG (if any) and environment variables, in that order.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigFileEnv))
}

// LoadFile is Load with an explicit config file path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.merge(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Parse overlays YAML data on the defaults and validates the result.
// Environment variables are not consulted.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.merge(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge decodes YAML onto c. Keys absent from data keep their current values;
// a present items list replaces the default list.
func (c *Config) merge(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	c.App.Name = getEnv("APP_NAME", c.App.Name)
	c.App.Environment = Environment(getEnv("APP_ENV", string(c.App.Environment)))
	c.App.Debug = getEnvBool("APP_DEBUG", c.App.Debug)
	c.App.Version = getEnv("APP_VERSION", c.App.Version)

	c.Fixture.IDBase = getEnv("CALIPER_ID_BASE", c.Fixture.IDBase)
	c.Fixture.SensorID = getEnv("CALIPER_SENSOR_ID", c.Fixture.SensorID)
	c.Fixture.Clock = ClockMode(getEnv("CALIPER_CLOCK", string(c.Fixture.Clock)))
	c.Fixture.ClockStep = getEnvDuration("CALIPER_CLOCK_STEP", c.Fixture.ClockStep)
	c.Fixture.EventIDs = IDMode(getEnv("CALIPER_EVENT_IDS", string(c.Fixture.EventIDs)))

	c.Output.Format = getEnv("OUTPUT_FORMAT", c.Output.Format)
	c.Output.Pretty = getEnvBool("OUTPUT_PRETTY", c.Output.Pretty)

	c.Observability.LogLevel = getEnv("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = getEnv("LOG_FORMAT", c.Observability.LogFormat)
}

// Validate checks if the configuration is valid and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	// Identifiers
	if c.Fixture.IDBase == "" {
		errs = append(errs, "fixture.id_base is required")
	}
	if c.Fixture.SensorID == "" {
		errs = append(errs, "fixture.sensor_id is required")
	}

	// Timestamps
	for _, ts := range c.Fixture.timestamps() {
		if !timeutil.IsInstant(ts.value) {
			errs = append(errs, fmt.Sprintf("fixture.%s %q is not a %s instant",
				ts.name, ts.value, timeutil.InstantLayout))
		}
	}

	// Modes
	switch c.Fixture.Clock {
	case ClockFixed, ClockSystem:
	default:
		errs = append(errs, fmt.Sprintf("fixture.clock must be fixed or system, got %q", c.Fixture.Clock))
	}
	if c.Fixture.Clock == ClockFixed && c.Fixture.ClockStep < 0 {
		errs = append(errs, "fixture.clock_step cannot be negative")
	}
	switch c.Fixture.EventIDs {
	case IDDeterministic, IDRandom, IDNone:
	default:
		errs = append(errs, fmt.Sprintf("fixture.event_ids must be deterministic, random or none, got %q", c.Fixture.EventIDs))
	}

	// School
	if c.School.Assessment.ID == "" {
		errs = append(errs, "school.assessment.id is required")
	}
	if c.School.Student.ID == "" {
		errs = append(errs, "school.student.id is required")
	}
	if c.School.Tool.ID == "" {
		errs = append(errs, "school.tool.id is required")
	}
	if len(c.School.Items) == 0 {
		errs = append(errs, "school.items must contain at least one item")
	}
	for i, item := range c.School.Items {
		if item.ID == "" {
			errs = append(errs, fmt.Sprintf("school.items[%d].id is required", i))
		}
		if !item.Response.Kind.IsValid() {
			errs = append(errs, fmt.Sprintf("school.items[%d].response.kind %q is unknown", i, item.Response.Kind))
		}
		if len(item.Response.Values) == 0 {
			errs = append(errs, fmt.Sprintf("school.items[%d].response.values is empty", i))
		}
	}

	// Output
	switch strings.ToLower(c.Output.Format) {
	case "json", "yaml", "cbor":
	default:
		errs = append(errs, fmt.Sprintf("output.format must be json, yaml or cbor, got %q", c.Output.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalid, strings.Join(errs, "\n  - "))
	}

	return nil
}

type namedTimestamp struct {
	name  string
	value string
}

func (f Fixture) timestamps() []namedTimestamp {
	return []namedTimestamp{
		{"create_time", f.CreateTime},
		{"mod_time", f.ModTime},
		{"event_send_time", f.EventSendTime},
		{"event_time", f.EventTime},
		{"start_time", f.StartTime},
		{"end_time", f.EndTime},
		{"pub_time", f.PubTime},
		{"act_time", f.ActTime},
		{"show_time", f.ShowTime},
		{"start_on_time", f.StartOnTime},
		{"submit_time", f.SubmitTime},
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// --- Helper functions for environment variable parsing ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
