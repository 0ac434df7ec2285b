// Package pipeline assembles a complete Dispatcher from a single YAML
// document: a severity gate, a dedup window, and the set of enabled
// destination sinks. Grounded on the teacher's internal/config.LoadConfig
// "unmarshal then apply defaults then validate" shape, narrowed from the
// teacher's whole-daemon config (docker discovery, HTTP server, file
// monitor service) down to just the pieces a logging pipeline needs:
// which severities pass, how long to suppress duplicates, and which
// transports are live.
package pipeline

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"fieldlog/internal/flogmetrics"
	"fieldlog/pkg/dispatch"
	"fieldlog/pkg/filter"
	"fieldlog/pkg/format"
	"fieldlog/pkg/severity"
	"fieldlog/pkg/sinks/durable"
	"fieldlog/pkg/sinks/remote"
	"fieldlog/pkg/sinks/rotatingfile"
	"fieldlog/pkg/sinks/throttled"
	"fieldlog/pkg/sinks/wshub"
)

// FieldSpec names one rendered field by the short name used in
// resolveFields. Options beyond style (colors, padding, privacy) aren't
// exposed at the YAML layer; build format.Field slices directly and use
// dispatch.Config when finer control is needed.
type FieldSpec struct {
	Name string `yaml:"name"`
}

// RotatingFileConfig mirrors rotatingfile.Config's YAML-expressible fields.
type RotatingFileConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Directory        string `yaml:"directory"`
	Prefix           string `yaml:"prefix"`
	Extension        string `yaml:"extension"`
	MaxFileSizeBytes int64  `yaml:"max_file_size_bytes"`
	MaxFilesCount    int    `yaml:"max_files_count"`
	MaxTotalBytes    int64  `yaml:"max_total_bytes"`
	CompressArchives bool   `yaml:"compress_archives"`
}

// DurableConfig mirrors durable.Config's YAML-expressible fields.
type DurableConfig struct {
	Enabled           bool          `yaml:"enabled"`
	StorageLocation   string        `yaml:"storage_location"`
	MaxEntries        int           `yaml:"max_entries"`
	ChunkSize         int           `yaml:"chunk_size"`
	AutoFlushInterval time.Duration `yaml:"auto_flush_interval"`
	MaxRetries        int           `yaml:"max_retries"`
	MaxReplayPastAge   time.Duration `yaml:"max_replay_past_age"`
	MaxReplayFutureAge time.Duration `yaml:"max_replay_future_age"`
}

// RemoteConfig mirrors remote.Config's YAML-expressible fields.
type RemoteConfig struct {
	Enabled                 bool              `yaml:"enabled"`
	URL                     string            `yaml:"url"`
	Method                  string            `yaml:"method"`
	Headers                 map[string]string `yaml:"headers"`
	BatchSize               int               `yaml:"batch_size"`
	BatchTimeout            time.Duration     `yaml:"batch_timeout"`
	MaxRetries              int               `yaml:"max_retries"`
	RetryBackoff            time.Duration     `yaml:"retry_backoff"`
	BreakerFailureThreshold int               `yaml:"breaker_failure_threshold"`
	BreakerOpenTimeout      time.Duration     `yaml:"breaker_open_timeout"`
}

// ThrottledConfig mirrors throttled.Config's YAML-expressible fields.
type ThrottledConfig struct {
	Enabled           bool          `yaml:"enabled"`
	MaxEntries        int           `yaml:"max_entries"`
	AutoFlushInterval time.Duration `yaml:"auto_flush_interval"`
}

// WebSocketConfig mirrors wshub.Config's YAML-expressible fields.
type WebSocketConfig struct {
	Enabled       bool `yaml:"enabled"`
	SendBufferLen int  `yaml:"send_buffer_len"`
}

// Config is the full pipeline document.
type Config struct {
	SeverityGate string        `yaml:"severity_gate"`
	DedupWindow  time.Duration `yaml:"dedup_window"`
	Synchronous  bool          `yaml:"synchronous"`
	Fields       []FieldSpec   `yaml:"fields"`

	Sinks struct {
		RotatingFile RotatingFileConfig `yaml:"rotating_file"`
		Durable      DurableConfig      `yaml:"durable"`
		Remote       RemoteConfig       `yaml:"remote"`
		Throttled    ThrottledConfig    `yaml:"throttled"`
		WebSocket    WebSocketConfig    `yaml:"websocket"`
	} `yaml:"sinks"`
}

// Load parses raw YAML into a Config and applies defaults to zero-value
// fields, following the teacher's LoadConfig/applyDefaults split.
func Load(raw []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse pipeline config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.SeverityGate == "" {
		cfg.SeverityGate = severity.Trace.String()
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = []FieldSpec{{Name: "timestamp"}, {Name: "level"}, {Name: "message"}}
	}
}

// resolveFields turns the configured field names into format.Field values.
// Unknown names are skipped rather than failing the whole pipeline build,
// since a typo'd cosmetic field shouldn't prevent logging from starting.
func resolveFields(specs []FieldSpec) []format.Field {
	fields := make([]format.Field, 0, len(specs))
	for _, s := range specs {
		switch s.Name {
		case "timestamp":
			fields = append(fields, format.TimestampField(format.RFC3339Style))
		case "level":
			fields = append(fields, format.LevelField(format.LevelSimple))
		case "message":
			fields = append(fields, format.MessageField())
		case "subsystem":
			fields = append(fields, format.SubsystemField())
		case "category":
			fields = append(fields, format.CategoryField())
		case "fingerprint":
			fields = append(fields, format.FingerprintField())
		case " ":
			fields = append(fields, format.DelimiterField(" "))
		}
	}
	return fields
}

// Build constructs every enabled sink and wires them, along with the
// severity gate and dedup filter, into a Dispatcher. Returns the
// Dispatcher, whose Flush/Close reach every constructed sink, or the
// first construction error.
func Build(cfg *Config, log *logrus.Logger, metrics *flogmetrics.Registry) (*dispatch.Dispatcher, error) {
	gate, err := severity.Parse(cfg.SeverityGate)
	if err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}

	fields := resolveFields(cfg.Fields)
	var chain filter.Chain
	if cfg.DedupWindow > 0 {
		chain = chain.Append(filter.Deduplicate(cfg.DedupWindow))
	}

	var transports []dispatch.Transport

	if c := cfg.Sinks.RotatingFile; c.Enabled {
		sink, err := rotatingfile.New(rotatingfile.Config{
			Directory:        c.Directory,
			Prefix:           c.Prefix,
			Extension:        c.Extension,
			MaxFileSize:      c.MaxFileSizeBytes,
			MaxFilesCount:    c.MaxFilesCount,
			MaxTotalBytes:    c.MaxTotalBytes,
			CompressArchives: c.CompressArchives,
			Formatters:       fields,
			Log:              log,
			Metrics:          metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("build rotating file sink: %w", err)
		}
		transports = append(transports, sink)
	}

	if c := cfg.Sinks.Durable; c.Enabled {
		sink, err := durable.New(durable.Config{
			StorageLocation:   c.StorageLocation,
			MaxEntries:        c.MaxEntries,
			ChunkSize:         c.ChunkSize,
			AutoFlushInterval: c.AutoFlushInterval,
			MaxRetries:        c.MaxRetries,
			MaxReplayPastAge:   c.MaxReplayPastAge,
			MaxReplayFutureAge: c.MaxReplayFutureAge,
			Formatters:        fields,
			Log:               log,
			Metrics:           metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("build durable sink: %w", err)
		}
		transports = append(transports, sink)
	}

	if c := cfg.Sinks.Remote; c.Enabled {
		sink, err := remote.New(remote.Config{
			URL:                     c.URL,
			Method:                  c.Method,
			Headers:                 c.Headers,
			BatchSize:               c.BatchSize,
			BatchTimeout:            c.BatchTimeout,
			MaxRetries:              c.MaxRetries,
			RetryBackoff:            c.RetryBackoff,
			BreakerFailureThreshold: c.BreakerFailureThreshold,
			BreakerOpenTimeout:      c.BreakerOpenTimeout,
			Formatters:              fields,
			Log:                     log,
			Metrics:                 metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("build remote sink: %w", err)
		}
		transports = append(transports, sink)
	}

	if c := cfg.Sinks.Throttled; c.Enabled {
		sink := throttled.New(throttled.Config{
			MaxEntries:        c.MaxEntries,
			AutoFlushInterval: c.AutoFlushInterval,
			Formatters:        fields,
			Log:               log,
			Metrics:           metrics,
		})
		transports = append(transports, sink)
	}

	if c := cfg.Sinks.WebSocket; c.Enabled {
		hub := wshub.New(wshub.Config{
			Formatters:    fields,
			SendBufferLen: c.SendBufferLen,
			Log:           log,
		})
		transports = append(transports, hub)
	}

	return dispatch.New(dispatch.Config{
		Filters:       chain,
		Transports:    transports,
		IsSynchronous: cfg.Synchronous,
		LevelGate:     gate,
		Metrics:       metrics,
	}, log), nil
}
