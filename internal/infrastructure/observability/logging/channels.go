// Package logging provides structured logging channels for the display
// engine, one slog logger per subsystem so operators can raise or lower
// verbosity per concern.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Channel represents a logical logging channel for a subsystem.
type Channel string

const (
	ChannelSystem   Channel = "system"
	ChannelStartup  Channel = "startup"
	ChannelShutdown Channel = "shutdown"

	ChannelDisplay    Channel = "display"    // pipeline state machine
	ChannelTransition Channel = "transition" // cut/fade sequencing
	ChannelPoller     Channel = "poller"     // image source polling
	ChannelMetadata   Channel = "metadata"   // metadata extraction
	ChannelCache      Channel = "cache"      // in-memory stores
	ChannelState      Channel = "state"      // durable state persistence
	ChannelSSE        Channel = "sse"        // real-time push
	ChannelAlert      Channel = "alert"      // operator notifications
	ChannelDebug      Channel = "debug"      // debug-mode heuristics
)

var allChannels = []Channel{
	ChannelSystem, ChannelStartup, ChannelShutdown,
	ChannelDisplay, ChannelTransition, ChannelPoller, ChannelMetadata,
	ChannelCache, ChannelState, ChannelSSE, ChannelAlert, ChannelDebug,
}

// LoggerConfig contains configuration options for the channeled logger.
type LoggerConfig struct {
	OutputToFile    bool                   `json:"outputToFile"`
	OutputToConsole bool                   `json:"outputToConsole"`
	LogDirectory    string                 `json:"logDirectory"`
	JSONFormat      bool                   `json:"jsonFormat"`
	DefaultLevel    slog.Level             `json:"defaultLevel"`
	ChannelLevels   map[Channel]slog.Level `json:"channelLevels"`
}

// DefaultLoggerConfig returns a sensible default configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: true,
		LogDirectory:    "logs",
		JSONFormat:      false,
		DefaultLevel:    slog.LevelInfo,
		ChannelLevels:   make(map[Channel]slog.Level),
	}
}

// ChanneledLogger provides structured logging with one logger per channel.
type ChanneledLogger struct {
	channels map[Channel]*slog.Logger
	config   *LoggerConfig
	configMu sync.RWMutex
}

// NewChanneledLogger creates a channeled logger with the given configuration.
func NewChanneledLogger(config *LoggerConfig) (*ChanneledLogger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}

	cl := &ChanneledLogger{
		channels: make(map[Channel]*slog.Logger),
		config:   config,
	}

	if config.OutputToFile {
		if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	for _, channel := range allChannels {
		logger, err := cl.createChannelLogger(channel)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger for channel %s: %w", channel, err)
		}
		cl.channels[channel] = logger
	}

	return cl, nil
}

func (cl *ChanneledLogger) createChannelLogger(channel Channel) (*slog.Logger, error) {
	level := cl.config.DefaultLevel
	if channelLevel, exists := cl.config.ChannelLevels[channel]; exists {
		level = channelLevel
	}

	var writers []io.Writer
	if cl.config.OutputToConsole {
		writers = append(writers, os.Stdout)
	}
	if cl.config.OutputToFile {
		path := filepath.Join(cl.config.LogDirectory, string(channel)+".log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		writers = append(writers, file)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cl.config.JSONFormat {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler).With(slog.String("channel", string(channel))), nil
}

func (cl *ChanneledLogger) System() *slog.Logger     { return cl.channels[ChannelSystem] }
func (cl *ChanneledLogger) Startup() *slog.Logger    { return cl.channels[ChannelStartup] }
func (cl *ChanneledLogger) Shutdown() *slog.Logger   { return cl.channels[ChannelShutdown] }
func (cl *ChanneledLogger) Display() *slog.Logger    { return cl.channels[ChannelDisplay] }
func (cl *ChanneledLogger) Transition() *slog.Logger { return cl.channels[ChannelTransition] }
func (cl *ChanneledLogger) Poller() *slog.Logger     { return cl.channels[ChannelPoller] }
func (cl *ChanneledLogger) Metadata() *slog.Logger   { return cl.channels[ChannelMetadata] }
func (cl *ChanneledLogger) Cache() *slog.Logger      { return cl.channels[ChannelCache] }
func (cl *ChanneledLogger) State() *slog.Logger      { return cl.channels[ChannelState] }
func (cl *ChanneledLogger) SSE() *slog.Logger        { return cl.channels[ChannelSSE] }
func (cl *ChanneledLogger) Alert() *slog.Logger      { return cl.channels[ChannelAlert] }
func (cl *ChanneledLogger) Debug() *slog.Logger      { return cl.channels[ChannelDebug] }

// GetChannel returns the logger for a channel, falling back to system.
func (cl *ChanneledLogger) GetChannel(channel Channel) *slog.Logger {
	if logger, exists := cl.channels[channel]; exists {
		return logger
	}
	return cl.channels[ChannelSystem]
}

// WithDisplay returns a channel logger with display context attached.
func (cl *ChanneledLogger) WithDisplay(channel Channel, displayID string) *slog.Logger {
	return cl.GetChannel(channel).With(slog.String("displayId", displayID))
}

// SetChannelLevel dynamically changes the level of one channel.
func (cl *ChanneledLogger) SetChannelLevel(channel Channel, level slog.Level) error {
	cl.configMu.Lock()
	defer cl.configMu.Unlock()

	if _, exists := cl.channels[channel]; !exists {
		return fmt.Errorf("channel %s does not exist", channel)
	}
	cl.config.ChannelLevels[channel] = level

	newLogger, err := cl.createChannelLogger(channel)
	if err != nil {
		return fmt.Errorf("failed to recreate logger for channel %s: %w", channel, err)
	}
	cl.channels[channel] = newLogger
	return nil
}

// GetChannelLevels returns the current level of every channel.
func (cl *ChanneledLogger) GetChannelLevels() map[string]string {
	cl.configMu.RLock()
	defer cl.configMu.RUnlock()

	levels := make(map[string]string)
	for channel := range cl.channels {
		if level, ok := cl.config.ChannelLevels[channel]; ok {
			levels[string(channel)] = level.String()
		} else {
			levels[string(channel)] = cl.config.DefaultLevel.String()
		}
	}
	return levels
}
