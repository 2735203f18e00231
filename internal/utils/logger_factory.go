package utils

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatConsoleStringConstant       = "console"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
	logFileMaximumSizeMegabytesConstant  = 10
	logFileMaximumBackupsConstant        = 3
	logFileMaximumAgeDaysConstant        = 28
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

// verbosityLevels maps the number of -v flags to the level they request.
var verbosityLevels = []LogLevel{LogLevelInfo, LogLevelDebug}

// LoggerSettings describes the logger requested by configuration and flags.
type LoggerSettings struct {
	Level  LogLevel
	Format LogFormat
	// FilePath, when set, adds a rotating JSON log file next to the standard error output.
	FilePath string
}

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct{}

// NewLoggerFactory constructs a new logger factory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// CreateLogger produces a zap.Logger writing to standard error and, optionally, to a rotating file.
func (factory *LoggerFactory) CreateLogger(settings LoggerSettings) (*zap.Logger, error) {
	zapLogLevel, levelExists := logLevelMapping[LogLevel(strings.ToLower(string(settings.Level)))]
	if !levelExists {
		return nil, fmt.Errorf(unsupportedLogLevelTemplateConstant, settings.Level)
	}

	encoderConfiguration := zap.NewProductionEncoderConfig()
	encoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder

	var standardErrorEncoder zapcore.Encoder
	switch LogFormat(strings.ToLower(string(settings.Format))) {
	case LogFormatStructured:
		standardErrorEncoder = zapcore.NewJSONEncoder(encoderConfiguration)
	case LogFormatConsole:
		consoleConfiguration := encoderConfiguration
		consoleConfiguration.EncodeLevel = zapcore.CapitalLevelEncoder
		standardErrorEncoder = zapcore.NewConsoleEncoder(consoleConfiguration)
	default:
		return nil, fmt.Errorf(unsupportedLogFormatTemplateConstant, settings.Format)
	}

	levelEnabler := zap.NewAtomicLevelAt(zapLogLevel)
	cores := []zapcore.Core{zapcore.NewCore(standardErrorEncoder, zapcore.Lock(os.Stderr), levelEnabler)}

	trimmedFilePath := strings.TrimSpace(settings.FilePath)
	if len(trimmedFilePath) > 0 {
		rotatingFile := &lumberjack.Logger{
			Filename:   trimmedFilePath,
			MaxSize:    logFileMaximumSizeMegabytesConstant,
			MaxBackups: logFileMaximumBackupsConstant,
			MaxAge:     logFileMaximumAgeDaysConstant,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfiguration), zapcore.AddSync(rotatingFile), levelEnabler))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// ResolveVerbosity raises configuredLevel according to the number of -v flags. It never lowers verbosity.
func ResolveVerbosity(configuredLevel LogLevel, verbosity int) LogLevel {
	if verbosity <= 0 {
		return configuredLevel
	}
	if verbosity > len(verbosityLevels) {
		verbosity = len(verbosityLevels)
	}
	requestedLevel := verbosityLevels[verbosity-1]

	configuredZapLevel, configuredKnown := logLevelMapping[LogLevel(strings.ToLower(string(configuredLevel)))]
	if configuredKnown && configuredZapLevel <= logLevelMapping[requestedLevel] {
		return configuredLevel
	}
	return requestedLevel
}
