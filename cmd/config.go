package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"rigor.dev/pkg/rigor/internal/adapter"
	"rigor.dev/pkg/rigor/internal/domain"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "rigor"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	hostFlagName       = "host"
	portFlagName       = "port"
	verboseFlagName    = "verbose"
	reportFlagName     = "report"
	idFlagName         = "id"
	verifyHashFlagName = "verify-hash"
	selftestFlagName   = "selftest"
	targetFlagName     = "target"
	ctorArgFlagName    = "ctor-arg"

	serverHostKey     = "server.host"
	serverPortKey     = "server.port"
	sendTimeoutKey    = "transport.send_timeout"
	receiveTimeoutKey = "transport.receive_timeout"
	connectTimeoutKey = "transport.connect_timeout"
	pollIntervalKey   = "transport.poll_interval"
	bufferSizeKey     = "transport.buffer_size"
	markerKey         = "transport.marker"
	engineDomainKey   = "engine.domain"
	sourcesRootKey    = "sources.root"
	reportOutputKey   = "report.output"
	spillDirKey       = "report.spill_dir"
	selftestKey       = "serve.selftest"

	defaultReportOutput = ""
	defaultSourcesRoot  = "."

	envPrefix = "RIGOR"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".rigor.log"
	defaultLogLevel      = "info"
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	setConfigDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func setConfigDefaults() {
	viper.SetDefault(configVersionKey, currentConfigVersion)

	viper.SetDefault(serverHostKey, adapter.DefaultHost)
	viper.SetDefault(serverPortKey, adapter.DefaultPort)
	viper.SetDefault(sendTimeoutKey, adapter.DefaultSendTimeout.String())
	viper.SetDefault(receiveTimeoutKey, adapter.DefaultReceiveTimeout.String())
	viper.SetDefault(connectTimeoutKey, adapter.DefaultConnectTimeout.String())
	viper.SetDefault(pollIntervalKey, adapter.DefaultPollInterval.String())
	viper.SetDefault(bufferSizeKey, adapter.DefaultBufferSize)
	viper.SetDefault(markerKey, adapter.DefaultMarker)

	viper.SetDefault(engineDomainKey, domain.DefaultDomainName)
	viper.SetDefault(sourcesRootKey, defaultSourcesRoot)
	viper.SetDefault(reportOutputKey, defaultReportOutput)
	viper.SetDefault(spillDirKey, "")
	viper.SetDefault(selftestKey, false)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)
}

// transportConfig builds the connection settings from the loaded configuration.
func transportConfig() adapter.TransportConfig {
	return adapter.TransportConfig{
		Host:           viper.GetString(serverHostKey),
		Port:           viper.GetInt(serverPortKey),
		SendTimeout:    durationOrDefault(viper.GetDuration(sendTimeoutKey), adapter.DefaultSendTimeout),
		ReceiveTimeout: durationOrDefault(viper.GetDuration(receiveTimeoutKey), adapter.DefaultReceiveTimeout),
		ConnectTimeout: durationOrDefault(viper.GetDuration(connectTimeoutKey), adapter.DefaultConnectTimeout),
		PollInterval:   durationOrDefault(viper.GetDuration(pollIntervalKey), adapter.DefaultPollInterval),
		BufferSize:     viper.GetInt(bufferSizeKey),
		Marker:         viper.GetString(markerKey),
	}
}

func durationOrDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}

	return d
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// numeric slog levels, e.g. -4 for debug
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger points the global slog logger at a rotating log file.
//
// By default it logs at the configured level; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
