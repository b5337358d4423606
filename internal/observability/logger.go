package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger serves one-shot commands (SIMPLE profile).
	CLILogger *logging.Logger

	// ServerLogger serves watch mode and its HTTP surface (STRUCTURED profile).
	ServerLogger *logging.Logger
)

var severityByName = map[string]string{
	"trace":   "TRACE",
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		fatalLoggerInit("CLI", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// InitServerLogger installs the JSON logger used while watching. The optional
// namespace becomes a static field on every line.
func InitServerLogger(serviceName string, logLevel string, namespace ...string) {
	logger, err := NewStructuredLogger(serviceName, logLevel, namespace...)
	if err != nil {
		fatalLoggerInit("server", err)
	}
	ServerLogger = logger
}

// NewStructuredLogger builds a JSON-to-stderr logger with the correlation
// middleware enabled.
func NewStructuredLogger(serviceName string, logLevel string, namespace ...string) (*logging.Logger, error) {
	static := map[string]any{}
	if len(namespace) > 0 && namespace[0] != "" {
		static["namespace"] = namespace[0]
	}

	return logging.New(&logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: severity(logLevel),
		Service:      serviceName,
		Environment:  "production",
		StaticFields: static,
		Middleware: []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
		},
		Sinks: []logging.SinkConfig{{
			Type:    "console",
			Format:  "json",
			Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
		}},
		EnableCaller:     true,
		EnableStacktrace: true,
	})
}

// InitForProfile installs the logger for a configured profile and returns it.
// STRUCTURED selects the server logger, anything else the CLI one.
func InitForProfile(serviceName, profile, level string, verbose bool) *logging.Logger {
	if !strings.EqualFold(strings.TrimSpace(profile), "STRUCTURED") {
		InitCLILogger(serviceName, verbose || severity(level) == "DEBUG" || severity(level) == "TRACE")
		return CLILogger
	}
	if verbose {
		level = "debug"
	}
	InitServerLogger(serviceName, level)
	return ServerLogger
}

// Logger prefers the server logger once watch mode has installed it.
func Logger() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	return CLILogger
}

// severity maps a config level name to a gofulmen severity; unknown is INFO.
func severity(level string) string {
	if s, ok := severityByName[strings.ToLower(strings.TrimSpace(level))]; ok {
		return s
	}
	return "INFO"
}

// fatalLoggerInit exits with the config-invalid code. No logger exists yet,
// so the report goes straight to stderr.
func fatalLoggerInit(kind string, err error) {
	code := foundry.ExitConfigInvalid
	fmt.Fprintf(os.Stderr, "FATAL: failed to initialize %s logger: %v\n", kind, err)
	if info, ok := foundry.GetExitCodeInfo(code); ok {
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		os.Exit(info.Code)
	}
	os.Exit(int(code))
}
