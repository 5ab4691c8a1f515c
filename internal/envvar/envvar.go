package envvar

const (
	// GptreplEnv selects the runtime environment (development, production).
	GptreplEnv = "GPTREPL_ENV"

	// GptreplHome overrides the directory holding the chat binary and models.
	GptreplHome = "GPTREPL_HOME"

	// GptreplConfig overrides the config file path.
	GptreplConfig = "GPTREPL_CONFIG"

	// GptreplLogLevel overrides the log level (debug, info, warn, error).
	GptreplLogLevel = "GPTREPL_LOG_LEVEL"

	// GptreplLogFile overrides the rotating log file path. Set to empty, it disables file logging
	// even when the config enables it.
	GptreplLogFile = "GPTREPL_LOG_FILE"
)
