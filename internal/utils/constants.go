package utils

// LoggerInitializationFailedMessageFormat reports a failure to build the
// application logger.
const LoggerInitializationFailedMessageFormat = "failed to initialize logger: %w"

// ApplicationExecutionFailedMessage prefixes fatal run errors.
const ApplicationExecutionFailedMessage = "dump failed"
