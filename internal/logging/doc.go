// Package logging provides a simple leveled logging interface for the
// image viewer, backed by klog.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (decode timings, cache churn)
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// DEBUG=1, and can be overridden with SetLevel.
package logging
