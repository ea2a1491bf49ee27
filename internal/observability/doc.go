// Package observability provides structured logging for the todo API:
// logger construction from configuration and a request logging middleware
// that tags every line with the chi request ID.
package observability
