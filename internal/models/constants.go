// Package models contains data types and constants for the sentiment webhook chat.
package models

import "time"

// DefaultEndpoint is the message-processing webhook the tracker talks to
// when no endpoint is configured.
const DefaultEndpoint = "https://primary-production-89fd.up.railway.app/webhook/4ee9c3d9-1763-4bc9-a3a7-de5384381f8b"

// Replies substituted by the dispatch controller
const (
	// EmptyReplyFallback replaces an empty success body
	EmptyReplyFallback = "I received your message but have no response to share."

	// ErrorReplyFallback is appended when the request fails for any reason
	ErrorReplyFallback = "Sorry, I encountered an error while processing your request. Please try again."
)

// Notification shown when a dispatch fails
const (
	NotifyErrorTitle       = "Connection Error"
	NotifyErrorDescription = "Failed to send message. Please check your connection and try again."
)

// TimestampLayout is ISO-8601 with millisecond precision, the format
// JavaScript's Date.toISOString produces when the time is in UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatISO formats t in UTC using TimestampLayout
func FormatISO(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// DefaultHeaders returns the headers sent with every webhook request
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "text/plain, application/json, */*",
	}
}
