// Package reply turns emails into summaries and draft replies using a
// chat-completions API. Failures degrade to descriptive strings instead
// of errors, so the assistant UI always has something to show.
package reply
