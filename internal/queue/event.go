// Package queue defines the message payloads exchanged over the broker and
// the background consumer that drains them. The auth core never talks SMTP;
// it publishes send requests and lets the delivery worker handle transport.
package queue

// EmailQueueName is the durable queue carrying outbound mail requests.
const EmailQueueName = "auth.email.send"

// Email kinds; the suppression gate treats them differently.
const (
	EmailTransactional = "transactional"
	EmailMarketing     = "marketing"
)

// Template names understood by the delivery worker.
const (
	TemplateVerifyEmail   = "verify-email"
	TemplatePasswordReset = "password-reset"
)

// EmailRequestedEvent asks the delivery worker to send one templated email.
// Params hold template variables such as the single-use token link.
type EmailRequestedEvent struct {
	To          string            `json:"to"`
	Kind        string            `json:"kind"`
	Template    string            `json:"template"`
	Params      map[string]string `json:"params,omitempty"`
	RequestedAt string            `json:"requested_at"`
}
