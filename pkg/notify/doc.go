// Package notify delivers confirmation codes to users.
//
// A Notifier is a transport (SMTP for real deployments, a log writer for
// development). The Dispatcher sits in front of a Notifier and is what
// the auth flows call: it renders the mail from a template, hands the
// send to a worker pool so signup requests never block on the mail
// server, and retries transient failures with exponential backoff.
//
// The mail template can be loaded from a file and is hot-reloaded on
// change, so operators can reword the message without a restart.
package notify
