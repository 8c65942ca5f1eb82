// Package notifier posts operator-facing messages about account checks.
//
// It consumes the event bus: enabled accounts, failed checks, unmatched
// accounts, and transitions between failing and healthy polls. Delivery goes
// through a Sender (Telegram in production), rate limited and retried with
// backoff. A small in-memory history backs the status endpoint.
package notifier
