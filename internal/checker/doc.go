// Package checker keeps one pending check per ad account and runs it shortly
// before the account's earliest waiting job.
//
// Every poll recomputes the per-account groups from the remote job list and
// reconciles them against the live timer map:
//   - a group whose check time is earlier than the live entry replaces it;
//   - a live entry that is earlier or equal is kept untouched;
//   - an entry whose account is absent from the poll is cancelled.
//
// A fired check optionally re-confirms that the account is still referenced,
// resolves the account record and enables it when it is disabled.
package checker
