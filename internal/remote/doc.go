// Package remote is the HTTP client shared by the job and account sources.
//
// Every endpoint is a GET returning the envelope
//
//	{"code": 0, "message": "ok", "data": {...}}
//
// and every request carries the same team_id query parameter and token header.
// A non-zero code is a logical failure regardless of the HTTP status. There is
// no retry at this layer; callers treat failures as soft and let the next poll
// cycle re-derive state.
package remote
