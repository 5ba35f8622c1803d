// Package poller runs the fetch-dedup-relay cycle.
//
// Each cycle reloads the account, group, platform and country tables from
// the data directory, then walks every enabled account with a bounded
// worker pool: acquire a session token, fetch messages strictly after the
// account's cursor, and relay each one to the enabled groups in order,
// advancing the cursor only after a message is delivered under the
// configured policy. Account failures are isolated to their account and
// never abort the cycle.
package poller
