// Package ivasms is the client for the upstream OTP panel API.
//
// It covers the two endpoints the relay needs: the email/password login
// exchange and the message listing. Listing is paged server-side; the
// client walks all pages and returns the complete window or fails as a
// whole, so callers never observe silently truncated results.
//
// The session manager caches one API token per account, in memory and in
// token_cache.json, so process restarts inside the token's lifetime do not
// force a re-login.
package ivasms
