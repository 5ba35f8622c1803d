// Package otp provides the domain types for one-time-password notifications
// fetched from the upstream panel API.
//
// Each record carries a cursor position (timestamp plus numeric id) that is
// strictly orderable, which the dedup store relies on to advance its
// per-account watermark monotonically.
package otp
