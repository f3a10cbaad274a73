// Package sanitizer normalizes request input before validation and storage.
//
// All functions are idempotent and never fail: unusable input comes back empty or
// unchanged and is left for the validator to reject.
package sanitizer
