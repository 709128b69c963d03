// Package cache defines the disk-backed store that keeps fetched images under a
// single flat directory (ImageCache by default) below the application's cache
// root. Each entry is one file holding the raw payload, named by a truncated
// URL-safe base64 encoding of the canonical URL. Writes go through a temp file
// and a rename so a crash never leaves a truncated entry behind; there is no
// expiry and no eviction. The store works on an afero.Fs so tests can swap in
// in-memory or read-only filesystems.
package cache
