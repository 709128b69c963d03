// Package resource parses the absolute http(s) URLs that identify loadable
// images. A Key carries the canonical URL string that both the fetcher (as the
// network address) and the cache store (as the filename source) consume, so a
// single URL always maps to a single cache entry regardless of host casing or
// default ports in the caller's input.
package resource
