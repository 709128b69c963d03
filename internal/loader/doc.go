// Package loader orchestrates one image load: cache lookup, a single network
// fetch on miss, cache population and publication of exactly one result to a
// caller-supplied Sink. Failures never escape a load; every path ends in one
// of three outcomes (cache hit, network fetch persisted, placeholder
// fallback), and the absorbed errors are visible only through logs and the
// optional Observer hook. Loads run as Tasks so callers decide scheduling and
// cancellation; a cancelled Task does not publish.
package loader
