// Package build is the canonical entry point for building a set of LaTeX
// documents. It resolves the documents and the reproducible timestamp,
// drives every document to convergence on a bounded worker pool, and
// publishes the aggregate report to disk, the history store and the event
// bus. All execution paths (CLI build, watch mode, tests) route through
// BuildService.
package build
