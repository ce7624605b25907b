package batch

import "os"

// ShowHelp prints usage information for the batch tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`reencuentro batch matcher
=========================

Compares every hallazgo of a dataset against its fichas and writes the
candidate matches that reach the threshold.

Usage:
  match-batch -input dataset.json [options]

Dataset:
  {"fichas": [...], "hallazgos": [...]}   records as accepted by POST /fichas and POST /hallazgos

Options:
  -input string       JSON dataset to sweep (required)
  -output string      JSON report path; "-" writes to stdout (default "-")
  -threshold int      minimum score that creates a candidate match (default 300)
  -workers int        hallazgos swept concurrently (default CPU cores)
  -parallelism int    pairs scored concurrently inside one sweep (default CPU cores)
  -same-state         only compare records reported in the same state
  -timeout duration   bound for the whole run (default 10m)
  -log-format string  text or json (default "text")
  -help               show this help message

Weights are read from the service configuration: REENCUENTRO_CONFIG and
REENCUENTRO_WEIGHTS__* environment variables.
`)
}
