// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates cobra flags, the optional YAML run file and SEEDGRID_*
// environment variables into the application's configuration.
package cli
