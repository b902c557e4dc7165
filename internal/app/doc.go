// Package app contains the core application logic: configuration, the
// registry of built-in and on-disk library descriptors, and the generation
// pipeline that synthesizes, scores and curates seeds in rounds. It is
// decoupled from any specific entrypoint like the CLI.
package app
