// Package config defines the format-agnostic model of an API descriptor: the
// libraries, handle kinds, functions, parameters and branch tables that a
// descriptor file declares, along with the Loader interface for reading
// descriptors from a concrete format.
//
// The model deliberately keeps ownership, phase and error-convention values
// as the raw keywords written by the descriptor author. Interpreting them,
// and rejecting anything missing or unknown, is the job of the catalogue
// package, so that a descriptor can never be silently defaulted on its way
// in. Concrete loaders, such as the HCL one, live in separate packages.
package config
