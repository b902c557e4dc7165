// Package hcl provides the concrete HCL implementation of the config.Loader
// interface. It is responsible for finding and parsing descriptor files,
// reading keyword attributes such as `ownership = borrow_in`, evaluating
// literal candidate values through cty and translating the result into the
// format-agnostic config model.
package hcl
