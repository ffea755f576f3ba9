// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing chunks, search hits and scripted model
// actions. The package only depends on core so that any package's tests may
// import it. It is not intended for production usage.
package testutil
