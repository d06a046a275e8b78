// Package plugin defines the three pipeline plugin roles (Input,
// Processor, and Output) and the registry that binds them by name.
//
// Built-in plugins register themselves from their package init functions;
// binaries pull them in with blank imports. When dynamic loading is
// allowed, the registry also resolves missing names against shared objects
// on the plugin search path, so externally built plugins can join the
// pipeline without recompiling.
package plugin
