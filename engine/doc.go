// Package engine holds the guest module handle: the wazero runtime, the compiled
// module image and the single live guest instance.
//
// # Lifecycle
//
//  1. New creates a wazero runtime with the configured memory limit
//  2. Engine.Compile turns a module image into a Module; the image bytes are not retained
//  3. The linker installs host modules for every declared import
//  4. Module.Instantiate creates the Instance the driver calls into
//
// Compile and Instantiate failures are reported as link failures; no partial
// instance is ever returned.
//
// # Memory
//
// Instance.Memory re-derives the guest memory on every call and never caches it.
// Function lookups are cached because exports never change after instantiation.
package engine
