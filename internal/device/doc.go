// Package device defines the narrow view of the platform Bluetooth Low Energy stack
// that the session core consumes.
//
// The package contains:
//   - Radio, the asynchronous central interface (scan, connect, discover, subscribe, write)
//   - the closed set of Event variants a Radio reports back
//   - opaque Peripheral, Service and Characteristic handles
//   - characteristic Properties and the write-mode selection rule
//   - structured connection errors shared by radio implementations
package device
