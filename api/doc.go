// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package api defines the public contracts of tcpreactor: the EventHandler
// interface through which applications observe connection lifecycle and data
// events, the Callbacks and NopHandler convenience adapters, and the sentinel
// errors shared across the library.
package api
