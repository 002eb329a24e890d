// Package timeouts defines the timeout constants shared by dungeonrun
// binaries.
package timeouts

import "time"

// GRPCDial caps the wait for a gRPC peer to report healthy.
const GRPCDial = 2 * time.Second

// GRPCRequest caps a single runctl call.
const GRPCRequest = 5 * time.Second

// ReadHeader limits how long the metrics server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits graceful shutdown of servers and the drain of queued
// run records.
const Shutdown = 5 * time.Second

// StoreWrite bounds one snapshot and journal write.
const StoreWrite = 3 * time.Second
