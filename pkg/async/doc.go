// Package async provides safe goroutine helpers: panic recovery, timeout
// enforcement and a bounded worker pool. Use these instead of bare
// `go func()` for fire-and-forget work such as mail dispatch, so a panic
// in a background task never takes the process down.
package async
