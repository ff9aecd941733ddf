// Package viz renders integration results in the terminal.
//
//   - [Plot]: asciigraph chart of one state component against x
//   - [Summary]: run statistics and metrics as a styled panel
//   - [Progress]: Bubble Tea model that follows a batch as tasks finish
//
// # Key Bindings
//
//	q, Ctrl+C - Stop watching (the batch keeps running)
package viz
