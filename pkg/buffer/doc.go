// Package buffer provides the fixed-size sliding window behind the data
// layer's average response time.
//
// Ring keeps the latest N items and overwrites the oldest once full. Window
// is a goroutine-safe Ring of float64 samples that maintains a running sum
// so Mean is constant time:
//
//	window := buffer.NewWindow(100)
//	window.Add(float64(elapsed) / float64(time.Millisecond))
//	avg := window.Mean()
package buffer
