// Package testutil provides fixtures shared by the data layer and gateway
// tests: a memory backend seeded with a small stock-site catalogue and a
// manually advanced clock.
//
// Nothing here is safe to use outside tests.
package testutil
