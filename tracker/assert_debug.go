//go:build dbtrack_debug

package tracker

const assertionsFatal = true
