// Package util provides utility functions for the Fundi service.
package util

import "math/rand/v2"

// PickString returns a uniformly random element of options, or "" when options is empty.
func PickString(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[rand.IntN(len(options))]
}
