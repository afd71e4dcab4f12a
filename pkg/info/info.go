// Package info contains build information about the tool.
package info

// Version of the tool.
const Version = "0.1.0"
