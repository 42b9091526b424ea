// Package constants holds fixed names and banner text shared by the
// subsync command and its internal packages.
package constants
