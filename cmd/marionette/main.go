// Package main is the entry point of the marionette server.
package main

import "github.com/liuxd6825/marionette/cmd"

func main() {
	cmd.Execute()
}
