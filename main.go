// Package main is the entry point for the rigor CLI.
package main

import "rigor.dev/pkg/rigor/cmd"

func main() {
	cmd.Execute()
}
