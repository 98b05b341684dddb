// toolvault: local-first tool repository with cloud sync, served over MCP.
//
// Usage:
//
//	toolvault serve            # Start MCP server (stdio transport)
//	toolvault sync             # Reconcile this device with the cloud
//	toolvault login --email .. # Sign in to the cloud store
//	toolvault export > backup.json
package main

import (
	"fmt"
	"os"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		if exitErr, ok := err.(exitError); ok {
			if !exitErr.silent && exitErr.message != "" {
				fmt.Fprintln(os.Stderr, exitErr.message)
			}
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

type exitError struct {
	code    int
	message string
	silent  bool
}

func (e exitError) Error() string {
	return e.message
}
