// Command photon runs user-authored Go source files as Model Context
// Protocol servers.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
