// lyrica-ctl controls a running lyricad over its unix socket and inspects song files.
package main

import (
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
