// Command resp-server runs a RESP2 server and decodes RESP2 captures.
//
// Usage:
//
//	resp-server serve --port 6379 --metrics-addr 127.0.0.1:9121
//	resp-server decode --output json capture.resp
package main

import (
	"fmt"
	"os"

	"github.com/raniellyferreira/resp-server/internal/cli"
)

func main() {
	if err := cli.ServerApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
