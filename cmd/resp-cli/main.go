// Command resp-cli sends commands to a RESP2 server and prints the replies.
package main

import (
	"fmt"
	"os"

	"github.com/raniellyferreira/resp-server/internal/cli"
)

func main() {
	if err := cli.ClientApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
