package main

import (
	"os"

	"github.com/tkingovr/captcha-guard/cmd/captchaguard/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
