package main

import (
	"os"

	"github.com/Attamusc/issue-summarizer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
