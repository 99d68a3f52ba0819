package main

import (
	"os"

	"github.com/gabrielantonyxaviour/moltrades/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
