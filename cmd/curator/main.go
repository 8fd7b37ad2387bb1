package main

import (
	"os"

	"tidepool.dev/curator/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
