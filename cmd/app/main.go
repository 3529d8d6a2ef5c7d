// Command app runs the desktop shell serving ./frontend from disk, for
// working on the UI without rebuilding the embedded assets.
package main

import (
	"fmt"
	"os"

	"audio-converter/internal/bootstrap"
)

func main() {
	app, err := bootstrap.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "audio-converter: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "audio-converter: %v\n", err)
		os.Exit(1)
	}
}
