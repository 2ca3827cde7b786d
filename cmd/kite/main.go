package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"kite/cmd/internal/app"
)

func main() {
	if err := app.Run(os.Args[1:]); err != nil && !errors.Is(err, flag.ErrHelp) {
		log.Fatal(err)
	}
}
