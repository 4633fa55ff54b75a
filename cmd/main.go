package main

import (
	"log"
	"os"

	"reading-adventure-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Printf("reading-adventure: %v", err)
		os.Exit(1)
	}
}
