package main

import (
	"log"

	"github.com/psds-microservice/support-bridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
