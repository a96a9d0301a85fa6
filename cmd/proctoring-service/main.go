// Package main is the proctoring-service entry point (HTTP + WebSocket).
package main

import (
	"log"

	"github.com/proctoria/proctoring-service/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
