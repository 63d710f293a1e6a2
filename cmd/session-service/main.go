// Package main is the session-service entry point (HTTP + WebSocket).
package main

import (
	"log"

	"github.com/sharad1666/Discoursify/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
