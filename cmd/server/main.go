// Package main implements the entry point for the social-text API
// server, which serves user authentication and text posts and runs the
// background signup enrichment pipeline.
package main

import (
	"log"
)

func main() {
	app, err := newApplication()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
