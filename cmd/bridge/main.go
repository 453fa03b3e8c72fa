package main

import (
	"log"

	"github.com/llmhub/llmhub/internal/app"
)

func main() {
	bridge, err := app.NewBridge()
	if err != nil {
		log.Fatalf("bridge failed to start: %v", err)
	}
	if err := bridge.Run(); err != nil {
		log.Fatalf("bridge failed: %v", err)
	}
}
