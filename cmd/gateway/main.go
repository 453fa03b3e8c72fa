package main

import (
	"log"

	"github.com/llmhub/llmhub/internal/app"
)

func main() {
	gw, err := app.NewGateway()
	if err != nil {
		log.Fatalf("gateway failed to start: %v", err)
	}
	if err := gw.Run(); err != nil {
		log.Fatalf("gateway failed: %v", err)
	}
}
