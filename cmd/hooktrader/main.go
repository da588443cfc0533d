package main

import (
	"context"
	"log"

	"hooktrader/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Fatalf("hooktrader: %v", err)
	}
}
