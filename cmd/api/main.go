package main

import (
	"context"
	"log"

	"kobo/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases).
// 3) Start HTTP server.
//
// @title        Kobo Disbursement API
// @version      1.0
// @description  At-most-once disbursement engine keyed by caller-supplied idempotency keys.
// @BasePath     /
func main() {
	log.Println("kobo api starting")
	app, err := bootstrap.BuildAPI()
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("api shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("kobo api stopped with error: %v", err)
	}
}
