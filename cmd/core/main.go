package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aussiebroadwan/sessionkit/internal/core/app"
	"github.com/aussiebroadwan/sessionkit/pkg/cryptox"
)

func main() {
	genKey := flag.Bool("gen-api-key", false, "print a new API key and its CORE_API_KEY_HASHES entry, then exit")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if *genKey {
		cryptox.SetPepperPath(cfg.PepperFile)
		key, hash, err := cryptox.GenerateAPIKey()
		if err != nil {
			log.Fatalf("failed to generate api key: %v", err)
		}
		fmt.Fprintf(os.Stdout, "api-key: %s\nhash:    %s\n", key, hash)
		return
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
