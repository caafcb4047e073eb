package main

import (
	"fmt"
	"os"
	"time"

	"socialmart/internal/auth"
	"socialmart/internal/config"
)

func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Println("Usage: token <userId> [displayName]")
		os.Exit(1)
	}

	cfg, err := config.Load(false)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	var displayName string
	if len(os.Args) == 3 {
		displayName = os.Args[2]
	}

	token, err := auth.GenerateToken([]byte(cfg.AuthSecret), cfg.AuthIssuer, os.Args[1], displayName, time.Now(), cfg.TokenExpiry)
	if err != nil {
		fmt.Printf("Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
