// Command devtoken mints a bearer token for local testing against a server
// running with AUTH_REQUIRED=true.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rewear/rewear/internal/auth"
)

func main() {
	userID := flag.String("user", "", "user ID to embed in the token (required)")
	username := flag.String("name", "", "display name")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: devtoken -user <id> [-name <username>] [-ttl 24h]")
		os.Exit(2)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-in-production"
	}

	token, err := auth.NewJWTManager(secret, *ttl).Generate(*userID, *username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
