// Command admintoken mints a bearer token for the /admin API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"oracle-bot/internal/infra/api"
)

func main() {
	_ = godotenv.Load()

	secret := flag.String("secret", os.Getenv("ADMIN_JWT_SECRET"), "admin JWT secret")
	subject := flag.String("sub", "ops", "token subject")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "set -secret or ADMIN_JWT_SECRET")
		os.Exit(2)
	}
	tok, err := api.NewAuthManager(*secret, *ttl).Mint(*subject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
