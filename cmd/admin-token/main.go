package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"printsync/internal/config"
	"printsync/internal/service"
)

// admin-token prints a bearer token for the admin API
func main() {
	subject := flag.String("subject", "admin", "token subject, usually the operator's email")
	role := flag.String("role", service.RoleAdmin, "role claim")
	expiry := flag.Duration("expiry", 0, "token lifetime (defaults to JWT_ACCESS_EXPIRY minutes)")
	flag.Parse()

	cfg := config.Load()

	lifetime := *expiry
	if lifetime == 0 {
		lifetime = time.Duration(cfg.JWT.AccessExpiry) * time.Minute
	}

	token, err := service.NewTokenService(cfg.JWT.Secret, lifetime).Issue(*subject, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
