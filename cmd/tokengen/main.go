// Command tokengen issues bearer tokens signed with the configured secret.
// It is meant for local development and smoke tests.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"marketplace/internal/auth"
	"marketplace/internal/config"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	subject := flag.String("sub", "", "Token subject (required)")
	roles := flag.String("roles", "", "Comma-separated roles, e.g. seller,admin")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "tokengen: -sub is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env", "error", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var roleList []string
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleList = append(roleList, r)
		}
	}

	token, err := auth.NewAuthenticator(cfg.Auth).Issue(*subject, roleList)
	if err != nil {
		slog.Error("Failed to issue token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
