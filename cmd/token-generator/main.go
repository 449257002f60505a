// Command token-generator mints a signed access token for local development
// and for seeding integration environments. The signing secret comes from the
// -secret flag or, when the flag is empty, from CIVORA_AUTH_JWT_SECRET.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/civora/civora-api/internal/config"
	"github.com/civora/civora-api/internal/service/auth"
)

func main() {
	secret := flag.String("secret", "", "JWT signing secret (falls back to CIVORA_AUTH_JWT_SECRET)")
	user := flag.String("user", "", "user UUID the token is issued for (random when empty)")
	cities := flag.String("cities", "", "comma-separated city IDs the token grants access to")
	admin := flag.Bool("admin", false, "grant platform-wide admin access")
	lifetime := flag.Int("lifetime", 60, "token lifetime in minutes")
	flag.Parse()

	if *secret == "" {
		*secret = os.Getenv("CIVORA_AUTH_JWT_SECRET")
	}
	if *secret == "" {
		fmt.Fprintln(os.Stderr, "error: no signing secret (use -secret or CIVORA_AUTH_JWT_SECRET)")
		os.Exit(1)
	}

	userID := uuid.New()
	if *user != "" {
		parsed, err := uuid.Parse(*user)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid user UUID %q: %v\n", *user, err)
			os.Exit(1)
		}
		userID = parsed
	}

	var cityIDs []string
	for _, id := range strings.Split(*cities, ",") {
		if id = strings.TrimSpace(id); id != "" {
			cityIDs = append(cityIDs, id)
		}
	}

	jwtService, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            *secret,
		TokenLifetimeMinutes: *lifetime,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	token, err := jwtService.GenerateToken(context.Background(), userID, cityIDs, *admin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User:  %s\n", userID)
	if len(cityIDs) > 0 {
		fmt.Printf("Cities: %s\n", strings.Join(cityIDs, ", "))
	}
	fmt.Printf("Admin: %t\n", *admin)
	fmt.Printf("Token: %s\n", token)
}
