// Command devtoken mints identity tokens for local development.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/sharetube/party/internal/auth"
)

func main() {
	secret := pflag.String("secret", os.Getenv("SERVER_SECRET"), "Secret shared with the server")
	issuer := pflag.String("jwt-issuer", "sharetube", "Token issuer")
	userID := pflag.String("user-id", "", "User id, random when empty")
	name := pflag.String("name", "", "Display name claim")
	ttl := pflag.Duration("ttl", 24*time.Hour, "Token lifetime")
	pflag.Parse()

	if *secret == "" {
		log.Fatal("secret must be set")
	}
	if *userID == "" {
		*userID = uuid.NewString()
	}

	token, err := auth.NewJWTResolver(*secret, *issuer).IssueToken(*userID, *name, *ttl)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(token)
}
