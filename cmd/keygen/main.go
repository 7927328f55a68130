package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/hyrelay/hyrelay/internal/crypto"
)

// keygen prints fresh secrets for .env.local: the channel encryption master
// key and an RSA key for RS256 token signing.
func main() {
	channelKey, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("failed to generate channel key: %v\n", err)
		os.Exit(1)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		fmt.Printf("failed to generate RSA key: %v\n", err)
		os.Exit(1)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	fmt.Println("--- COPY BELOW TO .env.local ---")
	fmt.Printf("CHANNEL_SECRET_KEY=%s\n", channelKey)
	fmt.Printf("JWT_PRIVATE_KEY=\"%s\"\n", string(privPEM))
	fmt.Println("--------------------------------")
}
