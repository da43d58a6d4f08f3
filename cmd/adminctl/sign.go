package main

import (
	"bufio"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func loadPrivateKey(filename string) (ed25519.PrivateKey, error) {
	privKeyBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(privKeyBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	privKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	edPriv, ok := privKey.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an Ed25519 private key")
	}
	return edPriv, nil
}

// signChallenge signs a base64 login challenge and returns the base64 signature
// the login page expects.
func signChallenge(key ed25519.PrivateKey, challengeB64 string) (string, error) {
	challenge, err := base64.StdEncoding.DecodeString(strings.TrimSpace(challengeB64))
	if err != nil {
		return "", fmt.Errorf("invalid base64 challenge: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(key, challenge)), nil
}

func signCmd() *cobra.Command {
	var keyPath string
	cmd := &cobra.Command{
		Use:   "sign [challenge]",
		Short: "Sign a login challenge with the operator key",
		Long:  "Sign a login challenge with the operator key. Without an argument challenges are read one per line until 'quit'.",
		Args:  cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadPrivateKey(keyPath)
			if err != nil {
				return fmt.Errorf("loading private key: %w", err)
			}
			if len(args) == 1 {
				sig, err := signChallenge(key, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), sig)
				return nil
			}
			return signLoop(cmd, key)
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "privkey.pem", "PKCS#8 PEM file holding the Ed25519 private key")
	return cmd
}

func signLoop(cmd *cobra.Command, key ed25519.PrivateKey) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Enter challenges one by one. Type 'quit' to exit.")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, promptStyle.Render("Enter challenge (base64): "))
		if !scanner.Scan() {
			break
		}

		challengeB64 := strings.TrimSpace(scanner.Text())
		if challengeB64 == "" {
			continue
		}
		if challengeB64 == "quit" {
			break
		}

		sig, err := signChallenge(key, challengeB64)
		if err != nil {
			fmt.Fprintln(out, valueStyle.Render("Error: invalid base64"))
			continue
		}
		fmt.Fprintln(out, valueStyle.Render("Signature: "+sig))
	}
	return scanner.Err()
}
