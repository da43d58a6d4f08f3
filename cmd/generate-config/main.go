package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/backoffice/internal/config"
)

const header = `# Backoffice console configuration example
# Copy this file to config.yaml and customize as needed.
#
# Secrets are read from the environment (or a .env file):
#   BACKEND_BASE_URL, BACKEND_TOKEN   REST backend
#   UPLOAD_GATEWAY, UPLOAD_BUCKET     image upload gateway
#   UPLOAD_ENDPOINT, UPLOAD_PUBLIC_BASE_URL
#   LOG_LEVEL
#   ADMIN_ED25519_PUBKEY              ed25519 operator login
#   CLERK_API                         clerk login

`

func main() {
	cfg := config.Default()

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating YAML: %v\n", err)
		os.Exit(1)
	}
	output := header + string(yamlData)

	outputFile := "config.example.yaml"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	if outputFile == "-" {
		fmt.Print(output)
		return
	}
	if err := os.WriteFile(outputFile, []byte(output), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated example config: %s\n", outputFile)
}
