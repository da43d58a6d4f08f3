// Package testdata holds a fixed operator key pair for the auth tests.
package testdata

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
)

// OperatorID is the user the test provider authenticates as.
const OperatorID = "operator-test"

// Challenge is a fixed login challenge.
var Challenge = []byte("backoffice-login-challenge-0001")

var (
	OperatorKey     ed25519.PrivateKey
	PrivateKeyPEM   string
	PublicKeyPEM    string
	operatorKeySeed = []byte("backoffice-auth-testdata-seed-32")
)

func init() {
	OperatorKey = ed25519.NewKeyFromSeed(operatorKeySeed)

	priv, err := x509.MarshalPKCS8PrivateKey(OperatorKey)
	if err != nil {
		panic(err)
	}
	pub, err := x509.MarshalPKIXPublicKey(OperatorKey.Public())
	if err != nil {
		panic(err)
	}
	PrivateKeyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: priv}))
	PublicKeyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub}))
}
