// Command auctioneer-keytool manages the operator key that signs settlement
// receipts. It can generate a fresh key, encrypt an existing solana-keygen
// keypair file, or print the public key of an encrypted file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/crypto"
)

const passwordEnv = "AUCTIONEER_KEY_PASSWORD"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "generate":
		err = generate(os.Args[2:])
	case "encrypt":
		err = encrypt(os.Args[2:])
	case "inspect":
		err = inspect(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "keytool: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: auctioneer-keytool <command> [flags]

commands:
  generate -out FILE     create a new operator key and write it encrypted
  encrypt -in FILE -out FILE
                         encrypt a solana-keygen keypair file
  inspect -in FILE       print the public key of an encrypted key file

The password is read from $`+passwordEnv+`.`)
}

func password() (string, error) {
	pw := os.Getenv(passwordEnv)
	if pw == "" {
		return "", fmt.Errorf("%s is not set", passwordEnv)
	}
	return pw, nil
}

func generate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	out := fs.String("out", "operator.key.json", "output file")
	_ = fs.Parse(args)

	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	return writeEncrypted(key, *out)
}

func encrypt(args []string) error {
	fs := flag.NewFlagSet("encrypt", flag.ExitOnError)
	in := fs.String("in", "", "solana-keygen keypair file")
	out := fs.String("out", "operator.key.json", "output file")
	_ = fs.Parse(args)
	if *in == "" {
		return fmt.Errorf("encrypt: -in is required")
	}

	key, err := crypto.LoadKey(crypto.KeyConfig{KeypairPath: *in})
	if err != nil {
		return err
	}
	return writeEncrypted(key, *out)
}

func inspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	in := fs.String("in", "", "encrypted key file")
	_ = fs.Parse(args)
	if *in == "" {
		return fmt.Errorf("inspect: -in is required")
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	var header struct {
		Version   int    `json:"version"`
		PublicKey string `json:"public_key"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return fmt.Errorf("inspect: %s is not an encrypted key file: %w", *in, err)
	}
	fmt.Printf("version:    %d\npublic key: %s\n", header.Version, header.PublicKey)

	if pw := os.Getenv(passwordEnv); pw != "" {
		key, err := crypto.DecryptKey(data, pw)
		if err != nil {
			return fmt.Errorf("inspect: %w", err)
		}
		fmt.Printf("password:   ok (%s)\n", key.PublicKey())
	}
	return nil
}

func writeEncrypted(key solana.PrivateKey, out string) error {
	pw, err := password()
	if err != nil {
		return err
	}
	data, err := crypto.EncryptKey(key, pw)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("wrote %s\npublic key: %s\n", out, key.PublicKey())
	return nil
}
