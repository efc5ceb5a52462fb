// Genera el hash argon2id de un password de operador para pegar en
// config.yaml (sección operators).
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/dropDatabas3/keybridge/internal/security/password"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Uso: go run hash_operator.go <password>")
	}

	phc, err := password.Hash(password.Default, os.Args[1])
	if err != nil {
		log.Fatalf("hash: %v", err)
	}
	fmt.Println(phc)
}
