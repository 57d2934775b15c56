package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/noah-isme/glassworks/internal/app"
)

// Prints an ADMIN_PASSWORD_HASH value for the given password, read from -password or stdin.
func main() {
	password := flag.String("password", "", "password to hash; read from stdin when empty")
	flag.Parse()

	value := *password
	if value == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "read password:", err)
			os.Exit(1)
		}
		value = strings.TrimRight(line, "\r\n")
	}

	hash, err := app.HashPassword(value)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash password:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
