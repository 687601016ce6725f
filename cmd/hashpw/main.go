// Command hashpw prints the bcrypt hash for TIMETRIAL_PASSWORD_HASH.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Dosada05/lan-tournament/utils"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	password := ""
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			logger.Error("failed to read password from stdin", slog.Any("error", err))
			os.Exit(1)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		logger.Error("usage: hashpw <password> (or pass it on stdin)")
		os.Exit(2)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Println(hash)
}
