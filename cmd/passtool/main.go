// passtool creates password users directly in the store, for seeding
// reviewers, or prints a bcrypt hash with -hash-only.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/identity"
	"kurudhi-koodai/store/backend"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

var (
	hashOnly    = flag.Bool("hash-only", false, "Only print the bcrypt hash of the password.")
	email       = flag.String("email", "", "Email of the user to create.")
	displayName = flag.String("display-name", "", "Display name of the user to create.")
	reviewer    = flag.Bool("reviewer", false, "Give the new user the reviewer role.")

	backendFlags = &backend.Flags{}
)

func readPassword() ([]byte, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	pass, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("while reading password: %w", err)
	}
	return pass, nil
}

func do(ctx context.Context) error {
	pass, err := readPassword()
	if err != nil {
		return err
	}

	if *hashOnly {
		hash, err := bcrypt.GenerateFromPassword(pass, 0)
		if err != nil {
			return fmt.Errorf("while hashing password: %w", err)
		}
		fmt.Println(string(hash))
		return nil
	}

	s, err := backend.Open(ctx, backendFlags)
	if err != nil {
		return fmt.Errorf("while opening store: %w", err)
	}
	defer s.Close()

	var roles []string
	if *reviewer {
		roles = append(roles, dbtypes.RoleReviewer)
	}

	user, err := identity.New(s, "", 0, time.Now).SignUp(ctx, *email, *displayName, string(pass), roles...)
	if err != nil {
		return err
	}
	fmt.Println(user.ID)
	return nil
}

func main() {
	backendFlags.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := do(context.Background()); err != nil {
		slog.Error("Error", slog.Any("err", err))
		os.Exit(1)
	}
}
