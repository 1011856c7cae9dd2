package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/cuemby/restbackup/pkg/apierr"
)

var htpasswdCmd = &cobra.Command{
	Use:   "htpasswd <file> <username>",
	Short: "Add or update a user in an htpasswd-format credentials file",
	Long: `htpasswd creates the file if it does not exist, replaces any
existing entry for username, and leaves every other line untouched.
Passwords are always hashed with bcrypt; the server also accepts
apr1, SHA1, and crypt(3) DES hashes written by other tools.`,
	Args: cobra.ExactArgs(2),
	RunE: runHtpasswd,
}

func runHtpasswd(cmd *cobra.Command, args []string) error {
	path, username := args[0], args[1]

	password, err := readPassword()
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "failed to hash password", err)
	}

	lines, err := readLines(path)
	if err != nil {
		return err
	}

	lines = upsertUser(lines, username, string(hash))

	return writeLines(path, lines)
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "New password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", apierr.Wrap(apierr.Internal, "failed to read password", err)
	}
	fmt.Fprint(os.Stderr, "Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", apierr.Wrap(apierr.Internal, "failed to read password", err)
	}
	if string(pw) != string(confirm) {
		return "", apierr.New(apierr.Internal, "passwords do not match")
	}
	return string(pw), nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apierr.Wrap(apierr.Internal, "failed to open credentials file", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, apierr.Wrap(apierr.Internal, "failed to read credentials file", err)
	}
	return lines, nil
}

func upsertUser(lines []string, username, hash string) []string {
	entry := username + ":" + hash
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		idx := strings.IndexByte(trimmed, ':')
		if idx > 0 && trimmed[:idx] == username {
			lines[i] = entry
			return lines
		}
	}
	return append(lines, entry)
}

func writeLines(path string, lines []string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "failed to write credentials file", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return apierr.Wrap(apierr.Internal, "failed to write credentials file", err)
		}
	}
	return w.Flush()
}
