package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aussiebroadwan/uiauth/pkg/cryptox"
	"github.com/spf13/cobra"
)

var hashPepperFile string

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash a password read from stdin for direct insertion into the user store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cryptox.SetPepperPath(hashPepperFile)

		hash, err := hashPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
		return err
	},
}

func init() {
	hashPasswordCmd.Flags().StringVar(&hashPepperFile, "pepper-file", "pepper", "path to the server pepper file")
	rootCmd.AddCommand(hashPasswordCmd)
}

// hashPassword hashes the first line of r.
func hashPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is empty")
	}
	return cryptox.HashPassword(password)
}
