package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aussiebroadwan/uiauth/pkg/macaroonx"
	"github.com/spf13/cobra"
)

var inspectJSON bool

var inspectTokenCmd = &cobra.Command{
	Use:   "inspect-token TOKEN",
	Short: "Decode a macaroon token and print its caveats",
	Long: `Decode a macaroon token and print its location, identifier and caveats.
When UIAUTH_MACAROON_SECRET_KEY is set the signature is checked as well.
Caveats are not evaluated.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspectToken(cmd.OutOrStdout(), args[0], os.Getenv("UIAUTH_MACAROON_SECRET_KEY"), inspectJSON)
	},
}

func init() {
	inspectTokenCmd.Flags().BoolVar(&inspectJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(inspectTokenCmd)
}

type tokenReport struct {
	Location  string   `json:"location"`
	ID        string   `json:"id"`
	Caveats   []string `json:"caveats"`
	Signature string   `json:"signature"` // "valid", "invalid" or "unchecked"
}

func inspectToken(w io.Writer, token, secret string, asJSON bool) error {
	tok, err := macaroonx.Deserialize(token)
	if err != nil {
		return err
	}

	report := tokenReport{
		Location:  tok.Location(),
		ID:        tok.ID(),
		Caveats:   tok.Caveats(),
		Signature: "unchecked",
	}
	if secret != "" {
		report.Signature = checkSignature(tok, secret)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(w, "location:  %s\n", report.Location)
	fmt.Fprintf(w, "id:        %s\n", report.ID)
	fmt.Fprintf(w, "signature: %s\n", report.Signature)
	fmt.Fprintln(w, "caveats:")
	for _, c := range report.Caveats {
		fmt.Fprintf(w, "  %s\n", c)
	}
	return nil
}

func checkSignature(tok macaroonx.Token, secret string) string {
	acceptAll := macaroonx.NewVerifier().SatisfyGeneral(func(context.Context, macaroonx.Context, string) bool {
		return true
	})
	if err := acceptAll.Verify(context.Background(), tok, []byte(secret), macaroonx.Context{}); err != nil {
		return "invalid"
	}
	return "valid"
}
