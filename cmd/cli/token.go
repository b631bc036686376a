package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/credkit/pkg/jwt"
	"github.com/turtacn/credkit/pkg/utils"
)

func (a *app) tokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Work with identity tokens",
	}
	tokenCmd.AddCommand(a.tokenInspectCommand())
	return tokenCmd
}

func (a *app) tokenInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect TOKEN",
		Short: `Decode a token and show its claims ("-" reads it from stdin)`,
		Args:  cobra.ExactArgs(1),
		RunE: a.traced(func(cmd *cobra.Command, args []string) error {
			wire := args[0]
			if wire == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				wire = strings.TrimSpace(string(b))
			}
			token, err := jwt.Parse(wire)
			if err != nil {
				return err
			}

			now := time.Now()
			h, b := token.Header(), token.Body()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "algorithm:     %s\n", h.Algorithm)
			fmt.Fprintf(w, "key id:        %s\n", h.KeyID)
			fmt.Fprintf(w, "type:          %s\n", h.Type)
			fmt.Fprintf(w, "content type:  %s\n", h.ContentType)
			fmt.Fprintf(w, "identity:      %s\n", claimOrError(token.Identity()))
			fmt.Fprintf(w, "app id:        %s\n", claimOrError(token.AppID()))
			fmt.Fprintf(w, "issued at:     %s\n", utils.FormatTimestamp(utils.UnixToTime(b.IssuedAt)))
			fmt.Fprintf(w, "expires at:    %s\n", utils.FormatTimestamp(token.ExpiresAt()))
			if len(b.AdditionalData) > 0 {
				fmt.Fprintf(w, "additional:    %s\n", utils.FormatKeyValues(b.AdditionalData))
			}
			fmt.Fprintf(w, "expired:       %t\n", token.IsExpired(now))
			fmt.Fprintf(w, "renewal due:   %t\n", token.IsExpired(now.Add(a.cfg.Token.ExpirationMargin)))
			return nil
		}),
	}
}

func claimOrError(v string, err error) string {
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return v
}
