package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/core/evidence"
	"github.com/example/triage/internal/core/signature"
)

// SignatureCmd returns the signature command
func SignatureCmd() *cobra.Command {
	var message, stackFile string

	cmd := &cobra.Command{
		Use:   "signature",
		Short: "Compute the signature of an error without storing anything",
		Long: `Normalize an error message and stack trace and print the signature that
would group it. Useful to check why two failures do or do not share a group.

Examples:
  triage signature --message "TimeoutError: waiting for locator" --stack trace.txt
  pbpaste | triage signature --message "AssertionError: expected 1" --stack -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("--message is required")
			}

			var stack string
			if stackFile != "" {
				in, err := openInput(stackFile)
				if err != nil {
					return err
				}
				defer in.Close()
				data, err := io.ReadAll(in)
				if err != nil {
					return fmt.Errorf("failed to read stack trace: %w", err)
				}
				stack = string(data)
			}

			writeSignature(cmd.OutOrStdout(), message, stack)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Error message")
	cmd.Flags().StringVar(&stackFile, "stack", "", "File holding the stack trace (- for stdin)")

	return cmd
}

func writeSignature(out io.Writer, message, stack string) {
	ev := evidence.Normalize(message, stack)

	fmt.Fprintf(out, "Signature:  %s\n", signature.Generate(ev))
	fmt.Fprintf(out, "Error type: %s\n", ev.ErrorType)
	fmt.Fprintf(out, "Canonical:  %s\n", signature.Canonical(ev))
	if len(ev.FileReferences) > 0 {
		fmt.Fprintln(out, "Frames:")
		for _, ref := range ev.FileReferences {
			fmt.Fprintf(out, "  %s\n", ref)
		}
	}
}
