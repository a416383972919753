package commands

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"google.golang.org/genai"
)

// NewDiagnoseCmd constructs the `habitloop diagnose` command, which lists the
// Gemini models visible to the configured API key and reports whether each
// can embed and/or chat. Useful when an embed or generate call fails with a
// model-not-found error.
func NewDiagnoseCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "List available Gemini models and their capabilities",
		Long: `Query the Gemini API for the models available to GOOGLE_API_KEY and
print whether each supports embedding and chat generation.

By default only flash and embedding models are shown, since those are the
ones this system configures. Use --all to list everything.

Examples:
  habitloop diagnose
  habitloop diagnose --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			apiKey := os.Getenv("GOOGLE_API_KEY")
			if apiKey == "" {
				return fmt.Errorf("diagnose: GOOGLE_API_KEY must be set")
			}

			client, err := genai.NewClient(ctx, &genai.ClientConfig{
				APIKey:  apiKey,
				Backend: genai.BackendGeminiAPI,
			})
			if err != nil {
				return fmt.Errorf("diagnose: failed to create client: %w", err)
			}

			fmt.Printf("%-40s | %-10s | %s\n", "MODEL NAME", "CAN EMBED?", "CAN CHAT?")
			fmt.Println(strings.Repeat("-", 70))

			for m, err := range client.Models.All(ctx) {
				if err != nil {
					return fmt.Errorf("diagnose: list models: %w", err)
				}

				name := strings.ToLower(m.Name)
				if !all && !strings.Contains(name, "flash") && !strings.Contains(name, "embed") {
					continue
				}

				canEmbed := slices.Contains(m.SupportedActions, "embedContent")
				canChat := slices.Contains(m.SupportedActions, "generateContent")

				fmt.Printf("%-40s | %-10s | %s\n", m.Name, yesNo(canEmbed), yesNo(canChat))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "List every model, not just flash and embedding models")

	return cmd
}

// yesNo renders a capability flag for the diagnose table.
func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}
