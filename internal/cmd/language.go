package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-uishell/internal/config"
	"github.com/wethinkt/go-uishell/internal/i18n"
)

var languageCmd = &cobra.Command{
	Use:   "language [lang]",
	Short: "Get or set the display language",
	Long: `Get or set the display language. Use a BCP 47 tag (e.g., en, es, zh-Hans).

Examples:
  uishell language          # show current language
  uishell language zh-Hans  # set to Chinese (Simplified)`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stored, err := config.Load()
		if err != nil {
			return err
		}

		if len(args) == 0 {
			lang := i18n.ResolveLocale(cfg.Language)
			fmt.Fprintln(cmd.OutOrStdout(), i18n.Tf("cmd.language.current", "Current language: %s", lang))
			return nil
		}

		stored.Language = args[0]
		if err := config.Save(stored); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), i18n.Tf("cmd.language.set", "Language set to: %s", args[0]))
		return nil
	},
}
