package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/patchwatch/patchwatch/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Long: `Walks through the patchwatch configuration: git hosting credentials,
the vulnerability database endpoint, and the optional AI reviewer. Writes
~/.patchwatch/config.json (or the file given via --config).`,
	RunE: runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = &config.Config{}
	}

	githubToken := cfg.Git.GitHub.Token
	gitlabToken := cfg.Git.GitLab.Token
	gitForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("GitHub token (leave blank to skip)").
				Description("Needed to fetch manifests via the GitHub API. Fine-grained tokens with contents:read suffice.").
				Placeholder("ghp_...  (optional)").
				EchoMode(huh.EchoModePassword).
				Value(&githubToken),
			huh.NewInput().
				Title("GitLab token (leave blank to skip)").
				Placeholder("glpat-...  (optional)").
				EchoMode(huh.EchoModePassword).
				Value(&gitlabToken),
		),
	)
	if err := gitForm.Run(); err != nil {
		return fmt.Errorf("setup aborted: %w", err)
	}
	cfg.Git.GitHub.Token = githubToken
	cfg.Git.GitLab.Token = gitlabToken

	oracleURL := cfg.Oracle.BaseURL
	if oracleURL == "" {
		oracleURL = config.DefaultOracleURL
	}
	oracleToken := cfg.Oracle.Token
	oracleForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Vulnerability database endpoint").
				Description("OSS-Index-style component-report API.").
				Value(&oracleURL),
			huh.NewInput().
				Title("Vulnerability database token (leave blank for anonymous)").
				EchoMode(huh.EchoModePassword).
				Value(&oracleToken),
		),
	)
	if err := oracleForm.Run(); err != nil {
		return fmt.Errorf("setup aborted: %w", err)
	}
	cfg.Oracle.BaseURL = oracleURL
	cfg.Oracle.Token = oracleToken

	openAIKey := cfg.AI.OpenAIKey
	aiModel := cfg.AI.Model
	if aiModel == "" {
		aiModel = "gpt-4o"
	}
	aiReview := cfg.Scan.AIReview
	aiForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("OpenAI API Key (leave blank to skip)").
				Description("Only needed for the advisory manifest review. Scan results work without it.").
				Placeholder("sk-...  (optional)").
				EchoMode(huh.EchoModePassword).
				Value(&openAIKey),
			huh.NewSelect[string]().
				Title("Default model").
				Options(
					huh.NewOption("gpt-4o", "gpt-4o"),
					huh.NewOption("gpt-4o-mini", "gpt-4o-mini"),
					huh.NewOption("gpt-4.1", "gpt-4.1"),
					huh.NewOption("gpt-4.1-mini", "gpt-4.1-mini"),
					huh.NewOption("o3", "o3"),
				).
				Value(&aiModel),
			huh.NewConfirm().
				Title("Enable AI review on every scan?").
				Value(&aiReview),
		),
	)
	if err := aiForm.Run(); err != nil {
		return fmt.Errorf("setup aborted: %w", err)
	}
	cfg.AI.OpenAIKey = openAIKey
	cfg.AI.Model = aiModel
	if openAIKey != "" {
		cfg.AI.Provider = "openai"
	}
	cfg.Scan.AIReview = aiReview && openAIKey != ""

	if err := config.Save(cfg, cfgFile); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println("Configuration saved. Try: patchwatch scan --repo https://github.com/example/myapp")
	return nil
}
