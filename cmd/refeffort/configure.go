package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/config"
	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store GitHub and JIRA credentials (OS keychain when available)",
	Long: `Prompts for the GitHub user, GitHub token and JIRA token. Secrets go to the
OS keychain when one is available and to the credentials file otherwise.
Leave an answer empty to keep the current value.`,
	RunE: runConfigure,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cm := config.NewCredentialManager()
	km := config.NewKeyringManager()
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("refeffort credentials")
	if km.IsAvailable() {
		fmt.Println("Secrets will be stored in the OS keychain.")
	} else {
		fmt.Printf("OS keychain not available, secrets will be stored in %s\n", cm.ConfigPath())
	}
	fmt.Println()

	var creds config.Credentials

	current, _ := km.Get(config.KeyringGitHubUserItem)
	if current != "" {
		fmt.Printf("GitHub user [%s]: ", current)
	} else {
		fmt.Print("GitHub user: ")
	}
	user, _ := reader.ReadString('\n')
	creds.GitHubUser = strings.TrimSpace(user)

	token, err := cm.ReadSecret(secretPrompt(km, config.KeyringGitHubTokenItem, "GitHub token"))
	if err != nil {
		return err
	}
	creds.GitHubToken = token

	token, err = cm.ReadSecret(secretPrompt(km, config.KeyringJiraTokenItem, "JIRA token"))
	if err != nil {
		return err
	}
	creds.JiraToken = token

	if creds == (config.Credentials{}) {
		fmt.Println("Nothing changed.")
		return nil
	}
	if err := cm.SaveCredentials(creds); err != nil {
		return err
	}
	fmt.Println("Credentials saved.")
	return nil
}

func secretPrompt(km *config.KeyringManager, item, label string) string {
	if current, _ := km.Get(item); current != "" {
		return fmt.Sprintf("%s [%s]: ", label, config.MaskSecret(current))
	}
	return label + ": "
}
