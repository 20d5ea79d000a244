package cmd

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stadtarchiv-lindau/lista-tools/internal/config"
	"github.com/stadtarchiv-lindau/lista-tools/internal/templates"
)

type initParams struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	template   string // Template name or URL; empty asks interactively
	outputPath string
	force      bool
}

func newInitCmd() *cobra.Command {
	p := initParams{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file from a template",
		Long: `Create a lista-tools config file from a built-in or custom template.

Available templates:
  standard    - Defaults with every setting explained
  unattended  - Install updates without prompting
  mirror      - Fetch releases from a local mirror

Examples:
  lista-tools init                              # Interactive mode
  lista-tools init --template=unattended        # Direct template selection
  lista-tools init --template=https://...       # Custom template URL
  lista-tools init --path ./config.yaml         # Custom output location`,
		Annotations: skipUpdateCheck(),
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.stdin = cmd.InOrStdin()
			p.stdout = cmd.OutOrStdout()
			p.stderr = cmd.ErrOrStderr()
			return runInit(p)
		},
	}

	cmd.Flags().StringVarP(&p.template, "template", "t", "", "Template name or URL")
	cmd.Flags().StringVar(&p.outputPath, "path", "", "Output path for the config file")
	cmd.Flags().BoolVar(&p.force, "force", false, "Overwrite an existing config file")

	_ = cmd.RegisterFlagCompletionFunc("template", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var completions []string
		for _, name := range templates.List() {
			completions = append(completions, fmt.Sprintf("%s\t%s", name, templates.GetDescription(name)))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runInit executes the init workflow.
func runInit(p initParams) error {
	reader := bufio.NewReader(p.stdin)

	outputPath := p.outputPath
	if outputPath == "" {
		outputPath = config.DefaultPath()
	}
	outputPath = expandHomePath(outputPath)

	if _, err := os.Stat(outputPath); err == nil && !p.force {
		_, _ = fmt.Fprintf(p.stderr, "Config file already exists at %s\n", outputPath)
		_, _ = fmt.Fprintf(p.stdout, "Overwrite? [y/N]: ")
		answer, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read input: %w", err)
		}
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			_, _ = fmt.Fprintln(p.stdout, "Aborted.")
			return nil
		}
	}

	name := p.template
	if name == "" {
		selected, err := selectTemplateInteractive(reader, p.stdout)
		if err != nil {
			return err
		}
		name = selected
	}

	var content []byte
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		var err error
		content, err = fetchRemoteTemplate(name)
		if err != nil {
			return fmt.Errorf("failed to fetch template: %w", err)
		}
	} else {
		tmpl, err := templates.Get(name)
		if err != nil {
			return fmt.Errorf("failed to load template: %w", err)
		}
		content = tmpl.Content
	}

	// Validate before writing
	if _, err := config.Parse(content, outputPath); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	parentDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(parentDir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", parentDir, err)
	}
	if err := os.WriteFile(outputPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	_, _ = fmt.Fprintf(p.stdout, "\nCreated %s\n", outputPath)
	_, _ = fmt.Fprintln(p.stdout, "\nNext steps:")
	_, _ = fmt.Fprintln(p.stdout, "  1. Edit the file to customize")
	_, _ = fmt.Fprintln(p.stdout, "  2. Run 'lista-tools version --check' to test the release URLs")

	return nil
}

// selectTemplateInteractive shows a numbered menu of templates.
func selectTemplateInteractive(reader *bufio.Reader, stdout io.Writer) (string, error) {
	templateList := templates.List()

	_, _ = fmt.Fprintln(stdout, "\nSelect a config template:")
	for i, name := range templateList {
		_, _ = fmt.Fprintf(stdout, "  %d. %-12s - %s\n", i+1, name, templates.GetDescription(name))
	}
	_, _ = fmt.Fprintf(stdout, "  %d. %-12s - Provide custom template URL\n", len(templateList)+1, "custom")

	_, _ = fmt.Fprintf(stdout, "\nSelect [1-%d]: ", len(templateList)+1)

	answer, err := reader.ReadString('\n')
	if err != nil && !(err == io.EOF && answer != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	answer = strings.TrimSpace(answer)

	num, err := strconv.Atoi(answer)
	if err != nil || num < 1 || num > len(templateList)+1 {
		return "", fmt.Errorf("invalid selection: %s", answer)
	}

	if num == len(templateList)+1 {
		_, _ = fmt.Fprint(stdout, "Enter template URL: ")
		url, err := reader.ReadString('\n')
		if err != nil && !(err == io.EOF && url != "") {
			return "", fmt.Errorf("failed to read URL: %w", err)
		}
		return strings.TrimSpace(url), nil
	}

	return templateList[num-1], nil
}

// fetchRemoteTemplate downloads a template from a URL.
func fetchRemoteTemplate(url string) ([]byte, error) {
	client := &http.Client{
		Timeout: config.DefaultTimeout,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return content, nil
}

// expandHomePath expands ~ to the user's home directory.
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
