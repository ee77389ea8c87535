package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// defaultFrameworkRepo and defaultFrameworkTag point at Magento 2 Open
// Source, the reference Target Framework codebase this tool was built
// against. Point --repo at any other convention-compatible codebase.
const (
	defaultFrameworkRepo = "https://github.com/magento/magento2.git"
	defaultFrameworkTag  = "2.4.7"
)

var (
	downloadTarget  string
	downloadVersion string
	downloadRepo    string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Clone a Target Framework reference codebase for indexing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := downloadRepo
		if repo == "" {
			repo = defaultFrameworkRepo
		}
		tag := downloadVersion
		if tag == "" {
			tag = defaultFrameworkTag
		}
		target := downloadTarget
		if target == "" {
			target = "./magento2"
		}

		fmt.Printf("repository: %s\n", repo)
		fmt.Printf("version:    %s\n", tag)
		fmt.Printf("target:     %s\n", target)

		if info, err := os.Stat(target); err == nil && info.IsDir() {
			fmt.Println("target directory already exists, checking for updates...")

			fetch := exec.Command("git", "-C", target, "fetch", "--tags")
			fetch.Stdout, fetch.Stderr = os.Stdout, os.Stderr
			if err := fetch.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: git fetch failed: %v\n", err)
				return nil
			}

			checkout := exec.Command("git", "-C", target, "checkout", tag)
			checkout.Stdout, checkout.Stderr = os.Stdout, os.Stderr
			if err := checkout.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: could not check out %s: %v\n", tag, err)
				return nil
			}
			fmt.Printf("checked out %s\n", tag)
			return summarizeDownload(target)
		}

		if parent := filepath.Dir(target); parent != "." {
			if err := os.MkdirAll(parent, 0755); err != nil {
				return fmt.Errorf("creating target parent directory: %w", err)
			}
		}

		fmt.Println("cloning (this may take a few minutes)...")
		clone := exec.Command("git", "clone", "--depth", "1", "--branch", tag, repo, target)
		clone.Stdout, clone.Stderr = os.Stdout, os.Stderr
		if err := clone.Run(); err != nil {
			return fmt.Errorf("git clone failed: %w", err)
		}

		fmt.Printf("downloaded to %s\n", target)
		return summarizeDownload(target)
	},
}

// summarizeDownload walks target and prints a file-type breakdown, the
// same shape run_index's counters report after indexing, so a download
// gives an immediate sense of what indexing will find.
func summarizeDownload(target string) error {
	var php, js, xml, other int
	err := filepath.Walk(target, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		switch {
		case strings.HasSuffix(path, ".php"), strings.HasSuffix(path, ".phtml"):
			php++
		case strings.HasSuffix(path, ".js"):
			js++
		case strings.HasSuffix(path, ".xml"):
			xml++
		default:
			other++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", target, err)
	}
	fmt.Printf("php/phtml: %d, js: %d, xml: %d, other: %d\n", php, js, xml, other)
	return nil
}

func init() {
	downloadCmd.Flags().StringVar(&downloadTarget, "target", "", "Destination directory (default ./magento2)")
	downloadCmd.Flags().StringVar(&downloadVersion, "version", "", "Git tag to check out (default 2.4.7)")
	downloadCmd.Flags().StringVar(&downloadRepo, "repo", "", "Git repository URL (default the Magento 2 Open Source repo)")
}
