package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"harvester/internal/core"
	"harvester/internal/logger"
	"harvester/internal/sources"
)

var (
	sourcesJSON bool
	readPager   bool
)

type sourceInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Transport string `json:"transport"`
	Enabled   bool   `json:"enabled"`
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List registered sources",
	Run: func(cmd *cobra.Command, args []string) {
		all := sources.List(true)
		if sourcesJSON {
			infos := make([]sourceInfo, 0, len(all))
			for _, source := range all {
				infos = append(infos, sourceInfo{
					ID:        source.ID,
					Name:      source.Name,
					Kind:      string(source.Kind),
					Transport: string(source.Transport),
					Enabled:   source.Enabled,
				})
			}
			printJSON(infos)
			return
		}
		for _, source := range all {
			suffix := ""
			if !source.Enabled {
				suffix = " [disabled]"
			}
			fmt.Printf("- %s (%s, %s)%s\n", source.ID, source.Kind, source.Transport, suffix)
		}
	},
}

var readCmd = &cobra.Command{
	Use:   "read SOURCE_ID ITEM_ID",
	Short: "Print a stored blog item's content",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		source, err := sources.Get(args[0])
		if err != nil {
			logger.Error("Unknown source", err)
			os.Exit(1)
		}
		if source.Kind != core.KindBlog {
			fmt.Fprintln(os.Stderr, "read is only supported for blog sources")
			os.Exit(2)
		}
		contentPath := newStorage().ContentPath(args[0], args[1])
		content, err := os.ReadFile(contentPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "content not found: %s\n", contentPath)
			os.Exit(2)
		}
		if readPager {
			if err := pageContent(string(content)); err == nil {
				return
			}
		}
		os.Stdout.Write(content)
	},
}

func pageContent(content string) error {
	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = "less"
	}
	parts := strings.Fields(pager)
	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "JSON output")
	readCmd.Flags().BoolVar(&readPager, "pager", false, "display with $PAGER")
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(readCmd)
}
