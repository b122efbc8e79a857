package main

import (
	"fmt"
	"os"

	"e6pools/pkg/catalog"
	"e6pools/pkg/config"
	"e6pools/pkg/ui"
	"github.com/spf13/cobra"
)

var showFailures bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show archived pools and failures from previous runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolVar(&showFailures, "failures", false, "list unresolved failures instead of archives")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	path := cfg.CatalogPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		ui.PrintWarning("No runs recorded yet")
		return nil
	}

	cat, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer cat.Close()

	if showFailures {
		failures, err := cat.Failures()
		if err != nil {
			return err
		}
		if len(failures) == 0 {
			ui.PrintSuccess("No unresolved failures")
			return nil
		}
		for _, f := range failures {
			subject := fmt.Sprintf("pool %d", f.GalleryID)
			if f.PostID != 0 {
				subject = fmt.Sprintf("post %d", f.PostID)
			}
			ui.PrintInfo(fmt.Sprintf("%s %s", f.At.Format("2006-01-02 15:04"), f.Stage), subject+": "+f.Reason)
		}
		return nil
	}

	archives, err := cat.Archives()
	if err != nil {
		return err
	}
	if len(archives) == 0 {
		ui.PrintWarning("No archives recorded yet")
		return nil
	}
	for _, a := range archives {
		ui.PrintInfo(fmt.Sprintf("%d %s", a.GalleryID, a.Name),
			fmt.Sprintf("%s (%d pictures, %s)", a.Path, a.Pictures, a.CreatedAt.Format("2006-01-02 15:04")))
	}
	return nil
}
