package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"yashubustudio/lostfound/classifier"
)

var categoriesJSON bool

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the loaded category catalog",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		cat, err := loadCatalog(cfg, logger)
		if err != nil {
			return err
		}
		if categoriesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cat)
		}
		printCatalog(cat)
		return nil
	},
}

func init() {
	categoriesCmd.Flags().BoolVar(&categoriesJSON, "json", false, "print the catalog as JSON")
}

func printCatalog(cat *classifier.Catalog) {
	for _, l := range cat.Large {
		headerColor.Printf("%s (%s)\n", l.Name, l.ID)
		for _, m := range l.Medium {
			fmt.Printf("  %s %-20s priority=%-4d keywords=%d\n",
				runewidth.FillRight(m.Name, 16), m.ID, m.Priority, len(m.Keywords))
		}
	}
	st := cat.Stats()
	fmt.Printf("\n%d large, %d medium, %d keywords\n", st.Large, st.Medium, st.Keywords)
}
