package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dreamer/pkg/persona"
	"dreamer/pkg/utils"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored dreams, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		records, closeStore, err := openStore(cfg.Store)
		if err != nil {
			return err
		}
		defer closeStore()

		list := records.List()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			fmt.Fprintln(cmd.OutOrStdout(), utils.PrettyJSON(list))
			return nil
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No dreams recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tTONE\tMEDIA\tDREAM")
		for _, r := range list {
			media := "-"
			switch {
			case r.VideoURL != "":
				media = "image+video"
			case r.ImageURL != "":
				media = "image"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Date.Local().Format("2006-01-02 15:04"),
				utils.LimitStr(r.Analysis.EmotionalTone, 20), media, utils.LimitStr(r.Dream, 48))
		}
		return w.Flush()
	},
}

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Show the personality radar aggregated over all dreams",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		records, closeStore, err := openStore(cfg.Store)
		if err != nil {
			return err
		}
		defer closeStore()

		p := persona.Summarize(records.List())
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			fmt.Fprintln(cmd.OutOrStdout(), utils.PrettyJSON(p))
			return nil
		}
		if p.Placeholder {
			fmt.Fprintln(cmd.OutOrStdout(), "No dreams recorded yet; the radar is empty.")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Persona over %d dreams\n", p.Count)
		names := [5]string{"creativity", "logic", "emotion", "spirituality", "realism"}
		for i, v := range p.Traits.Values() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-13s %3d %s\n", names[i], v, bar(v))
		}
		return nil
	},
}

func bar(v int) string {
	b := make([]byte, v/5)
	for i := range b {
		b[i] = '#'
	}
	return string(b)
}

func init() {
	historyCmd.Flags().Bool("json", false, "print records as JSON")
	personaCmd.Flags().Bool("json", false, "print the aggregate as JSON")
}
