package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/facestore"
	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Known-face store commands",
	Long:  `Commands for inspecting and syncing the known-face store.`,
}

var storeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the contents of the known-face store",
	RunE:  runStoreShow,
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeShowCmd)

	storeShowCmd.Flags().String("store", "", "Store file to read (defaults to STORE_PATH)")
	storeShowCmd.Flags().String("person", "", "Show only this person")
}

func runStoreShow(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	storePath := mustGetString(cmd, "store")
	if storePath == "" {
		storePath = cfg.Store.Path
	}
	person := mustGetString(cmd, "person")

	st, err := facestore.Load(storePath)
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}

	if info, err := os.Stat(storePath); err == nil {
		fmt.Printf("Store: %s (%d bytes, modified %s)\n",
			storePath, info.Size(), info.ModTime().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Printf("Store: %s (no file yet)\n", storePath)
	}
	fmt.Printf("Encodings: %d, dimension: %d\n\n", st.Len(), st.Dim())

	people := st.People()
	if person != "" {
		// Match loosely, so "jan-novak" finds a "Jan Novák" entry
		want := facestore.NormalizeLabel(person)
		found := false
		for label, count := range people {
			if facestore.NormalizeLabel(label) == want {
				fmt.Printf("%s: %d encodings\n", label, count)
				found = true
			}
		}
		if !found {
			return fmt.Errorf("person %q is not in the store", person)
		}
		return nil
	}

	labels := make([]string, 0, len(people))
	for label := range people {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PERSON\tENCODINGS")
	for _, label := range labels {
		fmt.Fprintf(w, "%s\t%d\n", label, people[label])
	}
	w.Flush()
	return nil
}
