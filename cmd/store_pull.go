package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/facestore/postgres"
	"github.com/spf13/cobra"
)

var storePullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull the store from PostgreSQL",
	Long: `Fetch the known faces from PostgreSQL and write them to the local
store file, replacing whatever is there.`,
	RunE: runStorePull,
}

func init() {
	storeCmd.AddCommand(storePullCmd)

	storePullCmd.Flags().String("output", "", "Store file to write (defaults to STORE_PATH)")
}

func runStorePull(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	outputPath := mustGetString(cmd, "output")
	if outputPath == "" {
		outputPath = cfg.Store.Path
	}

	pool, err := postgres.Connect(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	repo := postgres.NewRepository(pool)
	st, err := repo.Pull(ctx)
	if err != nil {
		return fmt.Errorf("failed to pull store: %w", err)
	}

	if err := st.Save(outputPath); err != nil {
		return fmt.Errorf("failed to save store: %w", err)
	}

	fmt.Printf("Pulled %d encodings for %d people into %s\n",
		st.Len(), len(st.People()), outputPath)
	return nil
}
