package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/facestore"
	"github.com/kozaktomas/facewatch/internal/facestore/postgres"
	"github.com/spf13/cobra"
)

var storePushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the local store to PostgreSQL",
	Long: `Replace the known faces in PostgreSQL with the contents of the local
store file. Other machines can then pull the same store.`,
	RunE: runStorePush,
}

func init() {
	storeCmd.AddCommand(storePushCmd)

	storePushCmd.Flags().String("store", "", "Store file to push (defaults to STORE_PATH)")
	storePushCmd.Flags().Bool("dry-run", false, "Show what would be pushed without writing")
}

func runStorePush(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	storePath := mustGetString(cmd, "store")
	if storePath == "" {
		storePath = cfg.Store.Path
	}

	st, err := facestore.Load(storePath)
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}
	if st.Len() == 0 {
		return fmt.Errorf("store %s is empty, nothing to push", storePath)
	}

	if mustGetBool(cmd, "dry-run") {
		fmt.Printf("Would push %d encodings for %d people to PostgreSQL\n",
			st.Len(), len(st.People()))
		return nil
	}

	pool, err := postgres.Connect(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	repo := postgres.NewRepository(pool)
	if err := repo.Push(ctx, st); err != nil {
		return fmt.Errorf("failed to push store: %w", err)
	}

	fmt.Printf("Pushed %d encodings for %d people\n", st.Len(), len(st.People()))
	return nil
}
