/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Seednode/kakaroto/game"
	"github.com/Seednode/kakaroto/store"
	"github.com/Seednode/kakaroto/tui"
)

const playLibraryLimit = 1000

func openStore(cfg *Config) (*store.DB, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return store.Open(cfg.databaseType, cfg.database)
}

// importCollections stores every collection found at paths. Collections
// with an id update the stored one, or are created if it no longer exists.
func importCollections(ctx context.Context, db *store.DB, paths []string) (int, error) {
	imported := 0

	for _, path := range paths {
		collections, err := store.ReadCollections(path)
		if err != nil {
			return imported, err
		}

		for _, c := range collections {
			_, err := db.PutCollection(ctx, c)
			if errors.Is(err, store.ErrCollectionNotFound) {
				c.ID = 0
				_, err = db.PutCollection(ctx, c)
			}
			if err != nil {
				return imported, err
			}
			imported++
		}
	}

	return imported, nil
}

func newImportCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import PATH...",
		Short: "Import collections of challenges from YAML or JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := importCollections(cmd.Context(), db, args)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d collection(s)\n", n)

			return nil
		},
	}
}

// deleteCollections removes the collections with the given ids. Every id
// is parsed before anything is deleted.
func deleteCollections(ctx context.Context, db *store.DB, args []string) (int, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("invalid collection id %q", arg)
		}
		ids = append(ids, id)
	}

	deleted := 0
	for _, id := range ids {
		if err := db.DeleteCollection(ctx, id); err != nil {
			return deleted, fmt.Errorf("collection %d: %w", id, err)
		}
		deleted++
	}

	return deleted, nil
}

func newDeleteCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete collections from the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := deleteCollections(cmd.Context(), db, args)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d collection(s)\n", n)

			return nil
		},
	}
}

func newPlayCmd(cfg *Config) *cobra.Command {
	var ephemeral bool

	cmd := &cobra.Command{
		Use:   "play [PATH...]",
		Short: "Play in the terminal, with collections from files or the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				collections []game.Collection
				storage     game.Storage
			)

			for _, path := range args {
				c, err := store.ReadCollections(path)
				if err != nil {
					return err
				}
				collections = append(collections, c...)
			}

			// file collections have no ids of their own
			for i := range collections {
				collections[i].ID = int64(-(i + 1))
			}

			if ephemeral {
				storage = store.NewMemory()
			} else {
				db, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer db.Close()

				storage = db

				if len(collections) == 0 {
					collections, err = db.ListCollections(cmd.Context(), "", playLibraryLimit)
					if err != nil {
						return err
					}
				}
			}

			if len(collections) == 0 {
				return errors.New("no collections to play: pass collection files or import some first")
			}

			session := game.New(
				game.WithStorage(storage, game.StorageKey),
				game.WithLogf(func(format string, args ...any) {
					logf(cfg, format, args...)
				}),
			)

			return tui.Run(session, collections)
		},
	}

	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "do not save the game, so it cannot be resumed")

	return cmd
}
