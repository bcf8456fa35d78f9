// Command import-catalog seeds the exercise catalog from a snapshot file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"fitvoice/internal/storage"
)

func main() {
	seedPath := flag.String("seed", "", "path to the exercise seed file (snapshot JSON)")
	jsonPath := flag.String("json", "", "path to the JSON datastore to seed")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string to seed")
	flag.Parse()

	if strings.TrimSpace(*seedPath) == "" {
		fatalf("--seed is required")
	}
	if *jsonPath == "" && *postgresDSN == "" {
		fatalf("either --json or --postgres-dsn must be provided")
	}
	if *jsonPath != "" && *postgresDSN != "" {
		fatalf("only one datastore option may be provided")
	}

	snapshot, err := storage.LoadSnapshotFromJSON(*seedPath)
	if err != nil {
		fatalf("load seed: %v", err)
	}
	if len(snapshot.Exercises) == 0 {
		fatalf("seed file %s holds no exercises", *seedPath)
	}

	if *jsonPath != "" {
		store, err := storage.NewStorage(*jsonPath)
		if err != nil {
			fatalf("open datastore: %v", err)
		}
		imported, err := store.ImportExercises(snapshot)
		if err != nil {
			fatalf("import exercises: %v", err)
		}
		fmt.Printf("Imported %d of %d exercises into %s.\n", imported, len(snapshot.Exercises), *jsonPath)
		return
	}

	repo, err := storage.NewPostgresRepository(*postgresDSN)
	if err != nil {
		fatalf("open postgres repository: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	defer func() { _ = repo.Close(context.Background()) }()

	if err := storage.MigratePostgres(ctx, repo); err != nil {
		fatalf("apply schema: %v", err)
	}
	// Only the catalog travels; a seed file may carry other collections
	// but this tool leaves accounts and logs alone.
	catalogOnly := &storage.Snapshot{Exercises: snapshot.Exercises}
	if err := storage.ImportSnapshotToPostgres(ctx, repo, catalogOnly); err != nil {
		fatalf("import exercises: %v", err)
	}
	fmt.Printf("Imported %d exercises into Postgres.\n", len(snapshot.Exercises))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
