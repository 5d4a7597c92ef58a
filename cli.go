package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cotuong/internal/store"
)

// RunCLI handles subcommand execution. Returns true if a subcommand was handled.
func RunCLI(args []string, dbPath string) bool {
	if len(args) == 0 {
		return false
	}

	subcmd := args[0]
	switch subcmd {
	case "version":
		fmt.Printf("cotuong server %s\n", Version)
		return true
	case "status":
		return cliStatus(dbPath)
	case "leaderboard":
		return cliLeaderboard(args[1:], dbPath)
	case "backup":
		return cliBackup(args[1:], dbPath)
	default:
		return false
	}
}

func openStoreOrDie(dbPath string) *store.Store {
	st, err := store.New(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	return st
}

func cliStatus(dbPath string) bool {
	st := openStoreOrDie(dbPath)
	defer st.Close()

	entries, err := st.Leaderboard(context.Background(), 1, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Database: %s\n", dbPath)
	fmt.Printf("Registered users (sampled): %d\n", len(entries))
	fmt.Printf("Version: %s\n", Version)
	return true
}

func cliLeaderboard(args []string, dbPath string) bool {
	st := openStoreOrDie(dbPath)
	defer st.Close()

	limit := 20
	entries, err := st.Leaderboard(context.Background(), limit, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(args) > 0 && args[0] == "--json" {
		out, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(out))
		return true
	}
	for i, e := range entries {
		fmt.Printf("%3d. %-20s rating=%-5d w=%d l=%d d=%d\n", i+1, e.Username, e.Rating, e.Wins, e.Losses, e.Draws)
	}
	return true
}

func cliBackup(args []string, dbPath string) bool {
	st := openStoreOrDie(dbPath)
	defer st.Close()

	outPath := "cotuong-backup.db"
	if len(args) > 0 {
		outPath = args[0]
	}

	if err := st.Backup(outPath); err != nil {
		fmt.Fprintf(os.Stderr, "backup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Database backed up to %s\n", outPath)
	return true
}
