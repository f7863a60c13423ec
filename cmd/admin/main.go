package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"roomsync/backend/internal/config"
	"roomsync/backend/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `Usage: admin <command> [args]

Commands:
  show <room_id>           print the persisted room as JSON
  delete <room_id>         delete a persisted room
  sweep [retention]        delete rooms idle longer than retention (default from config)
  reset-rosters            empty every persisted roster`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, rdb, err := storage.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up storage")
	}
	defer storage.Close(db, rdb)

	store := storage.NewStorageService(db, rdb)

	if err := run(ctx, store, cfg, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, s storage.Store, cfg *config.Config, args []string) error {
	switch args[0] {
	case "show":
		if len(args) != 2 {
			return errors.New("usage: admin show <room_id>")
		}
		return showRoom(ctx, s, args[1])
	case "delete":
		if len(args) != 2 {
			return errors.New("usage: admin delete <room_id>")
		}
		if err := s.DeleteRoom(ctx, args[1]); err != nil {
			return err
		}
		fmt.Printf("Room %s has been deleted.\n", args[1])
		return nil
	case "sweep":
		retention := cfg.RoomRetention
		if len(args) > 1 {
			d, err := time.ParseDuration(args[1])
			if err != nil || d <= 0 {
				return fmt.Errorf("invalid retention %q, expected a positive duration such as 48h", args[1])
			}
			retention = d
		}
		return sweep(ctx, s, retention)
	case "reset-rosters":
		if err := s.ResetParticipants(ctx); err != nil {
			return err
		}
		fmt.Println("All persisted rosters have been emptied.")
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func showRoom(ctx context.Context, s storage.Store, roomID string) error {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(room, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// sweep runs offline, so there are no live rooms to keep.
func sweep(ctx context.Context, s storage.Store, retention time.Duration) error {
	deleted, err := s.DeleteStaleRooms(ctx, time.Now().Add(-retention), nil)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d room(s) idle for more than %s.\n", len(deleted), retention)
	for _, id := range deleted {
		fmt.Println("  " + id)
	}
	return nil
}
