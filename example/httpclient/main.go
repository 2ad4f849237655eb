package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mickamy/hrana-go"
	"github.com/mickamy/hrana-go/httptransport"
)

const defaultURL = "http://localhost:8080"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func getURL() string {
	if v := os.Getenv("HRANA_URL"); v != "" {
		return v
	}
	return defaultURL
}

func run() error {
	ctx := context.Background()

	client, err := httptransport.Dial(ctx, getURL(), httptransport.WithJWT(os.Getenv("HRANA_TOKEN")))
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = client.Close() }()

	version, _ := client.GetVersion()
	fmt.Printf("connected to %s, protocol version %d\n", getURL(), version)

	stream, err := client.OpenStream(ctx)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer func() { _ = stream.Close() }()
	log.Printf("stream %s: opened", stream.DebugID())

	if err := stream.Sequence(ctx, "CREATE TABLE IF NOT EXISTS events (id INTEGER PRIMARY KEY, payload TEXT)"); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	batch := stream.NewBatch()
	step := batch.Step()
	if err := step.Query(hrana.NewStatement("SELECT id, payload FROM events ORDER BY id")); err != nil {
		return fmt.Errorf("define cursor step: %w", err)
	}

	cur, err := stream.OpenCursor(ctx, []*hrana.BatchStep{step})
	if err != nil {
		return fmt.Errorf("open cursor: %w", err)
	}
	defer func() { _ = cur.Close() }()

	var cols []hrana.Column
	for {
		entry, err := cur.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("cursor next: %w", err)
		}
		switch entry.Kind() {
		case hrana.CursorStepBegin:
			cols = entry.Cols()
		case hrana.CursorRow:
			row := entry.Row(cols)
			id, _ := row.Get(0)
			payload, _ := row.Get(1)
			fmt.Printf("event %v: %v\n", id, payload)
		case hrana.CursorStepError:
			return fmt.Errorf("step error: %w", entry.Err())
		case hrana.CursorError:
			return fmt.Errorf("cursor error: %w", entry.Err())
		}
	}

	return nil
}
