package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"
)

var (
	databaseFlag = flag.String("database", "projects/test-project/instances/dev-instance/databases/scheduler-db", "Spanner database")
	limitFlag    = flag.Int64("limit", 10, "Max rows per section")
)

func main() {
	flag.Parse()

	ctx := context.Background()

	client, err := spanner.NewClient(ctx, *databaseFlag)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	if err := printRecentEvents(ctx, client); err != nil {
		log.Fatalf("Failed to read events: %v", err)
	}
	if err := printDueSnapshot(ctx, client); err != nil {
		log.Fatalf("Failed to read due index: %v", err)
	}
}

func printRecentEvents(ctx context.Context, client *spanner.Client) error {
	stmt := spanner.Statement{
		SQL:    "SELECT event_id, kind, status, attempt_count, scheduled_at FROM scheduled_events ORDER BY created_at DESC LIMIT @limit",
		Params: map[string]interface{}{"limit": *limitFlag},
	}

	iter := client.Single().Query(ctx, stmt)
	defer iter.Stop()

	fmt.Println("Recent events:")
	count := 0
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return err
		}

		var eventID, kind, status string
		var attemptCount int64
		var scheduledAt time.Time
		if err := row.Columns(&eventID, &kind, &status, &attemptCount, &scheduledAt); err != nil {
			return err
		}

		fmt.Printf("%d. %s - %s (status: %s, attempts: %d, due: %s)\n",
			count+1, kind, eventID, status, attemptCount, scheduledAt.Format(time.RFC3339))
		count++
	}

	if count == 0 {
		fmt.Println("No events found!")
	} else {
		fmt.Printf("\nTotal: %d events\n", count)
	}
	return nil
}

func printDueSnapshot(ctx context.Context, client *spanner.Client) error {
	stmt := spanner.Statement{
		SQL:    "SELECT event_id, scheduled_at FROM event_due_index WHERE scheduled_at <= CURRENT_TIMESTAMP() ORDER BY scheduled_at ASC, enqueued_at ASC LIMIT @limit",
		Params: map[string]interface{}{"limit": *limitFlag},
	}

	iter := client.Single().Query(ctx, stmt)
	defer iter.Stop()

	fmt.Println("\nDue now (index snapshot):")
	count := 0
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return err
		}

		var eventID string
		var scheduledAt time.Time
		if err := row.Columns(&eventID, &scheduledAt); err != nil {
			return err
		}

		fmt.Printf("%d. %s (due: %s)\n", count+1, eventID, scheduledAt.Format(time.RFC3339))
		count++
	}

	if count == 0 {
		fmt.Println("Nothing due.")
	}
	return nil
}
