// pending-revive lists offline transactions the dispatcher gave up on and
// puts them back in the replay queue.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/pending-revive
//	go run ./cmd/pending-revive --dry-run=false --confirm=REVIVE --keys=<key1>,<key2>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/mmdatafocus/pos_backend/workflow"
)

func main() {
	keys := flag.String("keys", "", "Comma separated idempotency keys; empty means every DEAD row")
	limit := flag.Int("limit", 50, "Rows to list")
	dryRun := flag.Bool("dry-run", true, "List DEAD rows only (no writes)")
	confirm := flag.String("confirm", "", "Type REVIVE to proceed when dry-run=false")
	flag.Parse()

	if !*dryRun && strings.TrimSpace(*confirm) != "REVIVE" {
		fmt.Fprintln(os.Stderr, "set --confirm=REVIVE to proceed")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout())
	defer cancel()
	if err := config.ConnectDatabaseWithRetry(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "database not initialized: %v\n", err)
		os.Exit(1)
	}
	store := workflow.NewGormPendingStore(config.GetDB())

	if *dryRun {
		rows, err := store.ListDead(context.Background(), *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list: %v\n", err)
			os.Exit(1)
		}
		for _, r := range rows {
			fmt.Printf("%s\tattempts=%d\ttotal=%s\tcreated=%s\terror=%s\n",
				r.IdempotencyKey, r.Attempts, utils.FormatRupiah(r.GrandTotal),
				r.CreatedAt.Format(time.RFC3339), utils.DereferencePtr(r.LastError))
		}
		pending, err := store.Pending(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "count pending: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%d dead row(s), %d waiting for replay\n", len(rows), pending)
		return
	}

	var selected []string
	for _, k := range strings.Split(*keys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			selected = append(selected, k)
		}
	}
	n, err := store.ReviveDead(context.Background(), utils.UniqueSlice(selected))
	if err != nil {
		fmt.Fprintf(os.Stderr, "revive: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("revived %d row(s)\n", n)
}
