package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"

	"matchroom/domain"
)

// Offline inspector for the room cache. Opens the badger directory
// read-only and renders the pending (not yet flushed) messages of one
// or all rooms.
func main() {
	dbPath := flag.String("db", "./badger", "Path to badger DB")
	room := flag.String("room", "", "Room id to inspect (empty for all rooms)")
	flag.Parse()

	prefix := "cache:"
	if *room != "" {
		prefix = fmt.Sprintf("cache:%s:", *room)
	}

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Room", "Queued At", "Sender", "Receiver", "Topic", "Text"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			roomID, queuedAt := decodeKey(string(item.Key()))

			err := item.Value(func(v []byte) error {
				var msg domain.CachedMessage
				if err := json.Unmarshal(v, &msg); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}
				table.Append([]string{
					roomID,
					queuedAt,
					msg.Sender,
					msg.Receiver,
					msg.Topic,
					truncate(msg.Text, 60),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// decodeKey splits "cache:{room}:{ts_padded}:{uuid}". Room ids contain
// no colon so the positions are fixed from both ends.
func decodeKey(key string) (roomID, queuedAt string) {
	parts := strings.Split(key, ":")
	if len(parts) < 4 {
		return key, "--:--:--"
	}
	roomID = strings.Join(parts[1:len(parts)-2], ":")
	queuedAt = "--:--:--"
	if tsNano, err := strconv.ParseInt(parts[len(parts)-2], 10, 64); err == nil {
		queuedAt = time.Unix(0, tsNano).Format("15:04:05")
	}
	return roomID, queuedAt
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)
	return badger.Open(opts)
}
