package store

import (
	"sort"

	"github.com/matheus3301/chatsync/internal/model"
)

// Reconcile merges a server snapshot with locally held messages. Each id
// appears once; the snapshot's copy wins except that a read flag already set
// on either side stays set. The result is ordered by timestamp ascending, with
// ties kept in snapshot-then-local order.
func Reconcile(snapshot, local []model.Message) []model.Message {
	out := make([]model.Message, 0, len(snapshot)+len(local))
	pos := make(map[string]int, len(snapshot)+len(local))

	add := func(m model.Message) {
		if m.ID == "" {
			out = append(out, m)
			return
		}
		if i, ok := pos[m.ID]; ok {
			if m.Read {
				out[i].Read = true
			}
			return
		}
		pos[m.ID] = len(out)
		out = append(out, m)
	}
	for _, m := range snapshot {
		add(m)
	}
	for _, m := range local {
		add(m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
