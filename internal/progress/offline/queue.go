package offline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/pot-code/lingua-lms/internal/domain"
)

// DurableQueue append-only on-disk buffer of progress updates. Every reducer
// output lands here before any network write, so a crash or connectivity
// loss never silently drops a sample. Entries survive process restart.
//
// Keys: "upd:<userID>:<lessonID>:<seq>" with a zero-padded sequence so
// lexicographic iteration yields queue order per lesson
type DurableQueue struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Ref identifies one lesson queue
type Ref struct {
	UserID   string
	LessonID string
}

func OpenQueue(path string) (*DurableQueue, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	seq, err := db.GetSequence([]byte("meta:seq"), 64)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DurableQueue{db: db, seq: seq}, nil
}

func (q *DurableQueue) Close() error {
	if err := q.seq.Release(); err != nil {
		q.db.Close()
		return err
	}
	return q.db.Close()
}

func updateKey(userID, lessonID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("upd:%s:%s:%020d", userID, lessonID, seq))
}

func userPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("upd:%s:", userID))
}

func lessonPrefix(userID, lessonID string) []byte {
	return []byte(fmt.Sprintf("upd:%s:%s:", userID, lessonID))
}

// Enqueue assigns the update a sequence number and persists it
func (q *DurableQueue) Enqueue(update *domain.ProgressUpdate) error {
	seq, err := q.seq.Next()
	if err != nil {
		return err
	}
	update.Seq = seq
	buf, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(updateKey(update.UserID, update.LessonID, seq), buf)
	})
}

// Pending returns all buffered updates for a user in key order
func (q *DurableQueue) Pending(userID string) ([]*domain.ProgressUpdate, error) {
	return q.collect(userPrefix(userID))
}

// PendingRefs returns the distinct user+lesson queues that have entries
func (q *DurableQueue) PendingRefs() ([]Ref, error) {
	var refs []Ref
	seen := make(map[Ref]bool)
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("upd:")
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			parts := strings.SplitN(string(it.Item().Key()), ":", 4)
			if len(parts) != 4 {
				continue
			}
			ref := Ref{UserID: parts[1], LessonID: parts[2]}
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
		return nil
	})
	return refs, err
}

// Latest returns the buffered update with the highest watched high-water
// mark for the lesson, nil when the queue is empty. Earlier entries are
// superseded by it: the monotonic merge makes replaying them redundant
func (q *DurableQueue) Latest(userID, lessonID string) (*domain.ProgressUpdate, error) {
	updates, err := q.collect(lessonPrefix(userID, lessonID))
	if err != nil || len(updates) == 0 {
		return nil, err
	}
	latest := updates[0]
	for _, u := range updates[1:] {
		if u.Snapshot.WatchedSeconds >= latest.Snapshot.WatchedSeconds {
			latest = u
		}
	}
	return latest, nil
}

// AckThrough removes every entry for the lesson up to and including seq.
// Entries enqueued after the acknowledged one stay buffered
func (q *DurableQueue) AckThrough(userID, lessonID string, seq uint64) error {
	return q.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = lessonPrefix(userID, lessonID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if keySeq(key) <= seq {
				stale = append(stale, key)
			}
		}
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// IncrementRetry bumps the stored retry counter of a failed update
func (q *DurableQueue) IncrementRetry(update *domain.ProgressUpdate) error {
	update.RetryCount++
	buf, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(updateKey(update.UserID, update.LessonID, update.Seq), buf)
	})
}

func (q *DurableQueue) collect(prefix []byte) ([]*domain.ProgressUpdate, error) {
	var updates []*domain.ProgressUpdate
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := new(domain.ProgressUpdate)
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, item)
			}); err != nil {
				return err
			}
			updates = append(updates, item)
		}
		return nil
	})
	return updates, err
}

func keySeq(key []byte) uint64 {
	s := string(key)
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return 0
	}
	var seq uint64
	fmt.Sscanf(s[idx+1:], "%020d", &seq)
	return seq
}
