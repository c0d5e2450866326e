// Package history persists per-job scheduling state and run records in
// a local bbolt database. The daemon survives restarts without losing
// its place: next-run times live in job_state, completed runs append to
// runs. Parsed cron expressions are never stored, only the raw text a
// state was computed from.
package history

import (
	"encoding/binary"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	stateBucket = "job_state"
	runsBucket  = "runs"
)

// JobState tracks where a job is in its schedule.
type JobState struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"` // raw expression the state was computed from
	NextRunAt time.Time `json:"next_run_at"`
	LastRunAt time.Time `json:"last_run_at,omitempty"`

	// Disabled marks a job whose schedule can never occur again.
	Disabled bool `json:"disabled,omitempty"`
}

// Run records one completed job invocation.
type Run struct {
	ID          uint64    `json:"id"`
	Job         string    `json:"job"`
	ScheduledAt time.Time `json:"scheduled_at"`
	StartedAt   time.Time `json:"started_at"`
	ExitCode    int       `json:"exit_code"`
	Stdout      string    `json:"stdout,omitempty"`
	Stderr      string    `json:"stderr,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	TimedOut    bool      `json:"timed_out"`
	Error       string    `json:"error,omitempty"`
}

// Store is the history database.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(stateBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// SaveState stores or updates a job's scheduling state, keyed by name.
func (s *Store) SaveState(state *JobState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(stateBucket)).Put([]byte(state.Name), data)
	})
}

// State retrieves a job's state, or nil if the job is unknown.
func (s *Store) State(name string) (*JobState, error) {
	var state *JobState
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(stateBucket)).Get([]byte(name))
		if data == nil {
			return nil
		}
		state = &JobState{}
		return json.Unmarshal(data, state)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// DeleteState removes the state of a job no longer in the config.
func (s *Store) DeleteState(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(stateBucket)).Delete([]byte(name))
	})
}

// StateNames lists all jobs with persisted state.
func (s *Store) StateNames() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(stateBucket)).ForEach(func(k, v []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// AppendRun records a completed run. The store assigns the ID.
func (s *Store) AppendRun(r *Run) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		id, _ := b.NextSequence()
		r.ID = id

		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return b.Put(itob(id), data)
	})
}

// RecentRuns returns up to limit runs for a job, oldest first.
func (s *Store) RecentRuns(job string, limit int) ([]*Run, error) {
	var runs []*Run

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		// Newest first, then reversed, so the bound keeps recent runs.
		for k, v := c.Last(); k != nil && len(runs) < limit; k, v = c.Prev() {
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				continue
			}
			if r.Job == job {
				runs = append(runs, &r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return runs, nil
}

// Prune deletes a job's oldest runs beyond keep.
func (s *Store) Prune(job string, keep int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		// Collect doomed keys first; deleting while iterating would
		// invalidate the cursor.
		var doomed [][]byte
		seen := 0
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				continue
			}
			if r.Job != job {
				continue
			}
			seen++
			if seen > keep {
				key := make([]byte, len(k))
				copy(key, k)
				doomed = append(doomed, key)
			}
		}

		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the total number of stored runs.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket([]byte(runsBucket)).Stats().KeyN
		return nil
	})
	return count, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// itob converts a uint64 to big-endian bytes for ordered keys.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
