package portfolio

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is written into every persisted snapshot.
const SchemaVersion = 1

// Snapshot is the full portfolio state exchanged with the storage collaborator.
type Snapshot struct {
	SchemaVersion int                     `json:"schema_version"`
	SavedAt       time.Time               `json:"saved_at"`
	Milestones    []Milestone             `json:"milestones"`
	Goals         []Goal                  `json:"goals"`
	Conversations []Conversation          `json:"conversations"`
	Triggers      []StrategyReviewTrigger `json:"triggers"`
	Reviews       []StrategyReview        `json:"reviews"`
}

// NewSnapshot returns an empty snapshot at the current schema version.
func NewSnapshot() *Snapshot {
	return &Snapshot{SchemaVersion: SchemaVersion}
}

// Validate parses every entity in the snapshot and reports all problems at once.
func (s *Snapshot) Validate() error {
	var errs ValidationErrors
	collect := func(err error) {
		if err == nil {
			return
		}
		if ve, ok := err.(ValidationErrors); ok {
			errs = append(errs, ve...)
			return
		}
		errs = append(errs, ValidationError{Entity: "snapshot", Message: err.Error()})
	}

	for i := range s.Milestones {
		collect(s.Milestones[i].Validate())
	}
	for i := range s.Goals {
		collect(s.Goals[i].Validate())
	}
	for i := range s.Conversations {
		collect(s.Conversations[i].Validate())
	}
	for i := range s.Triggers {
		collect(s.Triggers[i].Validate())
	}
	for i := range s.Reviews {
		collect(s.Reviews[i].Validate())
	}

	ids := make(map[string]string)
	check := func(kind, id string) {
		if id == "" {
			return
		}
		if prev, ok := ids[id]; ok {
			errs.add(entityName(kind, id), "id", "duplicates an existing %s", prev)
			return
		}
		ids[id] = kind
	}
	for _, m := range s.Milestones {
		check("milestone", m.ID)
	}
	for _, g := range s.Goals {
		check("goal", g.ID)
	}
	for _, c := range s.Conversations {
		check("conversation", c.ID)
	}
	for _, t := range s.Triggers {
		check("trigger", t.ID)
	}
	for _, r := range s.Reviews {
		check("review", r.ID)
	}

	return errs.OrNil()
}

// Milestone returns the index of the milestone with the given id.
func (s *Snapshot) Milestone(id string) (int, error) {
	for i := range s.Milestones {
		if s.Milestones[i].ID == id {
			return i, nil
		}
	}
	return -1, &NotFoundError{Kind: "milestone", ID: id}
}

// Goal returns the index of the goal with the given id.
func (s *Snapshot) Goal(id string) (int, error) {
	for i := range s.Goals {
		if s.Goals[i].ID == id {
			return i, nil
		}
	}
	return -1, &NotFoundError{Kind: "goal", ID: id}
}

// Trigger returns the index of the trigger with the given id.
func (s *Snapshot) Trigger(id string) (int, error) {
	for i := range s.Triggers {
		if s.Triggers[i].ID == id {
			return i, nil
		}
	}
	return -1, &NotFoundError{Kind: "trigger", ID: id}
}

// Review returns the index of the review with the given id.
func (s *Snapshot) Review(id string) (int, error) {
	for i := range s.Reviews {
		if s.Reviews[i].ID == id {
			return i, nil
		}
	}
	return -1, &NotFoundError{Kind: "review", ID: id}
}

// Clone returns a deep copy so analyses can run on a private read-only view.
func (s *Snapshot) Clone() (*Snapshot, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("clone snapshot: %w", err)
	}
	var out Snapshot
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone snapshot: %w", err)
	}
	return &out, nil
}

// Fingerprint hashes the analysable content of the snapshot (SavedAt excluded).
// Callers cache derived results keyed by it.
func (s *Snapshot) Fingerprint() (string, error) {
	view := *s
	view.SavedAt = time.Time{}
	data, err := json.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("fingerprint snapshot: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// NewID returns a short prefixed identifier such as "ms-1a2b3c4d".
func NewID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String()[:8])
}
