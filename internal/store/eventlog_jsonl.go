package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"stockroom-cli/internal/model"
)

const eventsFileName = "events.jsonl"

// EventLog is an append-only JSONL activity log under <dir>/events/.
// Other processes watch the file to notice mutations they did not make.
type EventLog struct {
	Dir string
}

func (l EventLog) EventsDir() string {
	return filepath.Join(l.Dir, "events")
}

func (l EventLog) Path() string {
	return filepath.Join(l.EventsDir(), eventsFileName)
}

// Append stamps ev with an id and time and writes it as one line.
func (l EventLog) Append(ctx context.Context, ev model.Event) (model.Event, error) {
	if err := ctx.Err(); err != nil {
		return model.Event{}, err
	}
	if strings.TrimSpace(string(ev.Type)) == "" {
		return model.Event{}, errors.New("event log: missing type")
	}
	if strings.TrimSpace(l.Dir) == "" {
		return model.Event{}, errors.New("event log: missing dir")
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return model.Event{}, err
	}
	if err := os.MkdirAll(l.EventsDir(), 0o755); err != nil {
		return model.Event{}, err
	}
	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return model.Event{}, err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// Read returns logged events oldest first. limit > 0 keeps only the most
// recent limit events.
func (l EventLog) Read(limit int) ([]model.Event, error) {
	f, err := os.Open(l.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Event{}, nil
		}
		return nil, err
	}
	defer f.Close()

	out := []model.Event{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev model.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", l.Path(), lineNo, err)
		}
		out = append(out, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
