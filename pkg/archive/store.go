package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mentara/mentara/internal/observability"
	"github.com/mentara/mentara/pkg/conversation"
	"github.com/rs/zerolog"
)

// fileLine is one JSONL record: the first line of a file carries the session
// metadata, every following line one event.
type fileLine struct {
	Metadata *conversation.Summary `json:"metadata,omitempty"`
	Event    *conversation.Event   `json:"event,omitempty"`
}

// Store persists final session snapshots as JSONL files, one per session.
type Store struct {
	dir    string
	logger zerolog.Logger
}

// NewStore creates the archive directory if needed.
func NewStore(dir string, logger zerolog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	logger.Info().Str("dir", dir).Msg("Transcript archive initialized")
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".jsonl")
}

// Archive writes the snapshot atomically (temp file plus rename). A session
// archived twice keeps the latest snapshot.
func (s *Store) Archive(snap conversation.Snapshot) error {
	err := s.write(snap)
	observability.RecordArchive(err)
	if err != nil {
		return err
	}

	s.logger.Debug().
		Str("session_id", snap.Summary.ID).
		Int("events", len(snap.Events)).
		Msg("Session archived")
	return nil
}

func (s *Store) write(snap conversation.Snapshot) error {
	if snap.Summary.ID == "" {
		return fmt.Errorf("snapshot has no session id")
	}

	finalPath := s.path(snap.Summary.ID)
	tempPath := finalPath + ".tmp"

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	writeLine := func(line fileLine) error {
		data, err := json.Marshal(line)
		if err != nil {
			return fmt.Errorf("failed to marshal archive line: %w", err)
		}
		if _, err := file.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write archive line: %w", err)
		}
		return nil
	}

	meta := snap.Summary
	if err := writeLine(fileLine{Metadata: &meta}); err != nil {
		file.Close()
		os.Remove(tempPath)
		return err
	}
	for i := range snap.Events {
		if err := writeLine(fileLine{Event: &snap.Events[i]}); err != nil {
			file.Close()
			os.Remove(tempPath)
			return err
		}
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync archive file: %w", err)
	}
	file.Close()

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to finalize archive file: %w", err)
	}
	return nil
}

// Load reads an archived snapshot back. The transcript is rebuilt from the
// archived message events.
func (s *Store) Load(id string) (conversation.Snapshot, error) {
	file, err := os.Open(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return conversation.Snapshot{}, conversation.ErrSessionNotFound
		}
		return conversation.Snapshot{}, fmt.Errorf("failed to open archive file: %w", err)
	}
	defer file.Close()

	var snap conversation.Snapshot
	var transcript []string

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}

		var line fileLine
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			s.logger.Warn().Err(err).Str("session_id", id).Msg("Skipping corrupt archive line")
			continue
		}

		switch {
		case line.Metadata != nil:
			snap.Summary = *line.Metadata
		case line.Event != nil:
			snap.Events = append(snap.Events, *line.Event)
			if line.Event.Type == conversation.EventTypeMessage {
				transcript = append(transcript, fmt.Sprintf("%s: %s", speakerName(line.Event.Role), line.Event.Text))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return conversation.Snapshot{}, fmt.Errorf("failed to read archive file: %w", err)
	}

	snap.Transcript = strings.Join(transcript, "\n")
	return snap, nil
}

// List returns the ids of all archived sessions.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".jsonl"))
	}
	return ids, nil
}

func speakerName(role conversation.Role) string {
	s := string(role)
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
