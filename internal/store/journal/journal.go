// Package journal provides the dead-letter file for messages that could not
// be persisted at all. Records are stored as append-only JSON lines in a
// local file, enough for an operator to replay them by hand.
//
// The journal is the end of the line: a failed journal write is logged by the
// caller and swallowed, because the sender was already told the message was
// lost.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/MrWong99/wordwire/internal/store"
	"github.com/MrWong99/wordwire/pkg/types"
)

// Compile-time interface check.
var _ store.DeadLetter = (*FileJournal)(nil)

// Record is a single dead-lettered message written to the journal file.
type Record struct {
	Timestamp      time.Time `json:"timestamp"`
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	OriginalText   string    `json:"original_text"`
	Kind           string    `json:"kind"`
	ReplyTo        string    `json:"reply_to,omitempty"`
	FileURL        string    `json:"file_url,omitempty"`
	Error          string    `json:"error"`
}

// FileJournal persists dead-lettered messages as JSON lines in a local file.
// Thread-safe for concurrent use.
type FileJournal struct {
	mu   sync.Mutex
	path string
}

// NewFileJournal creates a FileJournal that writes to the given path.
// The file is created on first append if it does not exist.
func NewFileJournal(path string) *FileJournal {
	return &FileJournal{path: path}
}

// Append implements [store.DeadLetter]. It serializes writes so concurrent
// failures cannot interleave lines.
func (j *FileJournal) Append(msg types.Message, cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	record := Record{
		Timestamp:      time.Now().UTC(),
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		OriginalText:   msg.OriginalText,
		Kind:           string(msg.Kind),
		ReplyTo:        msg.ReplyTo,
		FileURL:        msg.FileURL,
	}
	if cause != nil {
		record.Error = cause.Error()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	return nil
}
