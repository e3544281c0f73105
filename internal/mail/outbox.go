package mail

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileOutbox appends mails as JSON lines to a file instead of sending them.
// End-to-end runs read reset links back with Latest.
type FileOutbox struct {
	filePath string
	mu       sync.Mutex
}

// NewFileOutbox creates an outbox writing to filePath.
func NewFileOutbox(filePath string) *FileOutbox {
	return &FileOutbox{filePath: filePath}
}

func (f *FileOutbox) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	msg, err := NewPasswordResetMessage(to, resetURL)
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling mail: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating outbox directory: %w", err)
		}
	}

	file, err := os.OpenFile(f.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening outbox: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing outbox: %w", err)
	}
	return nil
}

// Messages returns every mail in the outbox, oldest first.
func (f *FileOutbox) Messages() ([]*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening outbox: %w", err)
	}
	defer file.Close()

	var msgs []*Message
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, fmt.Errorf("parsing outbox: %w", err)
		}
		msgs = append(msgs, &msg)
	}
	return msgs, scanner.Err()
}

// Latest returns the newest mail sent to the given address, or nil.
func (f *FileOutbox) Latest(to string) (*Message, error) {
	msgs, err := f.Messages()
	if err != nil {
		return nil, err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if strings.EqualFold(msgs[i].To, to) {
			return msgs[i], nil
		}
	}
	return nil, nil
}
