package progress

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileSink keeps the slot in a pipe-delimited text file
// "step|total|message|status". Writes replace the file atomically and the
// file's modification time is the update time.
type FileSink struct {
	path string
}

// NewFileSink returns a FileSink at path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Path returns the file location.
func (f *FileSink) Path() string { return f.path }

// Format renders u in the file layout. Newlines in the message are flattened.
func Format(u Update) string {
	msg := strings.NewReplacer("\r", " ", "\n", " ").Replace(u.Message)
	return fmt.Sprintf("%d|%d|%s|%s", u.Step, u.Total, msg, u.Status)
}

// Parse reads a line in the file layout. The message may itself contain "|".
func Parse(line string) (Update, error) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, "|")
	if len(parts) < 4 {
		return Update{}, fmt.Errorf("progress: malformed record %q", line)
	}
	step, err := strconv.Atoi(parts[0])
	if err != nil {
		return Update{}, fmt.Errorf("progress: bad step: %w", err)
	}
	total, err := strconv.Atoi(parts[1])
	if err != nil {
		return Update{}, fmt.Errorf("progress: bad total: %w", err)
	}
	return Update{
		Step:    step,
		Total:   total,
		Message: strings.Join(parts[2:len(parts)-1], "|"),
		Status:  Status(parts[len(parts)-1]),
	}, nil
}

func (f *FileSink) Write(u Update) error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".progress-*")
	if err != nil {
		return fmt.Errorf("progress: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(Format(u)); err != nil {
		tmp.Close()
		return fmt.Errorf("progress: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("progress: close: %w", err)
	}
	if !u.UpdatedAt.IsZero() {
		_ = os.Chtimes(tmp.Name(), u.UpdatedAt, u.UpdatedAt)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("progress: replace: %w", err)
	}
	return nil
}

func (f *FileSink) Read() (Update, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Update{}, false, nil
	}
	if err != nil {
		return Update{}, false, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return Update{}, false, nil
	}
	u, err := Parse(string(data))
	if err != nil {
		return Update{}, false, err
	}
	if info, err := os.Stat(f.path); err == nil {
		u.UpdatedAt = info.ModTime()
	}
	return u, true, nil
}

// Clear removes the file. A missing file is not an error.
func (f *FileSink) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
