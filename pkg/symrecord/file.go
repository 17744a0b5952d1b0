package symrecord

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/wiisym/wiisym/pkg/model"
)

// Entry is a parsed line. Record keeps every field of the line, so keys
// other than pos, len and sym survive a rewrite.
type Entry struct {
	Match  model.MatchRecord
	Record Record
}

// ReadEntries parses every non-empty line of r. name is only used for error
// context.
func ReadEntries(r io.Reader, name string) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		rec, err := Parse(scanner.Text())
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", name, line)
		}
		if len(rec) == 0 {
			continue
		}
		m, err := rec.ToMatch()
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", name, line)
		}
		entries = append(entries, Entry{Match: m, Record: rec})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return entries, nil
}

func ReadEntriesFile(fs afero.Fs, path string) ([]Entry, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadEntries(f, path)
}

// Read parses every non-empty line of r into a match.
func Read(r io.Reader, name string) ([]model.MatchRecord, error) {
	entries, err := ReadEntries(r, name)
	if err != nil {
		return nil, err
	}
	return matches(entries), nil
}

func ReadFile(fs afero.Fs, path string) ([]model.MatchRecord, error) {
	entries, err := ReadEntriesFile(fs, path)
	if err != nil {
		return nil, err
	}
	return matches(entries), nil
}

func matches(entries []Entry) []model.MatchRecord {
	if entries == nil {
		return nil
	}
	return lo.Map(entries, func(e Entry, _ int) model.MatchRecord { return e.Match })
}

// FromMatches converts ms with FromMatch.
func FromMatches(ms []model.MatchRecord) []Record {
	return lo.Map(ms, func(m model.MatchRecord, _ int) Record { return FromMatch(m) })
}

// Write writes one line per record.
func Write(w io.Writer, records []model.MatchRecord) error {
	return WriteRecords(w, FromMatches(records))
}

func WriteRecords(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if _, err := bw.WriteString(r.String()); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile replaces path with records, see WriteRecordsFile.
func WriteFile(fs afero.Fs, path string, records []model.MatchRecord, appendTo bool) error {
	return WriteRecordsFile(fs, path, FromMatches(records), appendTo)
}

// WriteRecordsFile replaces path with records. The data is written to a
// temporary file next to path which is renamed only once everything was
// written, so path never holds a partial table. With appendTo the records
// already in path are kept in front of the new ones, extra fields included.
func WriteRecordsFile(fs afero.Fs, path string, records []Record, appendTo bool) (err error) {
	if appendTo {
		existing, err := ReadEntriesFile(fs, path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		kept := lo.Map(existing, func(e Entry, _ int) Record { return e.Record })
		records = append(kept, records...)
	}

	tmp, err := afero.TempFile(fs, filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temporary file")
	}
	defer func() {
		if err != nil {
			if rmErr := fs.Remove(tmp.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				err = multierror.Append(err, rmErr)
			}
		}
	}()

	if err = WriteRecords(tmp, records); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", tmp.Name())
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp.Name())
	}
	if err = fs.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "rename %s", tmp.Name())
	}
	return nil
}
