// Package stat summarises symbol tables for the project README.
package stat

import (
	"bufio"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// TitleDB maps game IDs to titles.
type TitleDB map[string]string

// ParseTitleDB reads a GameTDB title list of "ID = Title" lines. Other
// lines are skipped.
func ParseTitleDB(r io.Reader) (TitleDB, error) {
	db := make(TitleDB)
	s := bufio.NewScanner(r)
	for s.Scan() {
		id, title, ok := strings.Cut(s.Text(), " = ")
		if !ok {
			continue
		}
		db[id] = strings.TrimSpace(title)
	}
	return db, s.Err()
}

type Row struct {
	GameID  string
	Symbols int
	Name    string
}

// Collect counts the records of every table. A table is named after the
// game ID it was matched for.
func Collect(fs afero.Fs, paths []string, db TitleDB) ([]Row, error) {
	rows := make([]Row, 0, len(paths))
	for _, path := range paths {
		n, err := countLines(fs, path)
		if err != nil {
			return nil, err
		}
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		rows = append(rows, Row{GameID: id, Symbols: n, Name: db[id]})
	}
	return rows, nil
}

func countLines(fs afero.Fs, path string) (int, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	for s.Scan() {
		n++
	}
	if err := s.Err(); err != nil {
		return 0, errors.Wrap(err, path)
	}
	return n, nil
}

// Render writes rows as a markdown table.
func Render(w io.Writer, rows []Row) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Game ID", "Symbol Count", "Name"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	for _, r := range rows {
		table.Append([]string{r.GameID, humanize.Comma(int64(r.Symbols)), r.Name})
	}
	table.Render()
}
