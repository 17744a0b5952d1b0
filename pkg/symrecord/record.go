// Package symrecord reads and writes symbol records, one record per line of
// space separated key=value fields:
//
//	pos=80004000 len=132 sym=OSReport
package symrecord

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/wiisym/wiisym/pkg/model"
)

const (
	KeyPosition = "pos"
	KeyLength   = "len"
	KeySymbol   = "sym"
)

var (
	ErrInvalidField = errors.New("invalid key=value field")
	ErrMissingField = errors.New("missing field")
)

type Field struct {
	Key   string
	Value string
}

// Record is an ordered list of fields.
type Record []Field

// Get returns the value of the first field named key.
func (r Record) Get(key string) (string, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

func (r Record) String() string {
	var sb strings.Builder
	for i, f := range r {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(f.Key)
		sb.WriteByte('=')
		sb.WriteString(f.Value)
	}
	return sb.String()
}

// Parse splits a line into its fields. Every token must contain exactly one
// '='.
func Parse(line string) (Record, error) {
	var r Record
	for _, tok := range strings.Fields(line) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok || strings.Contains(value, "=") {
			return nil, errors.Wrapf(ErrInvalidField, "%q", tok)
		}
		r = append(r, Field{Key: key, Value: value})
	}
	return r, nil
}

// ToMatch converts a record holding at least pos, len and sym.
func (r Record) ToMatch() (model.MatchRecord, error) {
	var m model.MatchRecord
	pos, ok := r.Get(KeyPosition)
	if !ok {
		return m, errors.Wrap(ErrMissingField, KeyPosition)
	}
	length, ok := r.Get(KeyLength)
	if !ok {
		return m, errors.Wrap(ErrMissingField, KeyLength)
	}
	sym, ok := r.Get(KeySymbol)
	if !ok {
		return m, errors.Wrap(ErrMissingField, KeySymbol)
	}
	p, err := strconv.ParseUint(pos, 16, 64)
	if err != nil {
		return m, errors.Wrapf(err, "parse %s", KeyPosition)
	}
	l, err := strconv.Atoi(length)
	if err != nil {
		return m, errors.Wrapf(err, "parse %s", KeyLength)
	}
	if l < 0 {
		return m, errors.Errorf("negative %s %d", KeyLength, l)
	}
	m.Position = p
	m.Length = l
	m.Symbol = sym
	return m, nil
}

// FromMatch returns the record of m with fields in pos, len, sym order.
func FromMatch(m model.MatchRecord) Record {
	return Record{
		{Key: KeyPosition, Value: fmt.Sprintf("%08x", m.Position)},
		{Key: KeyLength, Value: strconv.Itoa(m.Length)},
		{Key: KeySymbol, Value: m.Symbol},
	}
}
