package util

import (
	"runtime"
	"strconv"

	_ "go.uber.org/automaxprocs"
)

// Workers is a worker count flag value; "auto" or 0 select GOMAXPROCS.
type Workers int

// Count resolves the number of workers to start.
func (w Workers) Count() int {
	if w <= 0 {
		return runtime.GOMAXPROCS(-1)
	}
	return int(w)
}

func (w *Workers) String() string {
	if *w == 0 {
		return "auto"
	}
	return strconv.Itoa(int(*w))
}

func (w *Workers) Set(v string) error {
	if v == "" || v == "auto" {
		*w = 0
		return nil
	}
	p, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	if p < 1 {
		p = 1
	}
	*w = Workers(p)
	return nil
}

func (w *Workers) UnmarshalText(text []byte) error {
	return w.Set(string(text))
}

func (w Workers) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}
