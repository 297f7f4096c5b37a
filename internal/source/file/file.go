// Package file reads raw events from newline delimited JSON files, one file
// per table shard, and filters them with an expression predicate.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/params"
	"github.com/Dminor7/ga4bigquery/internal/source"
)

const maxLineSize = 10 * 1024 * 1024

// Source reads <dir>/<dataset>/<table>.jsonl. Table names may contain glob
// wildcards such as events_*.
type Source struct {
	dir string
	log *zap.Logger
}

// NewSource creates a JSONL event source rooted at dir
func NewSource(dir string, log *zap.Logger) *Source {
	return &Source{dir: dir, log: log}
}

// ReadEvents implements source.EventSource
func (s *Source) ReadEvents(ctx context.Context, p source.Partition) ([]domain.Event, error) {
	pattern := filepath.Join(s.dir, p.Dataset, p.Table+".jsonl")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to match %s: %w", pattern, err)
	}
	sort.Strings(files)

	pred, err := CompilePredicate(p.Where)
	if err != nil {
		return nil, err
	}

	var events []domain.Event
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		read, err := readFile(path, pred)
		if err != nil {
			return nil, err
		}
		s.log.Debug("Read event shard", zap.String("path", path), zap.Int("events", len(read)))
		events = append(events, read...)
	}
	s.log.Info("Events loaded from files",
		zap.String("pattern", pattern),
		zap.Int("files", len(files)),
		zap.Int("events", len(events)))
	return events, nil
}

func readFile(path string, pred *Predicate) ([]domain.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var events []domain.Event
	line := 0
	for scanner.Scan() {
		line++
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var e domain.Event
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		ok, err := pred.Match(&e)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		if ok {
			events = append(events, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return events, nil
}

// Predicate is a compiled boolean filter over one event. The environment
// exposes event_timestamp, event_name, user_pseudo_id and user_id, where an
// absent user_id is "", plus column(name), param(name) and user_property(name)
// which return nil when absent.
type Predicate struct {
	program *vm.Program
}

// CompilePredicate compiles where. An empty where matches every event.
func CompilePredicate(where string) (*Predicate, error) {
	if where == "" {
		return &Predicate{}, nil
	}
	program, err := expr.Compile(where, expr.Env(env(&domain.Event{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("unable to compile predicate '%s': %w", where, err)
	}
	return &Predicate{program: program}, nil
}

// Match evaluates the predicate against e.
func (p *Predicate) Match(e *domain.Event) (bool, error) {
	if p == nil || p.program == nil {
		return true, nil
	}
	out, err := expr.Run(p.program, env(e))
	if err != nil {
		return false, fmt.Errorf("unable to evaluate predicate: %w", err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

func env(e *domain.Event) map[string]interface{} {
	userID := ""
	if e.UserID != nil {
		userID = *e.UserID
	}
	return map[string]interface{}{
		"event_timestamp": e.Timestamp,
		"event_name":      e.EventName,
		"user_pseudo_id":  e.UserPseudoID,
		"user_id":         userID,
		"column": func(name string) interface{} {
			return e.Columns[name]
		},
		"param": func(name string) interface{} {
			return params.Get(e.Params, name, params.TypeCoalesce)
		},
		"user_property": func(name string) interface{} {
			return params.Get(e.UserProperties, name, params.TypeCoalesce)
		},
	}
}
