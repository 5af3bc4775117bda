package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/lakeoracle/oracle/lake/pkg/engine"
	"github.com/lakeoracle/oracle/lake/pkg/metrics"
)

const (
	// MaxRows caps the limit injected into statements that carry none.
	MaxRows        = 20
	DefaultMaxRows = MaxRows

	RejectionMessage = "Error: Only SELECT queries are allowed for security reasons."
)

var ErrNotSelect = errors.New("only SELECT queries are allowed")

type Config struct {
	Logger *slog.Logger
	Engine engine.Engine
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Engine == nil {
		return errors.New("engine is required")
	}
	return nil
}

// Executor runs read-only statements with a bounded row count.
type Executor struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate executor config: %w", err)
	}
	return &Executor{log: cfg.Logger, cfg: cfg}, nil
}

// IsSelect reports whether the statement starts with SELECT, ignoring case and surrounding space.
func IsSelect(sql string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "SELECT")
}

// EffectiveLimit clamps a requested row cap to (0, MaxRows]. Non-positive means the default.
func EffectiveLimit(maxRows int) int {
	if maxRows <= 0 {
		return DefaultMaxRows
	}
	return min(maxRows, MaxRows)
}

// PrepareStatement applies the read-only policy. A statement without a LIMIT clause has
// its comments and semicolons removed and a clamped LIMIT appended; one that already has
// a LIMIT clause passes through unchanged. ok is false when the statement is not a SELECT.
func PrepareStatement(sql string, maxRows int) (string, bool) {
	if !IsSelect(sql) {
		return "", false
	}
	code, hasLimit := scanStatement(sql)
	if hasLimit {
		return sql, true
	}
	code = strings.TrimRightFunc(strings.ReplaceAll(code, ";", ""), unicode.IsSpace)
	return code + " LIMIT " + strconv.Itoa(EffectiveLimit(maxRows)), true
}

// scanStatement strips comments from sql and reports whether LIMIT appears as a keyword
// outside quoted text.
func scanStatement(sql string) (code string, hasLimit bool) {
	var (
		b    strings.Builder
		word strings.Builder
	)
	endWord := func() {
		if strings.EqualFold(word.String(), "LIMIT") {
			hasLimit = true
		}
		word.Reset()
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			endWord()
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			if i < len(sql) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			endWord()
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
			} else {
				i += end + 3
			}
			b.WriteByte(' ')
		case c == '\'' || c == '"' || c == '`':
			endWord()
			j := i + 1
			for j < len(sql) {
				if sql[j] == c {
					// Doubled quotes escape themselves.
					if j+1 < len(sql) && sql[j+1] == c {
						j += 2
						continue
					}
					break
				}
				j++
			}
			if j >= len(sql) {
				j = len(sql) - 1
			}
			b.WriteString(sql[i : j+1])
			i = j
		case c == '_' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)):
			word.WriteByte(c)
			b.WriteByte(c)
		default:
			endWord()
			b.WriteByte(c)
		}
	}
	endWord()
	return b.String(), hasLimit
}

// Query runs the statement under the read-only policy and returns the rows.
func (e *Executor) Query(ctx context.Context, sql string, maxRows int) (*engine.Result, error) {
	stmt, ok := PrepareStatement(sql, maxRows)
	if !ok {
		metrics.RejectedStatementsTotal.Inc()
		e.log.Warn("executor: rejected non-select statement", "sql", sql)
		return nil, ErrNotSelect
	}
	if maxRows > MaxRows && stmt != sql {
		e.log.Debug("executor: clamped row cap", "requested", maxRows, "effective", MaxRows)
	}

	e.log.Debug("executor: running statement", "sql", stmt)
	res, err := e.cfg.Engine.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to run statement: %w", err)
	}
	// A caller-supplied LIMIT is not rewritten, so the cap is enforced on the rows too.
	if limit := EffectiveLimit(maxRows); len(res.Rows) > limit {
		e.log.Debug("executor: truncated result", "rows", len(res.Rows), "limit", limit)
		res.Rows = res.Rows[:limit]
		res.Count = limit
	}
	return res, nil
}

// Execute is Query rendered as a text table. A rejected statement yields
// RejectionMessage and a nil error so the caller can hand it straight to the model.
func (e *Executor) Execute(ctx context.Context, sql string, maxRows int) (string, error) {
	res, err := e.Query(ctx, sql, maxRows)
	if errors.Is(err, ErrNotSelect) {
		return RejectionMessage, nil
	}
	if err != nil {
		return "", err
	}
	return engine.FormatTable(res), nil
}
