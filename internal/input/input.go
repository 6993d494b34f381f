// Package input reads problem files. A problem file is comma-delimited with
// up to four rows:
//
//  1. variable declarations, one per field
//  2. background sentences, one per field
//  3. the target sentence, alone in its row
//  4. optional additional knowledge; its presence requests an update
//
// Empty fields are ignored everywhere. A blank line is an empty row. Lines
// starting with '#' are comments. Quoted fields cannot span lines.
package input

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"demski/internal/logging"
	"demski/internal/logic"
	"demski/internal/registry"
	"demski/internal/types"
)

// Problem is a parsed problem file.
type Problem struct {
	Source       string
	Registry     *registry.Registry
	Declarations []string

	Background     []*logic.Expr
	BackgroundText []string

	Target     *logic.Expr
	TargetText string

	HasUpdate  bool
	Update     []*logic.Expr
	UpdateText []string
}

// Knowledge is the knowledge base an update conditions on: the background
// followed by the additional sentences.
func (p *Problem) Knowledge() []*logic.Expr {
	out := make([]*logic.Expr, 0, len(p.Background)+len(p.Update))
	out = append(out, p.Background...)
	return append(out, p.Update...)
}

// ReadFile reads and parses the problem file at path.
func ReadFile(path string) (*Problem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open problem file: %w", err)
	}
	defer f.Close()

	p, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Source = path
	return p, nil
}

// Read parses a problem from r. Rows are physical lines: a blank line is an
// empty row and keeps the rows after it in place.
func Read(r io.Reader) (*Problem, error) {
	var rows [][]string
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if strings.HasPrefix(text, "#") {
			continue
		}
		rec, err := readRecord(text)
		if err != nil {
			return nil, &types.ConfigError{Reason: fmt.Sprintf("malformed problem file at line %d", line), Err: err}
		}
		rows = append(rows, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read problem file: %w", err)
	}
	if len(rows) < 3 {
		return nil, types.NewConfigError("problem file has %d rows, want declarations, background and target", len(rows))
	}
	if len(rows) > 4 {
		logging.Get(logging.CategoryParse).Warn("ignoring %d rows after the update row", len(rows)-4)
	}

	target := nonEmpty(rows[2])
	if len(target) != 1 {
		return nil, types.NewConfigError("target row must hold exactly one sentence, found %d", len(target))
	}

	var update []string
	hasUpdate := len(rows) >= 4
	if hasUpdate {
		update = nonEmpty(rows[3])
	}
	return New(nonEmpty(rows[0]), nonEmpty(rows[1]), target[0], update, hasUpdate)
}

// New builds a Problem from its textual parts.
func New(decls, background []string, target string, update []string, hasUpdate bool) (*Problem, error) {
	reg, err := registry.ParseDeclarations(decls)
	if err != nil {
		return nil, err
	}
	p := &Problem{
		Registry:       reg,
		Declarations:   decls,
		BackgroundText: background,
		TargetText:     target,
		HasUpdate:      hasUpdate,
		UpdateText:     update,
	}
	if p.Background, err = parseAll(background, reg); err != nil {
		return nil, err
	}
	if p.Target, err = logic.ParseSentence(target, reg); err != nil {
		return nil, err
	}
	if p.Update, err = parseAll(update, reg); err != nil {
		return nil, err
	}
	logging.ParseDebug("parsed %d variables, %d background sentences, %d update sentences", reg.Len(), len(p.Background), len(p.Update))
	return p, nil
}

// readRecord splits one line into fields. Blank lines yield an empty record.
func readRecord(line string) ([]string, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	cr := csv.NewReader(strings.NewReader(line))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr.Read()
}

func parseAll(sentences []string, reg *registry.Registry) ([]*logic.Expr, error) {
	out := make([]*logic.Expr, 0, len(sentences))
	for _, s := range sentences {
		e, err := logic.ParseSentence(s, reg)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func nonEmpty(fields []string) []string {
	var out []string
	for _, f := range fields {
		if s := strings.TrimSpace(f); s != "" {
			out = append(out, s)
		}
	}
	return out
}
