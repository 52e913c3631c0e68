// Package catalog is the read-only vocabulary content the quiz engine draws from.
package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/lexicard/internal/domain"
)

// ExampleRole says how an example sentence relates to its entry.
type ExampleRole string

const (
	RoleGeneral       ExampleRole = "general"
	RoleCorrectAnswer ExampleRole = "correct_answer"
	RoleDistractor    ExampleRole = "distractor"
	RoleDefinition    ExampleRole = "definition"
)

// SentenceRole marks where an exam used the sentence.
type SentenceRole string

const (
	SentenceCloze  SentenceRole = "cloze"
	SentenceOption SentenceRole = "option"
)

// Example is a sentence showing an entry in use.
type Example struct {
	Text         string       `yaml:"text" validate:"required"`
	Role         ExampleRole  `yaml:"role" validate:"omitempty,oneof=general correct_answer distractor definition"`
	SentenceRole SentenceRole `yaml:"sentence_role" validate:"omitempty,oneof=cloze option"`
	Source       string       `yaml:"source"`
	Official     bool         `yaml:"official"`
	Year         int          `yaml:"year" validate:"omitempty,gte=1900,lte=2200"`
}

// Sense is one meaning of an entry.
type Sense struct {
	ID         string    `yaml:"id"`
	POS        string    `yaml:"pos"`
	Definition string    `yaml:"definition" validate:"required"`
	Examples   []Example `yaml:"examples" validate:"dive"`
}

// Entry is a word or phrase with its senses and related forms.
type Entry struct {
	Lemma        string           `yaml:"lemma" validate:"required"`
	Type         domain.EntryType `yaml:"type" validate:"omitempty,oneof=word phrase"`
	Level        int              `yaml:"level" validate:"gte=0,lte=10"`
	POS          string           `yaml:"pos"`
	Senses       []Sense          `yaml:"senses" validate:"required,min=1,dive"`
	Synonyms     []string         `yaml:"synonyms"`
	DerivedForms []string         `yaml:"derived_forms"`
	ConfusedWith []string         `yaml:"confused_with"`
	Variants     []string         `yaml:"variants"`
	Inflections  []string         `yaml:"inflections"`

	// Confusions holds the parsed ConfusedWith notes that were well formed.
	Confusions []Confusion `yaml:"-"`
}

// Sense returns the sense with the given id. PrimarySense and the empty id
// resolve to the first sense.
func (e *Entry) Sense(id string) (Sense, bool) {
	if len(e.Senses) == 0 {
		return Sense{}, false
	}
	if id == "" || id == domain.PrimarySense {
		return e.Senses[0], true
	}
	for _, s := range e.Senses {
		if s.ID == id {
			return s, true
		}
	}
	return Sense{}, false
}

// PrimarySenseID returns the id of the first sense.
func (e *Entry) PrimarySenseID() string {
	if len(e.Senses) == 0 || e.Senses[0].ID == "" {
		return domain.PrimarySense
	}
	return e.Senses[0].ID
}

// PartOfSpeech returns the entry's part of speech, falling back to its first sense.
func (e *Entry) PartOfSpeech() string {
	if e.POS != "" {
		return e.POS
	}
	if len(e.Senses) > 0 {
		return e.Senses[0].POS
	}
	return ""
}

// Related returns the lemma, synonyms and derived forms, lowercased. None of
// them may appear as a distractor for this entry.
func (e *Entry) Related() map[string]bool {
	out := make(map[string]bool, 1+len(e.Synonyms)+len(e.DerivedForms))
	out[Key(e.Lemma)] = true
	for _, s := range e.Synonyms {
		out[Key(s)] = true
	}
	for _, d := range e.DerivedForms {
		out[Key(d)] = true
	}
	return out
}

// Key normalizes a lemma for lookups.
func Key(lemma string) string {
	return strings.ToLower(strings.Join(strings.Fields(lemma), " "))
}

// Lookup is the read-only view of a catalog.
type Lookup interface {
	Entry(lemma string) (*Entry, bool)
	Entries() []*Entry
}

type posLevel struct {
	pos   string
	level int
}

// Catalog is an in-memory catalog indexed by lemma, part of speech and level.
type Catalog struct {
	entries    map[string]*Entry
	order      []*Entry
	byPOS      map[string][]*Entry
	byPOSLevel map[posLevel][]*Entry
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// New validates and indexes entries. Missing sense ids and entry types are
// filled in, and ConfusedWith notes are parsed; malformed notes are logged
// and skipped. A lemma that appears twice keeps its first entry.
func New(logger *slog.Logger, entries ...*Entry) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		entries:    make(map[string]*Entry, len(entries)),
		byPOS:      make(map[string][]*Entry),
		byPOSLevel: make(map[posLevel][]*Entry),
	}
	for _, e := range entries {
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("invalid entry %q: %w", e.Lemma, err)
		}
		k := Key(e.Lemma)
		if _, dup := c.entries[k]; dup {
			logger.Warn("duplicate catalog entry, keeping the first", "lemma", e.Lemma)
			continue
		}
		normalize(e, logger)
		c.entries[k] = e
		c.order = append(c.order, e)
	}

	sort.Slice(c.order, func(i, j int) bool { return Key(c.order[i].Lemma) < Key(c.order[j].Lemma) })
	for _, e := range c.order {
		pos := e.PartOfSpeech()
		c.byPOS[pos] = append(c.byPOS[pos], e)
		c.byPOSLevel[posLevel{pos, e.Level}] = append(c.byPOSLevel[posLevel{pos, e.Level}], e)
	}
	return c, nil
}

func normalize(e *Entry, logger *slog.Logger) {
	e.Lemma = strings.TrimSpace(e.Lemma)
	if e.Type == "" {
		e.Type = domain.EntryWord
		if strings.Contains(e.Lemma, " ") {
			e.Type = domain.EntryPhrase
		}
	}
	for i := range e.Senses {
		if e.Senses[i].ID != "" {
			continue
		}
		if i == 0 {
			e.Senses[i].ID = domain.PrimarySense
			continue
		}
		e.Senses[i].ID = SenseID(e.Senses[i])
	}
	e.Confusions = e.Confusions[:0]
	for _, raw := range e.ConfusedWith {
		conf, err := ParseConfusion(raw)
		if err != nil {
			logger.Warn("skipping malformed confusion note", "lemma", e.Lemma, "note", raw, "error", err)
			continue
		}
		e.Confusions = append(e.Confusions, conf)
	}
}

// Entry returns the entry for lemma, matched case-insensitively.
func (c *Catalog) Entry(lemma string) (*Entry, bool) {
	e, ok := c.entries[Key(lemma)]
	return e, ok
}

// Entries returns every entry ordered by lemma.
func (c *Catalog) Entries() []*Entry {
	return c.order
}

// ByPOS returns the entries with the given part of speech.
func (c *Catalog) ByPOS(pos string) []*Entry {
	return c.byPOS[pos]
}

// ByPOSLevel returns the entries with the given part of speech and level.
func (c *Catalog) ByPOSLevel(pos string, level int) []*Entry {
	return c.byPOSLevel[posLevel{pos, level}]
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.order)
}
