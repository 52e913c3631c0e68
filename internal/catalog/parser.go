package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/conorfennell/lexicard/internal/domain"
)

// Vocabulary notes are plain text, one field per prefixed line, entries
// separated by "---" or a new "W:" line:
//
//	W: abandon
//	L: 3
//	P: verb
//	S: to leave someone or something behind
//	E: They had to abandon the car. || role=correct_answer; sentence=cloze; source=TOEIC; year=2021; official
//	Y: desert, forsake
//	D: abandonment
//	X: desert: to leave a place empty
//
// Lines without a prefix continue the preceding S: or E: block.
const (
	lemmaPrefix      = "W:"
	typePrefix       = "T:"
	levelPrefix      = "L:"
	posPrefix        = "P:"
	sensePrefix      = "S:"
	examplePrefix    = "E:"
	synonymPrefix    = "Y:"
	derivedPrefix    = "D:"
	confusedPrefix   = "X:"
	variantPrefix    = "V:"
	inflectionPrefix = "I:"

	metaSeparator = "||"
)

type state int

const (
	seeking state = iota
	readingEntry
	readingSense
	readingExample
)

// ParseFile reads a vocabulary note file from the given path.
func ParseFile(path string) ([]*Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entries, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Parse reads vocabulary notes from r.
func Parse(r io.Reader) ([]*Entry, error) {
	scanner := bufio.NewScanner(r)
	var entries []*Entry
	var current *Entry
	var currentBlock []string
	var pos string
	currentState := seeking
	lineNo := 0

	flushBlock := func() error {
		if len(currentBlock) == 0 {
			return nil
		}
		content := strings.TrimSpace(strings.Join(currentBlock, "\n"))
		currentBlock = nil
		switch currentState {
		case readingSense:
			current.Senses = append(current.Senses, Sense{POS: pos, Definition: content})
		case readingExample:
			if len(current.Senses) == 0 {
				return fmt.Errorf("line %d: example before any sense", lineNo)
			}
			ex, err := parseExample(content)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			last := &current.Senses[len(current.Senses)-1]
			last.Examples = append(last.Examples, ex)
		}
		return nil
	}

	finishEntry := func() error {
		if err := flushBlock(); err != nil {
			return err
		}
		if current != nil && current.Lemma != "" {
			entries = append(entries, current)
		}
		current = nil
		pos = ""
		currentState = seeking
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineNo++

		if line == "---" {
			if err := finishEntry(); err != nil {
				return nil, err
			}
			continue
		}

		prefix, content, ok := splitPrefix(line)
		if !ok {
			if currentState == readingSense || currentState == readingExample {
				currentBlock = append(currentBlock, line)
			}
			continue
		}

		if prefix == lemmaPrefix {
			if err := finishEntry(); err != nil { // A new lemma always starts a new entry
				return nil, err
			}
			current = &Entry{Lemma: content}
			currentState = readingEntry
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("line %d: %s before %s", lineNo, prefix, lemmaPrefix)
		}
		if err := flushBlock(); err != nil {
			return nil, err
		}
		currentState = readingEntry

		switch prefix {
		case typePrefix:
			current.Type = domain.EntryType(strings.ToLower(content))
		case levelPrefix:
			level, err := strconv.Atoi(content)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid level %q", lineNo, content)
			}
			current.Level = level
		case posPrefix:
			pos = content
			if current.POS == "" {
				current.POS = content
			}
		case sensePrefix:
			currentState = readingSense
			currentBlock = append(currentBlock, content)
		case examplePrefix:
			currentState = readingExample
			currentBlock = append(currentBlock, content)
		case synonymPrefix:
			current.Synonyms = append(current.Synonyms, splitList(content)...)
		case derivedPrefix:
			current.DerivedForms = append(current.DerivedForms, splitList(content)...)
		case confusedPrefix:
			current.ConfusedWith = append(current.ConfusedWith, content)
		case variantPrefix:
			current.Variants = append(current.Variants, splitList(content)...)
		case inflectionPrefix:
			current.Inflections = append(current.Inflections, splitList(content)...)
		}
	}

	if err := finishEntry(); err != nil { // Finish the very last entry in the file
		return nil, err
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

var prefixes = []string{
	lemmaPrefix, typePrefix, levelPrefix, posPrefix, sensePrefix, examplePrefix,
	synonymPrefix, derivedPrefix, confusedPrefix, variantPrefix, inflectionPrefix,
}

func splitPrefix(line string) (prefix, content string, ok bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			return p, strings.TrimSpace(line[len(p):]), true
		}
	}
	return "", "", false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseExample splits "text || key=value; flag" into an Example.
func parseExample(content string) (Example, error) {
	text, meta, _ := strings.Cut(content, metaSeparator)
	ex := Example{Text: strings.TrimSpace(text), Role: RoleGeneral}

	for _, field := range strings.Split(meta, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, value, _ := strings.Cut(field, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "role":
			ex.Role = ExampleRole(value)
		case "sentence":
			ex.SentenceRole = SentenceRole(value)
		case "source":
			ex.Source = value
		case "year":
			year, err := strconv.Atoi(value)
			if err != nil {
				return Example{}, fmt.Errorf("invalid example year %q", value)
			}
			ex.Year = year
		case "official":
			ex.Official = value == "" || value == "true"
		default:
			return Example{}, fmt.Errorf("unknown example field %q", key)
		}
	}
	return ex, nil
}
