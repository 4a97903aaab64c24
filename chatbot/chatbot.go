// Package chatbot answers visitor questions from a scripted knowledge base.
package chatbot

import (
	_ "embed" // needed for go:embed
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed knowledge.yaml
var defaultKnowledge []byte

// ErrInvalidKnowledge is returned when a knowledge base fails validation.
var ErrInvalidKnowledge = errors.New("chatbot: invalid knowledge base")

// Knowledge is the scripted content the Responder draws from.
type Knowledge struct {
	Default  string        `yaml:"default"`
	Answers  []Answer      `yaml:"answers"`
	Keywords []KeywordRule `yaml:"keywords"`
}

// Answer maps a phrase contained in a question to a reply.
type Answer struct {
	Phrase string `yaml:"phrase"`
	Answer string `yaml:"answer"`
}

// KeywordRule redirects questions containing any of Terms to the answer of Phrase.
type KeywordRule struct {
	Terms  []string `yaml:"terms"`
	Phrase string   `yaml:"phrase"`
}

// Responder picks replies for questions.
type Responder struct {
	knowledge Knowledge
	byPhrase  map[string]string
}

// Default returns a Responder over the embedded knowledge base.
func Default() *Responder {
	r, err := Parse(defaultKnowledge)
	if err != nil {
		panic("embedded chatbot knowledge base is invalid: " + err.Error())
	}
	return r
}

// Load reads a YAML knowledge base from path.
func Load(path string) (*Responder, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}
	return Parse(raw)
}

// Parse builds a Responder from a YAML knowledge base.
func Parse(raw []byte) (*Responder, error) {
	var k Knowledge
	if err := yaml.Unmarshal(raw, &k); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKnowledge, err)
	}
	return New(k)
}

// New validates k and returns a Responder for it.
func New(k Knowledge) (*Responder, error) {
	if strings.TrimSpace(k.Default) == "" {
		return nil, fmt.Errorf("%w: default answer is empty", ErrInvalidKnowledge)
	}

	byPhrase := make(map[string]string, len(k.Answers))
	for i, a := range k.Answers {
		phrase := normalize(a.Phrase)
		if phrase == "" || strings.TrimSpace(a.Answer) == "" {
			return nil, fmt.Errorf("%w: answer %d needs a phrase and an answer", ErrInvalidKnowledge, i)
		}
		k.Answers[i].Phrase = phrase
		byPhrase[phrase] = a.Answer
	}
	for i, rule := range k.Keywords {
		phrase := normalize(rule.Phrase)
		if _, ok := byPhrase[phrase]; !ok {
			return nil, fmt.Errorf("%w: keyword rule %d points at unknown phrase %q", ErrInvalidKnowledge, i, rule.Phrase)
		}
		k.Keywords[i].Phrase = phrase
		for j, term := range rule.Terms {
			k.Keywords[i].Terms[j] = normalize(term)
		}
	}

	return &Responder{knowledge: k, byPhrase: byPhrase}, nil
}

// Reply returns the best scripted answer for question. Matching is a
// case-insensitive substring search: phrases first, then keyword groups, both
// in knowledge-base order.
func (r *Responder) Reply(question string) string {
	q := normalize(question)

	for _, a := range r.knowledge.Answers {
		if strings.Contains(q, a.Phrase) {
			return a.Answer
		}
	}
	for _, rule := range r.knowledge.Keywords {
		for _, term := range rule.Terms {
			if term != "" && strings.Contains(q, term) {
				return r.byPhrase[rule.Phrase]
			}
		}
	}
	return r.knowledge.Default
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
