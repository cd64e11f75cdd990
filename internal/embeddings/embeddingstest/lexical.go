// Package embeddingstest provides a deterministic in-process embeddings
// provider for tests that must not depend on a model server.
package embeddingstest

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"golang.org/x/text/cases"
)

// Lexical embeds text as a bag of case-folded word tokens. Each distinct token
// claims its own dimension until the vector is full, after which tokens share
// dimensions by hash. Texts with overlapping words score high under cosine.
type Lexical struct {
	Dimension int
	Model     string

	// Err, when set, is returned by every Embed call.
	Err error

	calls atomic.Int64

	mu    sync.Mutex
	vocab map[string]int
	fold  cases.Caser
}

// NewLexical returns a Lexical provider with the given dimension.
func NewLexical(dim int) *Lexical {
	return &Lexical{Dimension: dim, Model: "lexical"}
}

func (l *Lexical) ModelID() string { return "test:" + l.Model }

func (l *Lexical) Dim() int { return l.Dimension }

// Calls reports how many Embed calls were made.
func (l *Lexical) Calls() int64 { return l.calls.Load() }

func (l *Lexical) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	l.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Err != nil {
		return nil, l.Err
	}
	if l.Dimension <= 0 {
		return nil, errors.New("lexical: dimension must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.vocab == nil {
		l.vocab = make(map[string]int)
		l.fold = cases.Fold()
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, l.Dimension)
		for _, tok := range l.tokens(text) {
			v[l.slot(tok)]++
		}
		out[i] = v
	}
	return out, nil
}

func (l *Lexical) tokens(text string) []string {
	return strings.FieldsFunc(l.fold.String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (l *Lexical) slot(tok string) int {
	if s, ok := l.vocab[tok]; ok {
		return s
	}
	s := len(l.vocab)
	if s >= l.Dimension {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		s = int(h.Sum32() % uint32(l.Dimension))
	}
	l.vocab[tok] = s
	return s
}
