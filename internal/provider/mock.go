package provider

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/width"

	"github.com/nunajera/kbchat/internal/prompt"
)

// minOverlap is how many character bigrams a question must share with the query.
const minOverlap = 2

// MockProvider answers offline from the Q/A pairs in the knowledge base.
// Lines of the form "Q: ... A: ...", a "Q:" line followed by an "A:" line, and
// table rows "question | answer" are recognised.
type MockProvider struct{}

func (MockProvider) Model() string { return "mock-qa" }

func (MockProvider) Reply(ctx context.Context, system, userInput string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	kb := prompt.Knowledge(system)
	if kb == "" {
		kb = system
	}

	query := bigrams(userInput)
	best, bestScore := "", 0
	for _, p := range parsePairs(kb) {
		score := 0
		for bg := range bigrams(p.question) {
			if query[bg] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = p.answer, score
		}
	}
	if bestScore < minOverlap {
		return prompt.NoInfoReply, nil
	}
	return best, nil
}

func (MockProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return []ModelInfo{{ID: "mock-qa", OwnedBy: "local"}}, nil
}

type qaPair struct {
	question string
	answer   string
}

func parsePairs(text string) []qaPair {
	var (
		pairs   []qaPair
		pending string
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if q, ok := cutLabel(line, 'Q'); ok {
			if i, n := indexLabel(q, 'A'); i >= 0 {
				pairs = append(pairs, qaPair{strings.TrimSpace(q[:i]), strings.TrimSpace(q[i+n:])})
				pending = ""
				continue
			}
			pending = q
			continue
		}
		if a, ok := cutLabel(line, 'A'); ok && pending != "" {
			pairs = append(pairs, qaPair{pending, a})
			pending = ""
			continue
		}
		if q, a, ok := strings.Cut(line, " | "); ok {
			pairs = append(pairs, qaPair{q, a})
		}
	}
	return pairs
}

// cutLabel strips a leading "Q:" style label, accepting the full-width colon.
func cutLabel(line string, label byte) (string, bool) {
	if len(line) < 2 || line[0] != label {
		return "", false
	}
	for _, colon := range []string{":", "："} {
		if strings.HasPrefix(line[1:], colon) {
			return strings.TrimSpace(line[1+len(colon):]), true
		}
	}
	return "", false
}

// indexLabel finds an inline "A:" label, returning its index and length.
func indexLabel(s string, label byte) (int, int) {
	for _, colon := range []string{":", "："} {
		marker := string(label) + colon
		if i := strings.Index(s, marker); i >= 0 {
			return i, len(marker)
		}
	}
	return -1, 0
}

// bigrams returns the set of adjacent letter/digit pairs after width folding.
func bigrams(s string) map[string]bool {
	s = width.Fold.String(strings.ToLower(s))
	runes := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			runes = append(runes, r)
		}
	}
	set := make(map[string]bool, len(runes))
	for i := 0; i+1 < len(runes); i++ {
		set[string(runes[i:i+2])] = true
	}
	return set
}
