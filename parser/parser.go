/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package parser finds player placeholders ($1, $2, ...) in challenge text,
// binds them to players and renders the result.
package parser

import (
	"errors"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\d+`)

var ErrNotEnoughPlayers = errors.New("not enough players for this challenge")

// RevealMarker separates parts of a challenge that are shown one at a time.
const RevealMarker = "...."

// Player is a roster member as seen by the parser.
type Player struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Part is one piece of a parsed challenge: either literal text, or a
// reference to the Ordinal-th player (1-based).
type Part struct {
	Text    string `json:"text,omitempty"`
	Ordinal int    `json:"ordinal,omitempty"`
}

func (p Part) IsPlayer() bool {
	return p.Ordinal > 0
}

// Parsed is the result of scanning one challenge text.
type Parsed struct {
	Parts    []Part
	Players  []int // distinct placeholder numbers, ascending
	NPlayers int
}

// Random is the source used to pick players.
type Random interface {
	IntN(n int) int
}

// number returns the value of a placeholder token. Tokens whose number does
// not fit an int are not placeholders.
func number(token string) (int, bool) {
	n, err := strconv.Atoi(token[1:])
	if err != nil {
		return 0, false
	}

	return n, true
}

// placeholders returns the index pairs of every real placeholder in text.
func placeholders(text string) [][]int {
	return slices.DeleteFunc(placeholder.FindAllStringIndex(text, -1), func(m []int) bool {
		_, ok := number(text[m[0]:m[1]])
		return !ok
	})
}

// Parse scans text for placeholders. Ordinals follow the numeric order of
// the placeholder numbers, not the order they appear in.
func Parse(text string) Parsed {
	seen := make(map[int]bool)
	players := []int{}

	matches := placeholders(text)
	for _, m := range matches {
		n, _ := number(text[m[0]:m[1]])
		if !seen[n] {
			seen[n] = true
			players = append(players, n)
		}
	}

	slices.Sort(players)

	parts := make([]Part, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		if m[0] > 0 {
			parts = append(parts, Part{Text: text[last:m[0]]})
		}
		last = m[1]

		n, _ := number(text[m[0]:m[1]])
		idx, _ := slices.BinarySearch(players, n)
		parts = append(parts, Part{Ordinal: idx + 1})
	}
	parts = append(parts, Part{Text: text[last:]})

	return Parsed{
		Parts:    parts,
		Players:  players,
		NPlayers: len(players),
	}
}

// Binding ties a placeholder number to the player chosen for it.
type Binding struct {
	Number  int    `json:"number"`
	Ordinal int    `json:"ordinal"`
	Player  Player `json:"player"`
}

type Bindings []Binding

func (b Bindings) Lookup(number int) (Player, bool) {
	for _, binding := range b {
		if binding.Number == number {
			return binding.Player, true
		}
	}

	return Player{}, false
}

// SelectPlayers picks a player for every placeholder of the text with the
// most distinct placeholders. Passing the opening and closing text of an
// ongoing challenge together gives both halves the same binding.
func SelectPlayers(texts []string, roster []Player, rnd Random) (Bindings, error) {
	var most []int
	for _, text := range texts {
		parsed := Parse(text)
		if len(parsed.Players) > len(most) {
			most = parsed.Players
		}
	}

	if len(most) > len(roster) {
		return nil, ErrNotEnoughPlayers
	}

	left := slices.Clone(roster)
	bindings := make(Bindings, 0, len(most))

	for i, n := range most {
		idx := rnd.IntN(len(left))
		bindings = append(bindings, Binding{
			Number:  n,
			Ordinal: i + 1,
			Player:  left[idx],
		})
		left = slices.Delete(left, idx, idx+1)
	}

	return bindings, nil
}

// Fragment is a piece of rendered text. Player is set when the fragment
// stands for a bound player.
type Fragment struct {
	Text   string  `json:"text"`
	Player *Player `json:"player,omitempty"`
}

// Render substitutes bound players into each text. Placeholders without a
// binding are left as they are.
func Render(texts []string, b Bindings) [][]Fragment {
	out := make([][]Fragment, 0, len(texts))

	for _, text := range texts {
		var fragments []Fragment

		last := 0
		for _, m := range placeholders(text) {
			fragments = append(fragments, Fragment{Text: text[last:m[0]]})
			last = m[1]

			token := text[m[0]:m[1]]
			n, _ := number(token)
			if p, ok := b.Lookup(n); ok {
				fragments = append(fragments, Fragment{Text: p.Name, Player: &p})
			} else {
				fragments = append(fragments, Fragment{Text: token})
			}
		}
		fragments = append(fragments, Fragment{Text: text[last:]})

		out = append(out, fragments)
	}

	return out
}

// Plain joins rendered fragments back into a string.
func Plain(fragments []Fragment) string {
	var sb strings.Builder
	for _, f := range fragments {
		sb.WriteString(f.Text)
	}

	return sb.String()
}

// Segments splits rendered text on RevealMarker so that a challenge can be
// revealed part by part. Empty pieces are dropped; a text without markers is
// a single segment.
func Segments(fragments []Fragment) [][]Fragment {
	segments := [][]Fragment{{}}

	for _, f := range fragments {
		if f.Player != nil {
			segments[len(segments)-1] = append(segments[len(segments)-1], f)
			continue
		}

		pieces := strings.Split(f.Text, RevealMarker)
		for i, piece := range pieces {
			if i > 0 {
				segments = append(segments, []Fragment{})
			}
			if piece != "" {
				segments[len(segments)-1] = append(segments[len(segments)-1], Fragment{Text: piece})
			}
		}
	}

	return slices.DeleteFunc(segments, func(s []Fragment) bool {
		return len(s) == 0
	})
}
