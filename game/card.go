/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/Seednode/kakaroto/parser"
)

type CardType string

const (
	Normal     CardType = "normal"
	Ongoing    CardType = "ongoing"
	OngoingEnd CardType = "ongoing-end"
)

const (
	minQuestionLen    = 5
	maxQuestionLen    = 255
	maxTitleLen       = 255
	maxDescriptionLen = 1000
)

// Card is a single challenge. Ongoing cards carry a closing text that is
// shown some rounds after the opening one.
type Card struct {
	Type        CardType `json:"type" yaml:"type"`
	Question    string   `json:"question" yaml:"question"`
	QuestionEnd string   `json:"questionEnd,omitempty" yaml:"questionEnd,omitempty"`
}

func (c Card) texts() []string {
	if c.Type == Ongoing {
		return []string{c.Question, c.QuestionEnd}
	}

	return []string{c.Question}
}

// PlayersNeeded is the roster size a card needs to be dealt.
func (c Card) PlayersNeeded() int {
	return parser.Parse(c.Question).NPlayers
}

func checkLength(field, s string, min, max int) error {
	n := utf8.RuneCountInString(s)
	if n < min || n > max {
		return fmt.Errorf("%s must be between %d and %d characters, got %d", field, min, max, n)
	}

	return nil
}

func (c Card) Validate() error {
	switch c.Type {
	case Normal:
		if c.QuestionEnd != "" {
			return errors.New("questionEnd is only allowed on ongoing cards")
		}
	case Ongoing:
		if err := checkLength("questionEnd", c.QuestionEnd, minQuestionLen, maxQuestionLen); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown card type %q", c.Type)
	}

	return checkLength("question", c.Question, minQuestionLen, maxQuestionLen)
}

// Collection is a titled, ordered group of cards.
type Collection struct {
	ID          int64  `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Cards       []Card `json:"cards" yaml:"cards"`
}

func (c Collection) Validate() error {
	if err := checkLength("title", c.Title, 1, maxTitleLen); err != nil {
		return err
	}
	if utf8.RuneCountInString(c.Description) > maxDescriptionLen {
		return fmt.Errorf("description must be at most %d characters", maxDescriptionLen)
	}
	if len(c.Cards) == 0 {
		return errors.New("a collection needs at least one card")
	}

	for i, card := range c.Cards {
		if err := card.Validate(); err != nil {
			return fmt.Errorf("card %d: %w", i+1, err)
		}
	}

	return nil
}

// GameCard is a card dealt into a session, with an id unique to that session.
type GameCard struct {
	Card
	ID int `json:"id"`
}

// OngoingChallenge is an opened ongoing card waiting to be closed out.
type OngoingChallenge struct {
	GameCard
	EndRound        int             `json:"endRound"`
	SelectedPlayers parser.Bindings `json:"selectedPlayers"`
}

// Challenge is what is currently on screen. For the closing half of an
// ongoing card, Type is OngoingEnd and Question holds the closing text.
type Challenge struct {
	GameCard
	SelectedPlayers parser.Bindings `json:"selectedPlayers"`
}
