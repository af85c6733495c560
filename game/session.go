/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package game runs a drinking game session: the roster, the shuffled deck
// of challenges and the ongoing challenges waiting to be closed out.
//
// A Session is not safe for concurrent use; callers drive it from a single
// goroutine.
package game

import (
	"errors"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/Seednode/kakaroto/parser"
)

type State string

const (
	None     State = "none"
	Started  State = "started"
	Finished State = "finished"
)

const (
	MinPlayers = 2

	// Ongoing challenges last between minOngoingRounds and
	// maxOngoingRounds-1 rounds, unless the deck is running out.
	minOngoingRounds = 5
	maxOngoingRounds = 12
)

var (
	ErrNotEnoughPlayers = errors.New("you need at least 2 players to play")
	ErrNotOngoing       = errors.New("current challenge is not ongoing")
	ErrOngoingNotFound  = errors.New("current challenge not found in ongoing challenges")
)

type Player = parser.Player

type mathRandom struct{}

func (mathRandom) IntN(n int) int {
	return rand.IntN(n)
}

// Session is the state of one game, from lobby to the last card.
type Session struct {
	rnd     parser.Random
	storage Storage
	key     string
	logf    func(format string, args ...any)

	data snapshot
}

type Option func(*Session)

func WithRandom(rnd parser.Random) Option {
	return func(s *Session) {
		s.rnd = rnd
	}
}

// WithStorage makes the session restore itself from key on creation and
// save itself there after every change.
func WithStorage(storage Storage, key string) Option {
	return func(s *Session) {
		s.storage = storage
		s.key = key
	}
}

func WithLogf(logf func(format string, args ...any)) Option {
	return func(s *Session) {
		s.logf = logf
	}
}

func New(opts ...Option) *Session {
	s := &Session{
		rnd:  mathRandom{},
		logf: func(string, ...any) {},
		data: snapshot{State: None},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.restore()

	return s
}

func (s *Session) State() State {
	return s.data.State
}

func (s *Session) Round() int {
	return s.data.RoundNumber
}

func (s *Session) Players() []Player {
	return slices.Clone(s.data.Players)
}

func (s *Session) SelectedCollections() []Collection {
	return slices.Clone(s.data.SelectedCollections)
}

func (s *Session) CardsLeft() []GameCard {
	return slices.Clone(s.data.CardsLeft)
}

func (s *Session) Ongoing() []OngoingChallenge {
	return slices.Clone(s.data.OngoingChallenges)
}

// Current returns the challenge on screen, or nil before the first draw.
func (s *Session) Current() *Challenge {
	if s.data.CurrentChallenge == nil {
		return nil
	}
	c := *s.data.CurrentChallenge

	return &c
}

// Skippable reports whether the current challenge is an ongoing challenge
// that was just opened.
func (s *Session) Skippable() bool {
	current := s.data.CurrentChallenge
	if current == nil || current.Type != Ongoing {
		return false
	}

	return slices.ContainsFunc(s.data.OngoingChallenges, func(o OngoingChallenge) bool {
		return o.ID == current.ID
	})
}

func (s *Session) Finished() bool {
	return s.data.State == Finished
}

// AddPlayer adds name to the roster. Blank and already present names are
// ignored. Every existing player is given a new random color.
func (s *Session) AddPlayer(name string) {
	name = strings.TrimSpace(name)
	if name == "" || s.hasPlayer(name) {
		return
	}

	colors := GenerateColors(len(s.data.Players) + 1)
	for i := range s.data.Players {
		idx := s.rnd.IntN(len(colors))
		s.data.Players[i].Color = colors[idx]
		colors = slices.Delete(colors, idx, idx+1)
	}

	s.data.Players = append(s.data.Players, Player{Name: name, Color: colors[0]})

	s.save()
}

func (s *Session) hasPlayer(name string) bool {
	return slices.ContainsFunc(s.data.Players, func(p Player) bool {
		return p.Name == name
	})
}

func (s *Session) RemovePlayer(name string) {
	s.data.Players = slices.DeleteFunc(s.data.Players, func(p Player) bool {
		return p.Name == name
	})

	s.save()
}

// AddCollection selects c for the next game, unless a collection with the
// same id is already selected.
func (s *Session) AddCollection(c Collection) {
	if slices.ContainsFunc(s.data.SelectedCollections, func(selected Collection) bool {
		return selected.ID == c.ID
	}) {
		return
	}

	s.data.SelectedCollections = append(s.data.SelectedCollections, c)

	s.save()
}

func (s *Session) RemoveCollection(id int64) {
	s.data.SelectedCollections = slices.DeleteFunc(s.data.SelectedCollections, func(c Collection) bool {
		return c.ID == id
	})

	s.save()
}

// SetCollections replaces the selection. Later duplicates of an id are
// dropped.
func (s *Session) SetCollections(collections []Collection) {
	seen := make(map[int64]bool, len(collections))
	selected := make([]Collection, 0, len(collections))

	for _, c := range collections {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		selected = append(selected, c)
	}

	s.data.SelectedCollections = selected

	s.save()
}

// CheckPlayersAndSetCards validates the roster and recomputes the cards
// that can still be dealt. Before the game has started it also builds the
// deck from the selected collections.
//
// Cards that need more players than the roster has are dropped, and are
// not dealt again in this session even if players join later.
func (s *Session) CheckPlayersAndSetCards() error {
	if err := s.checkPlayersAndSetCards(); err != nil {
		return err
	}

	s.save()

	return nil
}

func (s *Session) checkPlayersAndSetCards() error {
	if len(s.data.Players) < MinPlayers {
		return ErrNotEnoughPlayers
	}

	if s.data.State != Started {
		s.buildDeck()
	}

	played := make(map[int]bool, len(s.data.PlayedCardIDs))
	for _, id := range s.data.PlayedCardIDs {
		played[id] = true
	}

	cardsLeft := make([]GameCard, 0, len(s.data.GameCards))
	for _, card := range s.data.GameCards {
		if played[card.ID] || card.PlayersNeeded() > len(s.data.Players) {
			continue
		}
		cardsLeft = append(cardsLeft, card)
	}
	s.data.CardsLeft = cardsLeft

	return nil
}

func (s *Session) buildDeck() {
	var cards []GameCard
	for _, c := range s.data.SelectedCollections {
		for _, card := range c.Cards {
			cards = append(cards, GameCard{Card: card, ID: len(cards)})
		}
	}

	for i := len(cards) - 1; i > 0; i-- {
		j := s.rnd.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}

	s.data.GameCards = cards
	s.data.PlayedCardIDs = nil
	s.data.OngoingChallenges = nil
	s.data.CurrentChallenge = nil
	s.data.RoundNumber = 0
}

// SetGameState moves the session to state. Starting a game checks the
// roster first and, if that fails, returns the error and changes nothing;
// otherwise the first challenge is drawn right away.
func (s *Session) SetGameState(state State) error {
	if state == Started {
		if err := s.checkPlayersAndSetCards(); err != nil {
			return err
		}

		s.data.State = Started
		s.data.SelectedCollections = nil
		s.nextChallenge()
		s.save()

		return nil
	}

	s.data.State = state

	s.save()

	return nil
}

// NextChallenge advances the game by one round. A due ongoing challenge is
// closed out before a new card is drawn; once the deck is empty, remaining
// ongoing challenges are closed out one per call. It returns false, and the
// session is finished, when there is nothing left to show.
func (s *Session) NextChallenge() bool {
	more := s.nextChallenge()

	s.save()

	return more
}

func (s *Session) nextChallenge() bool {
	if s.data.State != Started {
		return false
	}

	ended := slices.IndexFunc(s.data.OngoingChallenges, func(o OngoingChallenge) bool {
		return o.EndRound <= s.data.RoundNumber
	})

	if ended < 0 && len(s.data.CardsLeft) == 0 && len(s.data.OngoingChallenges) > 0 {
		ended = 0
	}

	if ended >= 0 {
		o := s.data.OngoingChallenges[ended]

		s.data.CurrentChallenge = &Challenge{
			GameCard: GameCard{
				Card: Card{Type: OngoingEnd, Question: o.QuestionEnd},
				ID:   o.ID,
			},
			SelectedPlayers: o.SelectedPlayers,
		}
		s.data.OngoingChallenges = slices.Delete(s.data.OngoingChallenges, ended, ended+1)
		s.data.RoundNumber++

		return true
	}

	if len(s.data.CardsLeft) == 0 {
		s.data.State = Finished

		return false
	}

	idx := s.rnd.IntN(len(s.data.CardsLeft))
	card := s.data.CardsLeft[idx]
	s.data.CardsLeft = slices.Delete(s.data.CardsLeft, idx, idx+1)
	s.data.PlayedCardIDs = append(s.data.PlayedCardIDs, card.ID)

	bindings, err := parser.SelectPlayers(card.texts(), s.data.Players, s.rnd)
	if err != nil {
		// the roster shrank below what this card needs without a re-check
		s.logf("GAMES: Dropping card %d: %v", card.ID, err)

		return s.nextChallenge()
	}

	if card.Type == Ongoing {
		rounds := minOngoingRounds + s.rnd.IntN(maxOngoingRounds-minOngoingRounds)
		rounds = min(rounds, int(float64(len(s.data.CardsLeft))/1.5))

		s.data.OngoingChallenges = append(s.data.OngoingChallenges, OngoingChallenge{
			GameCard:        card,
			EndRound:        s.data.RoundNumber + rounds,
			SelectedPlayers: bindings,
		})
	}

	s.data.CurrentChallenge = &Challenge{
		GameCard:        card,
		SelectedPlayers: bindings,
	}
	s.data.RoundNumber++

	return true
}

// SkipOngoingChallenge drops the ongoing challenge that was just opened, so
// that its closing half is never shown. It is only valid while that
// challenge is the current one.
func (s *Session) SkipOngoingChallenge() error {
	current := s.data.CurrentChallenge
	if current == nil || current.Type != Ongoing {
		return ErrNotOngoing
	}

	idx := slices.IndexFunc(s.data.OngoingChallenges, func(o OngoingChallenge) bool {
		return o.ID == current.ID
	})
	if idx < 0 {
		return ErrOngoingNotFound
	}

	s.data.OngoingChallenges = slices.Delete(s.data.OngoingChallenges, idx, idx+1)

	s.save()

	return nil
}

// Reset returns the session to the lobby. The selected collections are
// kept.
func (s *Session) Reset() {
	s.data = snapshot{
		State:               None,
		SelectedCollections: s.data.SelectedCollections,
	}

	s.save()
}
