/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"encoding/json"
	"errors"
)

// StorageKey is the key a session is saved under when there is only one.
const StorageKey = "kakaroto-game-state-v1"

// ErrNotFound is returned by Storage.Load when nothing is saved under a key.
var ErrNotFound = errors.New("no saved state")

// Storage holds serialized sessions. Save must not block for long; the
// session calls it after every change.
type Storage interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
}

type snapshot struct {
	State               State              `json:"state"`
	RoundNumber         int                `json:"roundNumber"`
	Players             []Player           `json:"players"`
	SelectedCollections []Collection       `json:"selectedCollections"`
	GameCards           []GameCard         `json:"gameCards"`
	CardsLeft           []GameCard         `json:"cardsLeft"`
	PlayedCardIDs       []int              `json:"playedCardIds"`
	OngoingChallenges   []OngoingChallenge `json:"ongoingChallenges"`
	CurrentChallenge    *Challenge         `json:"currentChallenge"`
}

func (s *snapshot) valid() bool {
	switch s.State {
	case None, Started, Finished:
		return true
	default:
		return false
	}
}

func (s *Session) restore() {
	if s.storage == nil {
		return
	}

	data, err := s.storage.Load(s.key)
	switch {
	case errors.Is(err, ErrNotFound):
		return
	case err != nil:
		s.logf("GAMES: Unable to load %s: %v", s.key, err)

		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil || !snap.valid() {
		s.logf("GAMES: Ignoring malformed state in %s", s.key)

		return
	}

	s.data = snap
}

// save writes the whole session out. Failing to save never undoes or
// blocks a change.
func (s *Session) save() {
	if s.storage == nil {
		return
	}

	data, err := json.Marshal(&s.data)
	if err != nil {
		s.logf("GAMES: Unable to encode %s: %v", s.key, err)

		return
	}

	if err := s.storage.Save(s.key, data); err != nil {
		s.logf("GAMES: Unable to save %s: %v", s.key, err)
	}
}
