/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"github.com/Seednode/kakaroto/parser"
)

// View is the read-only picture of a session handed to clients.
type View struct {
	State               State               `json:"state"`
	Round               int                 `json:"round"`
	Players             []Player            `json:"players"`
	SelectedCollections []CollectionSummary `json:"selectedCollections"`
	Current             *ChallengeView      `json:"current,omitempty"`
	Skippable           bool                `json:"skippable"`
	Finished            bool                `json:"finished"`
	CardsLeft           int                 `json:"cardsLeft"`
	Ongoing             int                 `json:"ongoing"`
}

type CollectionSummary struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Cards int    `json:"cards"`
}

func Summarize(c Collection) CollectionSummary {
	return CollectionSummary{
		ID:    c.ID,
		Title: c.Title,
		Cards: len(c.Cards),
	}
}

// ChallengeView is a challenge with its players filled in. Segments holds
// the same fragments split into the parts that are revealed one by one.
type ChallengeView struct {
	ID       int                 `json:"id"`
	Type     CardType            `json:"type"`
	Text     string              `json:"text"`
	Parts    []parser.Fragment   `json:"parts"`
	Segments [][]parser.Fragment `json:"segments"`
}

func (c *Challenge) View() *ChallengeView {
	parts := parser.Render([]string{c.Question}, c.SelectedPlayers)[0]

	return &ChallengeView{
		ID:       c.ID,
		Type:     c.Type,
		Text:     parser.Plain(parts),
		Parts:    parts,
		Segments: parser.Segments(parts),
	}
}

func (s *Session) View() View {
	v := View{
		State:               s.data.State,
		Round:               s.data.RoundNumber,
		Players:             s.Players(),
		SelectedCollections: make([]CollectionSummary, 0, len(s.data.SelectedCollections)),
		Skippable:           s.Skippable(),
		Finished:            s.Finished(),
		CardsLeft:           len(s.data.CardsLeft),
		Ongoing:             len(s.data.OngoingChallenges),
	}

	if v.Players == nil {
		v.Players = []Player{}
	}

	for _, c := range s.data.SelectedCollections {
		v.SelectedCollections = append(v.SelectedCollections, Summarize(c))
	}

	if s.data.CurrentChallenge != nil && s.data.State == Started {
		v.Current = s.data.CurrentChallenge.View()
	}

	return v
}
