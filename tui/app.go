/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package tui plays a game session in the terminal, with everyone around
// the same screen.
package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Seednode/kakaroto/game"
	"github.com/Seednode/kakaroto/parser"
)

type screen int

const (
	screenLobby screen = iota
	screenPlay
	screenPlayers
	screenFinished
)

// maxNameLen is the maximum number of runes in a player name.
const maxNameLen = 40

// App is the root Bubbletea model.
type App struct {
	session     *game.Session
	collections []game.Collection
	screen      screen
	input       string
	revealed    int
	err         string
	width       int
	height      int
}

// NewApp creates a model around session. collections are selected whenever
// a game is started with nothing selected.
func NewApp(session *game.Session, collections []game.Collection) App {
	a := App{
		session:     session,
		collections: collections,
		revealed:    1,
	}
	a.screen = a.screenForState()

	return a
}

// Run plays session until the players quit.
func Run(session *game.Session, collections []game.Collection) error {
	_, err := tea.NewProgram(NewApp(session, collections), tea.WithAltScreen()).Run()

	return err
}

func (a App) screenForState() screen {
	switch a.session.State() {
	case game.Started:
		return screenPlay
	case game.Finished:
		return screenFinished
	default:
		return screenLobby
	}
}

func (a App) Init() tea.Cmd {
	return nil
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

		a.err = ""

		switch a.screen {
		case screenLobby:
			return a.updateLobby(msg)
		case screenPlay:
			return a.updatePlay(msg)
		case screenPlayers:
			return a.updatePlayers(msg)
		case screenFinished:
			return a.updateFinished(msg)
		}
	}

	return a, nil
}

// editRoster handles the name input shared by the lobby and the player
// list. It reports whether key was consumed.
func (a *App) editRoster(key string) bool {
	switch key {
	case "enter":
		if strings.TrimSpace(a.input) == "" {
			return false
		}
		a.session.AddPlayer(a.input)
		a.input = ""
	case "tab":
		a.removeLastPlayer()
	case "backspace":
		if a.input == "" {
			a.removeLastPlayer()
			break
		}
		runes := []rune(a.input)
		a.input = string(runes[:len(runes)-1])
	default:
		if utf8.RuneCountInString(key) != 1 {
			return false
		}
		if utf8.RuneCountInString(a.input) >= maxNameLen {
			break
		}
		a.input += key
	}

	return true
}

func (a *App) removeLastPlayer() {
	players := a.session.Players()
	if len(players) == 0 {
		return
	}

	a.session.RemovePlayer(players[len(players)-1].Name)
}

func (a App) updateLobby(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "esc" {
		return a, tea.Quit
	}

	if a.editRoster(key) {
		return a, nil
	}

	if key == "enter" {
		a.start()
	}

	return a, nil
}

func (a *App) start() {
	if len(a.session.SelectedCollections()) == 0 {
		a.session.SetCollections(a.collections)
	}

	if err := a.session.SetGameState(game.Started); err != nil {
		a.err = err.Error()

		return
	}

	a.revealed = 1
	a.screen = a.screenForState()
}

func (a *App) next() {
	a.session.NextChallenge()
	a.revealed = 1
	a.screen = a.screenForState()
}

func (a App) updatePlay(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "enter", "n":
		a.next()
	case " ":
		if a.revealed < len(a.segments()) {
			a.revealed++
		}
	case "s":
		if err := a.session.SkipOngoingChallenge(); err != nil {
			a.err = err.Error()
			break
		}
		a.next()
	case "p":
		a.input = ""
		a.screen = screenPlayers
	case "r":
		a.session.Reset()
		a.input = ""
		a.screen = screenLobby
	}

	return a, nil
}

func (a App) updatePlayers(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "esc" {
		if err := a.session.CheckPlayersAndSetCards(); err != nil {
			a.err = err.Error()

			return a, nil
		}
		a.input = ""
		a.screen = screenPlay

		return a, nil
	}

	a.editRoster(key)

	return a, nil
}

func (a App) updateFinished(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return a, tea.Quit
	case "enter":
		a.session.Reset()
		a.screen = screenLobby
	}

	return a, nil
}

func (a App) segments() [][]parser.Fragment {
	current := a.session.Current()
	if current == nil {
		return nil
	}

	return current.View().Segments
}

func (a App) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("K A K A R O T O"))
	b.WriteString("\n\n")

	switch a.screen {
	case screenLobby:
		b.WriteString(a.viewLobby())
	case screenPlay:
		b.WriteString(a.viewPlay())
	case screenPlayers:
		b.WriteString(a.viewPlayers())
	case screenFinished:
		b.WriteString(a.viewFinished())
	}

	if a.err != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(a.err))
		b.WriteString("\n")
	}

	return b.String()
}

func (a App) viewRoster() string {
	var b strings.Builder

	players := a.session.Players()
	if len(players) == 0 {
		b.WriteString(dimStyle.Render("No players yet."))
		b.WriteString("\n")
	}
	for i, p := range players {
		fmt.Fprintf(&b, "%s %s\n", metaStyle.Render(fmt.Sprintf("%2d.", i+1)), renderPlayer(p))
	}

	b.WriteString("\n")
	b.WriteString(accentStyle.Render("> "))
	b.WriteString(normalStyle.Render(a.input))
	b.WriteString(accentStyle.Render("█"))
	b.WriteString("\n")

	return b.String()
}

func (a App) viewLobby() string {
	var b strings.Builder

	b.WriteString(dimStyle.Render("Who is playing?"))
	b.WriteString("\n\n")
	b.WriteString(a.viewRoster())
	b.WriteString("\n")

	selected := a.session.SelectedCollections()
	if len(selected) == 0 {
		selected = a.collections
	}
	titles := make([]string, 0, len(selected))
	for _, c := range selected {
		titles = append(titles, c.Title)
	}
	b.WriteString(metaStyle.Render("Collections: " + strings.Join(titles, ", ")))
	b.WriteString("\n\n")

	b.WriteString(renderHelp("enter", "add player / start", "tab", "remove last", "esc", "quit"))

	return b.String()
}

func (a App) viewPlay() string {
	var b strings.Builder

	current := a.session.Current()

	fmt.Fprintf(&b, "%s  %s\n",
		metaStyle.Render(fmt.Sprintf("Round %d", a.session.Round())),
		metaStyle.Render(fmt.Sprintf("%d cards left", len(a.session.CardsLeft()))),
	)

	if current != nil {
		switch current.Type {
		case game.Ongoing:
			b.WriteString(ongoingStyle.Render("Ongoing challenge"))
			b.WriteString("\n")
		case game.OngoingEnd:
			b.WriteString(ongoingStyle.Render("Ongoing challenge is over"))
			b.WriteString("\n")
		}

		segments := current.View().Segments
		shown := make([]string, 0, len(segments))
		for i, segment := range segments {
			if i >= a.revealed {
				break
			}
			shown = append(shown, renderFragments(segment))
		}
		if a.revealed < len(segments) {
			shown = append(shown, dimStyle.Render("..."))
		}

		style := challengeStyle
		if a.width > 4 {
			style = style.Width(a.width - 4)
		}
		b.WriteString(style.Render(lipgloss.JoinVertical(lipgloss.Left, shown...)))
		b.WriteString("\n")
	}

	players := a.session.Players()
	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, renderPlayer(p))
	}
	b.WriteString(strings.Join(names, metaStyle.Render(", ")))
	b.WriteString("\n\n")

	pairs := []string{"enter", "next"}
	if a.revealed < len(a.segments()) {
		pairs = append(pairs, "space", "reveal")
	}
	if a.session.Skippable() {
		pairs = append(pairs, "s", "skip")
	}
	pairs = append(pairs, "p", "players", "r", "reset", "q", "quit")
	b.WriteString(renderHelp(pairs...))

	return b.String()
}

func (a App) viewPlayers() string {
	var b strings.Builder

	b.WriteString(dimStyle.Render("Players"))
	b.WriteString("\n\n")
	b.WriteString(a.viewRoster())
	b.WriteString("\n")
	b.WriteString(renderHelp("enter", "add player", "tab", "remove last", "esc", "back to the game"))

	return b.String()
}

func (a App) viewFinished() string {
	var b strings.Builder

	b.WriteString(accentStyle.Render("That was the last card."))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s\n\n", metaStyle.Render(fmt.Sprintf("%d rounds played", a.session.Round())))
	b.WriteString(renderHelp("enter", "new game", "q", "quit"))

	return b.String()
}
