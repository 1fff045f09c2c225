package monitor

import "fmt"

// KeyMap defines the keyboard shortcuts displayed in the footer.
type KeyMap struct {
	RunNow  string
	Toggle  string
	NextTab string
	PrevTab string
	Up      string
	Down    string
	Quit    string
	Help    string
}

// DefaultKeyMap returns the default shortcut mapping.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		RunNow:  "r",
		Toggle:  " ",
		NextTab: "tab",
		PrevTab: "shift+tab",
		Up:      "k",
		Down:    "j",
		Quit:    "q",
		Help:    "?",
	}
}

// HelpLine renders the footer help text.
func (k KeyMap) HelpLine() string {
	return fmt.Sprintf("[%s] run now  [space] toggle  [%s] next pane  [%s/%s] move  [%s] quit  [%s] help",
		k.RunNow, k.NextTab, k.Up, k.Down, k.Quit, k.Help)
}
