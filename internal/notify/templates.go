package notify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Messages holds the announcement and prompt text for one game.
type Messages struct {
	Start  string `yaml:"start"`
	Stop   string `yaml:"stop"`
	Prompt string `yaml:"prompt"`
}

// Templates maps games to announcement messages, with a default set for
// games that have no entry of their own. The {game} placeholder in any
// message expands to the game identifier.
type Templates struct {
	def   Messages
	games map[string]Messages
}

// templatesFile is the on-disk YAML shape.
type templatesFile struct {
	Default Messages            `yaml:"default"`
	Games   map[string]Messages `yaml:"games"`
}

// DefaultTemplates returns the built-in messages: a generic default set
// plus tailored entries for the titles the coach knows best.
func DefaultTemplates() *Templates {
	return &Templates{
		def: Messages{
			Start:  "I can see your {game} gameplay now. I'll jump in when I spot something.",
			Stop:   "Looks like the stream ended. Start sharing again whenever you're ready.",
			Prompt: "Take a look at the current {game} gameplay. If you spot something worth coaching, say it in one or two sentences. If nothing stands out, stay quiet.",
		},
		games: map[string]Messages{
			"valorant": {
				Start:  "I can see your {game} gameplay now. I'll watch your positioning, economy, and util usage, and speak up when it matters.",
				Prompt: "Look at the current round. If positioning, economy, or utility usage deserves a quick pointer, give it in one or two sentences. Otherwise stay quiet.",
			},
			"cs2": {
				Start:  "I can see your {game} gameplay now. I'll keep an eye on crosshair placement, utility, and rotations.",
				Prompt: "Check the current round. One short pointer on crosshair placement, utility, or rotations if warranted. Otherwise stay quiet.",
			},
			"league_of_legends": {
				Start:  "I can see your {game} gameplay now. I'll track your waves, trades, and map awareness.",
				Prompt: "Look at the lane state and minimap. One short pointer on wave management or map awareness if something stands out. Otherwise stay quiet.",
			},
		},
	}
}

// LoadTemplates reads a YAML template file and merges it over the
// built-in defaults. Per-game entries replace whole games; default
// messages replace field by field.
func LoadTemplates(path string) (*Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	var file templatesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse templates %s: %w", path, err)
	}

	t := DefaultTemplates()
	if file.Default.Start != "" {
		t.def.Start = file.Default.Start
	}
	if file.Default.Stop != "" {
		t.def.Stop = file.Default.Stop
	}
	if file.Default.Prompt != "" {
		t.def.Prompt = file.Default.Prompt
	}
	for game, m := range file.Games {
		t.games[strings.ToLower(game)] = m
	}
	return t, nil
}

// Message renders the announcement for a direction and game. Lookup is
// by game ID; the {game} placeholder expands to the display label. A
// game without its own entry uses the default set, and a per-game entry
// that leaves a direction empty falls back to the default for that
// direction.
func (t *Templates) Message(dir Direction, gameID, label string) string {
	m, ok := t.games[strings.ToLower(gameID)]
	if !ok {
		m = t.def
	}
	var text string
	switch dir {
	case DirectionStart:
		text = m.Start
		if text == "" {
			text = t.def.Start
		}
	case DirectionStop:
		text = m.Stop
		if text == "" {
			text = t.def.Stop
		}
	}
	return expand(text, gameID, label)
}

// Prompt renders the heartbeat coaching prompt for a game, with the
// same per-game lookup and default fallback as Message.
func (t *Templates) Prompt(gameID, label string) string {
	m, ok := t.games[strings.ToLower(gameID)]
	if !ok {
		m = t.def
	}
	text := m.Prompt
	if text == "" {
		text = t.def.Prompt
	}
	return expand(text, gameID, label)
}

func expand(text, gameID, label string) string {
	if label == "" {
		label = gameID
	}
	if label == "" {
		label = "game"
	}
	return strings.ReplaceAll(text, "{game}", label)
}
