// Package games knows which game the player is running. A catalog maps
// game identifiers to process signatures; the detector matches them
// against a snapshot of running processes.
package games

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/logging"
)

var log = logging.L("games")

// Game identifies one supported title.
type Game struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// Processes are executable names whose presence means the game is
	// running. Matched case-insensitively.
	Processes []string `yaml:"processes"`
}

// Catalog is an ordered set of games. Order matters for detection: the
// first game with a running process wins.
type Catalog struct {
	games []Game
	byID  map[string]int
}

// catalogFile is the on-disk YAML shape.
type catalogFile struct {
	Games []Game `yaml:"games"`
}

// BuiltinCatalog returns the games shipped with the agent.
func BuiltinCatalog() *Catalog {
	c := &Catalog{byID: make(map[string]int)}
	for _, g := range []Game{
		{ID: "valorant", Name: "VALORANT", Processes: []string{"VALORANT.exe", "VALORANT-Win64-Shipping.exe"}},
		{ID: "cs2", Name: "Counter-Strike 2", Processes: []string{"cs2.exe", "cs2"}},
		{ID: "league_of_legends", Name: "League of Legends", Processes: []string{"League of Legends.exe", "LeagueClient.exe"}},
		{ID: "dota2", Name: "Dota 2", Processes: []string{"dota2.exe", "dota2"}},
		{ID: "overwatch", Name: "Overwatch 2", Processes: []string{"Overwatch.exe"}},
		{ID: "apex_legends", Name: "Apex Legends", Processes: []string{"r5apex.exe", "r5apex_dx12.exe"}},
		{ID: "fortnite", Name: "Fortnite", Processes: []string{"FortniteClient-Win64-Shipping.exe"}},
		{ID: "rocket_league", Name: "Rocket League", Processes: []string{"RocketLeague.exe"}},
		{ID: "marvel_rivals", Name: "Marvel Rivals", Processes: []string{"MarvelRivals_Launcher.exe", "Marvel-Win64-Shipping.exe"}},
	} {
		c.add(g)
	}
	return c
}

// LoadCatalog reads a YAML game list and merges it over the built-in
// catalog. Entries sharing an ID replace the built-in definition; new
// IDs are appended.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read games file: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse games file %s: %w", path, err)
	}

	c := BuiltinCatalog()
	for _, g := range file.Games {
		if g.ID == "" || len(g.Processes) == 0 {
			log.Warn("skipping malformed game entry", logging.KeyGame, g.ID)
			continue
		}
		c.add(g)
	}
	log.Info("game catalog loaded", "path", path, "games", len(c.games))
	return c, nil
}

func (c *Catalog) add(g Game) {
	id := strings.ToLower(g.ID)
	if idx, ok := c.byID[id]; ok {
		c.games[idx] = g
		return
	}
	c.byID[id] = len(c.games)
	c.games = append(c.games, g)
}

// Find returns the game with the given ID.
func (c *Catalog) Find(id string) (Game, bool) {
	idx, ok := c.byID[strings.ToLower(id)]
	if !ok {
		return Game{}, false
	}
	return c.games[idx], true
}

// All returns the catalog in detection order.
func (c *Catalog) All() []Game {
	out := make([]Game, len(c.games))
	copy(out, c.games)
	return out
}

// Len returns the number of games in the catalog.
func (c *Catalog) Len() int { return len(c.games) }
