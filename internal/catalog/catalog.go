// Package catalog holds the static role and template data the rest of
// the server reads from. Nothing here changes after startup.
package catalog

import (
	"fmt"

	"github.com/larkwing-games/werewolf-server/internal/models"
)

// Capabilities describes what a role can do. The table replaces any
// role-class hierarchy: callers ask about abilities, never about type.
type Capabilities struct {
	IsWolf     bool
	IsGod      bool
	CanCheck   bool
	CanSave    bool
	CanPoison  bool
	CanGuard   bool
	VoteWeight float64
}

var roleCapabilities = map[models.Role]Capabilities{
	models.RoleVillager:      {VoteWeight: 1},
	models.RoleWerewolf:      {IsWolf: true, VoteWeight: 1},
	models.RoleSeer:          {IsGod: true, CanCheck: true, VoteWeight: 1},
	models.RoleWitch:         {IsGod: true, CanSave: true, CanPoison: true, VoteWeight: 1},
	models.RoleHunter:        {IsGod: true, VoteWeight: 1},
	models.RoleIdiot:         {IsGod: true, VoteWeight: 1},
	models.RoleGuard:         {IsGod: true, CanGuard: true, VoteWeight: 1},
	models.RoleKnight:        {IsGod: true, VoteWeight: 1},
	models.RoleWolfKing:      {IsWolf: true, VoteWeight: 1},
	models.RoleWhiteWolfKing: {IsWolf: true, VoteWeight: 1},
	models.RoleWolfBeauty:    {IsWolf: true, VoteWeight: 1},
	models.RoleSnowWolf:      {IsWolf: true, VoteWeight: 1},
	models.RoleGargoyle:      {IsWolf: true, VoteWeight: 1},
	models.RoleEvilKnight:    {VoteWeight: 1},
	models.RoleHiddenWolf:    {IsWolf: true, VoteWeight: 1},
}

// Caps returns the capability row for a role. Unknown roles get the
// zero value, which can do nothing and votes with weight 0.
func Caps(role models.Role) Capabilities {
	return roleCapabilities[role]
}

// IsWolf reports wolf-faction membership (counted for the wolf side in
// victory checks and shown teammates at night).
func IsWolf(role models.Role) bool {
	return roleCapabilities[role].IsWolf
}

// IsGod reports god-class membership (the special villager-side roles
// whose wipe-out loses the game for the village).
func IsGod(role models.Role) bool {
	return roleCapabilities[role].IsGod
}

var templates = []models.GameTemplate{
	{
		Name:         "6人暗牌局",
		PlayerCounts: []int{6},
		Roles: map[models.Role]int{
			models.RoleWerewolf: 2,
			models.RoleVillager: 2,
			models.RoleSeer:     1,
			models.RoleGuard:    1,
		},
		Description: "Quick hidden-role game for six players.",
	},
	{
		Name:         "预女猎白 标准板",
		PlayerCounts: []int{12},
		Roles: map[models.Role]int{
			models.RoleWerewolf: 4,
			models.RoleVillager: 4,
			models.RoleSeer:     1,
			models.RoleWitch:    1,
			models.RoleHunter:   1,
			models.RoleIdiot:    1,
		},
		Description: "Standard 12-player board: seer, witch, hunter, idiot.",
	},
	{
		Name:         "狼王守卫",
		PlayerCounts: []int{12},
		Roles: map[models.Role]int{
			models.RoleWerewolf: 3,
			models.RoleWolfKing: 1,
			models.RoleVillager: 4,
			models.RoleSeer:     1,
			models.RoleWitch:    1,
			models.RoleHunter:   1,
			models.RoleGuard:    1,
		},
		Description: "Wolf king board with guard.",
	},
}

// Templates returns the shipped game templates.
func Templates() []models.GameTemplate {
	out := make([]models.GameTemplate, len(templates))
	copy(out, templates)
	return out
}

// TemplateByName looks up a template. The second return is false when
// no template has that name.
func TemplateByName(name string) (models.GameTemplate, bool) {
	for _, t := range templates {
		if t.Name == name {
			return t, true
		}
	}
	return models.GameTemplate{}, false
}

// DefaultTemplate is used when a room is created without naming one.
func DefaultTemplate() models.GameTemplate {
	return templates[1]
}

// Validate checks every template's internal consistency: the role
// counts must sum to each supported player count and every role must be
// a known one. A failure here is a packaging bug and the server must
// not start.
func Validate() error {
	for _, t := range templates {
		total := 0
		for role, n := range t.Roles {
			if _, ok := roleCapabilities[role]; !ok {
				return fmt.Errorf("template %q references unknown role %q", t.Name, role)
			}
			if n < 0 {
				return fmt.Errorf("template %q has negative count for role %q", t.Name, role)
			}
			total += n
		}
		for _, count := range t.PlayerCounts {
			if total != count {
				return fmt.Errorf("template %q: role counts sum to %d, want %d", t.Name, total, count)
			}
		}
	}
	return nil
}
