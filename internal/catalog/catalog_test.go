package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larkwing-games/werewolf-server/internal/models"
)

func TestValidate_ShippedTemplatesAreConsistent(t *testing.T) {
	require.NoError(t, Validate())
}

func TestTemplateByName(t *testing.T) {
	tpl, ok := TemplateByName("狼王守卫")
	require.True(t, ok)
	assert.Equal(t, 1, tpl.Roles[models.RoleWolfKing])
	assert.True(t, tpl.SupportsCount(12))
	assert.False(t, tpl.SupportsCount(6))

	_, ok = TemplateByName("no-such-board")
	assert.False(t, ok)
}

func TestWolfFactionMembership(t *testing.T) {
	wolves := []models.Role{
		models.RoleWerewolf, models.RoleWolfKing, models.RoleWhiteWolfKing,
		models.RoleWolfBeauty, models.RoleSnowWolf, models.RoleHiddenWolf,
		models.RoleGargoyle,
	}
	for _, r := range wolves {
		assert.True(t, IsWolf(r), "%s should be wolf faction", r)
		assert.False(t, IsGod(r), "%s should not be god class", r)
	}

	// Evil knight sides with the wolves thematically but does not count
	// toward the wolf faction for victory purposes.
	assert.False(t, IsWolf(models.RoleEvilKnight))

	gods := []models.Role{
		models.RoleSeer, models.RoleWitch, models.RoleHunter,
		models.RoleIdiot, models.RoleGuard, models.RoleKnight,
	}
	for _, r := range gods {
		assert.True(t, IsGod(r), "%s should be god class", r)
		assert.False(t, IsWolf(r), "%s should not be wolf faction", r)
	}

	assert.False(t, IsWolf(models.RoleVillager))
	assert.False(t, IsGod(models.RoleVillager))
}

func TestCaps_AbilityFlags(t *testing.T) {
	assert.True(t, Caps(models.RoleSeer).CanCheck)
	assert.True(t, Caps(models.RoleWitch).CanSave)
	assert.True(t, Caps(models.RoleWitch).CanPoison)
	assert.True(t, Caps(models.RoleGuard).CanGuard)
	assert.False(t, Caps(models.RoleVillager).CanCheck)

	// Unknown roles can do nothing.
	assert.Equal(t, Capabilities{}, Caps(models.Role("BOGUS")))
}
