package access

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/nftauction/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRegistry_GrantAndRevoke(t *testing.T) {
	r := NewRegistry(testLogger(), "admin")

	check.True(t, r.HasCapability("admin", core.RoleAdmin))
	check.False(t, r.HasCapability("engine", core.RoleConfigurator))

	assert.NoError(t, r.Grant("admin", "engine", core.RoleConfigurator))
	check.True(t, r.HasCapability("engine", core.RoleConfigurator))
	check.Equal(t, []core.Role{core.RoleConfigurator}, r.Roles("engine"))

	assert.NoError(t, r.Revoke("admin", "engine", core.RoleConfigurator))
	check.False(t, r.HasCapability("engine", core.RoleConfigurator))
	check.Equal(t, []core.Role{}, r.Roles("engine"))
}

func TestRegistry_OnlyAdminCanGrant(t *testing.T) {
	r := NewRegistry(testLogger(), "admin")

	err := r.Grant("mallory", "mallory", core.RoleAdmin)
	check.True(t, errors.Is(err, core.ErrUnauthorized))
	check.False(t, r.HasCapability("mallory", core.RoleAdmin))

	err = r.Revoke("mallory", "admin", core.RoleAdmin)
	check.True(t, errors.Is(err, core.ErrUnauthorized))
	check.True(t, r.HasCapability("admin", core.RoleAdmin))
}

func TestRegistry_RejectsZeroPrincipal(t *testing.T) {
	r := NewRegistry(testLogger(), "admin")
	err := r.Grant("admin", core.ZeroAddress, core.RoleMinter)
	check.True(t, errors.Is(err, core.ErrZeroAddress))
}
