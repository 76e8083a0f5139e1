package clone

import (
	"context"
	"fmt"
	"sort"

	"guildmirror/internal/discord"
	logx "guildmirror/pkg/logx"
)

// CloneRoles copies every source role except @everyone, lowest position
// first, and records the new ids.
func (r *Replicator) CloneRoles(ctx context.Context, source, target string) error {
	r.step("Cloning Roles")
	all, err := r.api.Roles(ctx, source)
	if err != nil {
		return fmt.Errorf("list source roles: %w", err)
	}
	roles := make([]discord.Role, 0, len(all))
	for _, role := range all {
		if !isEveryone(role, source) {
			roles = append(roles, role)
		}
	}
	sort.SliceStable(roles, func(i, j int) bool {
		if roles[i].Position != roles[j].Position {
			return roles[i].Position < roles[j].Position
		}
		return lessSnowflake(roles[i].ID, roles[j].ID)
	})

	r.progress("roles", 0, len(roles))
	for i, role := range roles {
		if err := ctx.Err(); err != nil {
			return err
		}
		created, err := r.api.CreateRole(ctx, target, discord.RoleParams{
			Name:        role.Name,
			Color:       role.Color,
			Hoist:       role.Hoist,
			Permissions: role.Permissions,
			Mentionable: role.Mentionable,
		}, cloneReason)
		if err != nil {
			r.fail("role", role.Name, err)
		} else {
			r.ids.SetRole(role.ID, created.ID)
			r.stats.roles.Add(1)
			r.log.Info("role cloned", logx.String("name", role.Name))
			if err := r.pause(ctx); err != nil {
				return err
			}
		}
		r.progress("roles", i+1, len(roles))
	}

	c := r.stats.Snapshot()
	r.log.Info("roles done", logx.Int("cloned", c.Roles), logx.Int("errors", c.Errors))
	return nil
}
