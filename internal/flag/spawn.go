package flag

import (
	"errors"
	"fmt"

	"github.com/formiko/flagsh/internal/world"
	"github.com/google/uuid"
)

// spawner создает сущности одного вызова Create и помнит их для отката
type spawner struct {
	host    world.EntityAPI
	world   uuid.UUID
	spawned []uuid.UUID
}

func (s *spawner) spawn(kind world.EntityKind, loc world.Location) (uuid.UUID, error) {
	id, err := s.host.SpawnEntity(kind, loc)
	if err != nil {
		return uuid.Nil, fmt.Errorf("spawn %s at %v: %w", kind, loc.Pos, err)
	}
	s.spawned = append(s.spawned, id)
	return id, nil
}

func (s *spawner) interaction(hb Hitbox) (uuid.UUID, error) {
	id, err := s.spawn(world.EntityKindInteraction, world.Location{World: s.world, Pos: hb.Pos})
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.host.SetInteractionBounds(id, hb.Width, hb.Height); err != nil {
		return uuid.Nil, err
	}
	if err := s.host.SetResponsive(id, true); err != nil {
		return uuid.Nil, err
	}
	if err := s.host.SetPersistent(id, true); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *spawner) display(item world.ItemStack, p Panel) (uuid.UUID, error) {
	id, err := s.spawn(world.EntityKindItemDisplay, world.Location{World: s.world, Pos: p.Pos})
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.host.SetItem(id, item); err != nil {
		return uuid.Nil, err
	}
	if err := s.host.SetTransformation(id, p.Transform); err != nil {
		return uuid.Nil, err
	}
	if err := s.host.SetRotation(id, p.Yaw, 0); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// rollback удаляет все созданные сущности и возвращает cause, обернутую в ErrSpawn
func (s *spawner) rollback(cause error) error {
	for _, id := range s.spawned {
		if err := s.host.DespawnEntity(id); err != nil && !errors.Is(err, world.ErrEntityNotFound) {
			logger.Warn("rollback: despawn %s: %v", id, err)
		}
	}
	logger.Warn("rollback: removed %d entities after %v", len(s.spawned), cause)
	s.spawned = nil
	return fmt.Errorf("%w: %w", ErrSpawn, cause)
}
