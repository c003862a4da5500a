package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/formiko/flagsh/internal/config"
	"github.com/formiko/flagsh/internal/flag"
	"github.com/formiko/flagsh/internal/logging"
	"github.com/formiko/flagsh/internal/registry"
	"github.com/formiko/flagsh/internal/world"
	"github.com/formiko/flagsh/internal/world/block"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNotFlag - сущность не принадлежит ни одному флагу
	ErrNotFlag = errors.New("controller: entity is not part of a flag")
	// ErrItemMismatch - предмет в руке не совпадает с текстурой флага
	ErrItemMismatch = errors.New("controller: held item does not match the flag")
	// ErrMaxSize - флаг уже максимального размера
	ErrMaxSize = errors.New("controller: flag is at max size")
	// ErrEmptyHand - игроку нечего ставить
	ErrEmptyHand = errors.New("controller: empty hand")
)

// sizeEpsilon гасит накопленную погрешность float32 при сравнении с max_size
const sizeEpsilon = 1e-4

var (
	logger = logging.GetControllerLogger()
	tracer = otel.Tracer("github.com/formiko/flagsh/internal/controller")
)

// Controller переводит действия игрока в операции над флагами
type Controller struct {
	host      world.EntityAPI
	reg       *registry.Registry
	clearance *block.ClearanceTable
	sizeStep  float64
	maxSize   float32
}

// New создает контроллер с настройками роста флагов из конфига
func New(host world.EntityAPI, reg *registry.Registry, clearance *block.ClearanceTable, cfg config.FlagsConfig) *Controller {
	return &Controller{
		host:      host,
		reg:       reg,
		clearance: clearance,
		sizeStep:  cfg.IncreasingSizeStep,
		maxSize:   cfg.MaxSize,
	}
}

// PlaceBanner вешает баннер из руки на блок anchor у стены behind.
// Возвращает созданный флаг и то, что осталось в руке.
func (c *Controller) PlaceBanner(ctx context.Context, anchor, behind block.Block, held world.ItemStack, variant flag.Variant) (_ *flag.Flag, _ world.ItemStack, err error) {
	ctx, span := tracer.Start(ctx, "controller.PlaceBanner", trace.WithAttributes(
		attribute.String("flag.anchor", anchor.Pos.String()),
		attribute.String("flag.wall", behind.Material.String()),
	))
	defer func() { endSpan(span, err) }()

	if held.IsEmpty() {
		return nil, held, ErrEmptyHand
	}
	if anchor.World != behind.World {
		return nil, held, fmt.Errorf("place at %s: wall block is in another world", anchor.Pos)
	}

	f := flag.FromBlocks(c.host, anchor, variant, behind, c.clearance)
	if err := c.reg.Place(ctx, f, held.WithAmount(1)); err != nil {
		return nil, held, fmt.Errorf("place at %s: %w", anchor.Pos, err)
	}

	logger.Debug("Banner %s placed against %s wall", f.Key(), behind.Material)
	return f, consumeOne(held), nil
}

// Interact увеличивает флаг на шаг, если игрок держит такой же баннер.
// Возвращает то, что осталось в руке.
func (c *Controller) Interact(ctx context.Context, entity uuid.UUID, held world.ItemStack) (_ world.ItemStack, err error) {
	ctx, span := tracer.Start(ctx, "controller.Interact", trace.WithAttributes(
		attribute.String("entity.id", entity.String()),
	))
	defer func() { endSpan(span, err) }()

	f, ok := c.reg.ByEntity(entity)
	if !ok {
		return held, ErrNotFlag
	}
	if held.IsEmpty() {
		return held, ErrItemMismatch
	}

	item, err := f.Item()
	if err != nil {
		return held, err
	}
	if !item.IsSimilar(held) {
		return held, ErrItemMismatch
	}

	newSize := f.Size() + float32(c.sizeStep)
	if newSize > c.maxSize+sizeEpsilon {
		return held, fmt.Errorf("%w: %s is %.2f", ErrMaxSize, f.Key(), f.Size())
	}

	if err := c.reg.Extend(ctx, f, newSize); err != nil {
		return held, err
	}
	return consumeOne(held), nil
}

// Attack ломает флаг, по хитбоксу или дисплею которого ударил игрок.
// Возвращает число выпавших предметов.
func (c *Controller) Attack(ctx context.Context, entity uuid.UUID) (_ int, err error) {
	ctx, span := tracer.Start(ctx, "controller.Attack", trace.WithAttributes(
		attribute.String("entity.id", entity.String()),
	))
	defer func() { endSpan(span, err) }()

	f, ok := c.reg.ByEntity(entity)
	if !ok {
		return 0, ErrNotFlag
	}
	return c.reg.Remove(ctx, f, c.sizeStep)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func consumeOne(held world.ItemStack) world.ItemStack {
	if held.Amount <= 1 {
		return world.ItemStack{}
	}
	return held.WithAmount(held.Amount - 1)
}
