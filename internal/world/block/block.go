package block

import (
	"github.com/formiko/flagsh/internal/vec"
	"github.com/google/uuid"
)

// Block описывает блок мира, к которому привязан флаг или который стоит за ним
type Block struct {
	World    uuid.UUID
	Pos      vec.Vec3
	Material Material
}

// New создает описание блока
func New(world uuid.UUID, pos vec.Vec3, material Material) Block {
	return Block{World: world, Pos: pos, Material: material}
}
