package world

// ItemStack - стак предметов; для флага это и текстура дисплея, и выпадающий предмет
type ItemStack struct {
	Material string            `json:"material"`
	Amount   int               `json:"amount"`
	Meta     map[string]string `json:"meta,omitempty"` // Узоры баннера и прочие данные предмета
}

// NewItemStack создает стак из одного предмета
func NewItemStack(material string) ItemStack {
	return ItemStack{Material: material, Amount: 1}
}

// IsEmpty сообщает, что стак не содержит предмета
func (s ItemStack) IsEmpty() bool {
	return s.Material == "" || s.Amount <= 0
}

// Clone возвращает глубокую копию стака
func (s ItemStack) Clone() ItemStack {
	c := s
	if s.Meta != nil {
		c.Meta = make(map[string]string, len(s.Meta))
		for k, v := range s.Meta {
			c.Meta[k] = v
		}
	}
	return c
}

// WithAmount возвращает копию стака с другим количеством
func (s ItemStack) WithAmount(amount int) ItemStack {
	c := s.Clone()
	c.Amount = amount
	return c
}

// IsSimilar сравнивает предметы без учета количества
func (s ItemStack) IsSimilar(other ItemStack) bool {
	if s.Material != other.Material || len(s.Meta) != len(other.Meta) {
		return false
	}
	for k, v := range s.Meta {
		if ov, ok := other.Meta[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
