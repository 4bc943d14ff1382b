package directors

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"schemabench/src/engine"
	"schemabench/src/fakedata"
	"schemabench/src/settings"
)

// ErrUnknownVariant is returned for a menu choice that names no variant.
var ErrUnknownVariant = errors.New("unknown schema variant")

// VariantChoice is one menu entry.
type VariantChoice struct {
	Number int
	Name   string
}

// VariantManager owns the three schema variants, numbered as in the menu.
// All variants share one store and one data provider.
type VariantManager struct {
	variants map[int]SchemaVariant
	order    []int
	logger   *zap.SugaredLogger
}

// NewVariantManager builds variants 1 (referenced), 2 (company embedded in
// person) and 3 (people embedded in company).
func NewVariantManager(store engine.DocumentStore, provider fakedata.Provider,
	args *settings.Arguments, logger *zap.SugaredLogger) *VariantManager {
	m := &VariantManager{
		variants: make(map[int]SchemaVariant, 3),
		logger:   logger,
	}
	m.register(1, NewReferencedVariant(store, provider, args, logger))
	m.register(2, NewPersonEmbeddedVariant(store, provider, args, logger))
	m.register(3, NewCompanyEmbeddedVariant(store, provider, args, logger))

	logger.Infow("Variant manager initialized", "variants", len(m.order))
	return m
}

func (m *VariantManager) register(number int, variant SchemaVariant) {
	m.variants[number] = variant
	m.order = append(m.order, number)
}

// Variant returns the variant registered under number.
func (m *VariantManager) Variant(number int) (SchemaVariant, error) {
	variant, ok := m.variants[number]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVariant, number)
	}
	return variant, nil
}

// Choices lists the variants in menu order.
func (m *VariantManager) Choices() []VariantChoice {
	choices := make([]VariantChoice, 0, len(m.order))
	for _, number := range m.order {
		choices = append(choices, VariantChoice{Number: number, Name: m.variants[number].Name()})
	}
	return choices
}
