package picker

import (
	"math/rand"
)

type (
	// Picker returns a random choice based on the associated weights.
	Picker interface {
		Next() interface{}
	}

	Choice struct {
		Item   interface{}
		Weight int
	}

	pickerImpl struct {
		choices     []*Choice
		totalWeight int
	}
)

func New(choices []*Choice) Picker {
	totalWeight := 0
	for _, choice := range choices {
		if choice.Weight > 0 {
			totalWeight += choice.Weight
		}
	}

	return &pickerImpl{
		choices:     choices,
		totalWeight: totalWeight,
	}
}

func (p *pickerImpl) Next() interface{} {
	if len(p.choices) == 0 {
		return nil
	}

	if p.totalWeight <= 0 {
		// All weights are zero. Fall back to a uniform distribution.
		return p.choices[rand.Intn(len(p.choices))].Item
	}

	target := rand.Intn(p.totalWeight)
	for _, choice := range p.choices {
		if choice.Weight <= 0 {
			continue
		}

		target -= choice.Weight
		if target < 0 {
			return choice.Item
		}
	}

	return p.choices[len(p.choices)-1].Item
}
