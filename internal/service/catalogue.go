package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"gatego-backend/internal/db"
	"gatego-backend/internal/model"
)

// DefaultClassifications - базовый справочник HS Code, засевается в БД при миграции
func DefaultClassifications() []model.Classification {
	return []model.Classification{
		{
			Code:        "8517.12.00",
			Description: "Telepon untuk jaringan seluler atau untuk jaringan nirkabel lainnya",
			Category:    "Electronics",
			DutyRate:    decimal.RequireFromString("0.15"),
		},
		{
			Code:        "8471.30.00",
			Description: "Mesin pengolah data digital portabel dengan berat tidak melebihi 10 kg",
			Category:    "Computing",
			DutyRate:    decimal.RequireFromString("0.1"),
		},
		{
			Code:        "8543.70.90",
			Description: "Mesin dan pesawat listrik lainnya",
			Category:    "Electronics",
			DutyRate:    decimal.RequireFromString("0.075"),
		},
	}
}

// StaticCatalogue - справочник в памяти (CLI, тесты)
type StaticCatalogue map[string]model.Classification

func NewStaticCatalogue(items []model.Classification) StaticCatalogue {
	c := make(StaticCatalogue, len(items))
	for _, item := range items {
		c[NormalizeHSCode(item.Code)] = item
	}
	return c
}

func (c StaticCatalogue) GetClassification(_ context.Context, code string) (model.Classification, error) {
	item, ok := c[NormalizeHSCode(code)]
	if !ok {
		return model.Classification{}, fmt.Errorf("hs code %s: %w", code, db.ErrNotFound)
	}
	return item, nil
}

// NormalizeHSCode приводит "85171200" и "8517.12.00" к одному виду
func NormalizeHSCode(code string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, code)
	if len(digits) != 8 {
		return strings.TrimSpace(code)
	}
	return digits[:4] + "." + digits[4:6] + "." + digits[6:]
}
