// Package pib - подготовка и проверка формы подачи PIB.
package pib

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"gatego-backend/internal/model"
)

// WIB, Asia/Jakarta (без перехода на летнее время)
var jakarta = time.FixedZone("WIB", 7*60*60)

var containerSizes = map[string]bool{"20": true, "40": true, "40HC": true, "45": true}

// ValidationError - незаполненные или некорректные поля формы
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "не заполнены поля: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "некорректные поля: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

// Validate - проверка обязательных полей
func Validate(s model.PIBSubmission) error {
	required := []struct {
		name  string
		value string
	}{
		{"sjcNumber", s.SJCNumber},
		{"origin", s.Origin},
		{"destination", s.Destination},
		{"shipperName", s.ShipperName},
		{"vesselName", s.VesselName},
		{"containerNumber", s.ContainerNumber},
	}

	verr := &ValidationError{}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			verr.Missing = append(verr.Missing, f.name)
		}
	}
	if s.ContainerSize != "" && !containerSizes[strings.ToUpper(s.ContainerSize)] {
		verr.Invalid = append(verr.Invalid, "containerSize")
	}

	if len(verr.Missing) > 0 || len(verr.Invalid) > 0 {
		return verr
	}
	return nil
}

// Generator - номера SJC/RO и автозаполняемые поля формы
type Generator struct {
	Now  func() time.Time
	IntN func(n int) int
}

func NewGenerator() *Generator {
	return &Generator{Now: time.Now, IntN: rand.Intn}
}

func (g *Generator) number(prefix string) string {
	now := g.Now().In(jakarta)
	return fmt.Sprintf("%s-%s-%d", prefix, now.Format("20060102"), 1000+g.IntN(9000))
}

// SJCNumber - SJC-YYYYMMDD-NNNN
func (g *Generator) SJCNumber() string { return g.number("SJC") }

// RONumber - RO-YYYYMMDD-NNNN
func (g *Generator) RONumber() string { return g.number("RO") }

// SJCCode - 8 символов [0-9A-Z]
func (g *Generator) SJCCode() string {
	const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, 8)
	for i := range b {
		b[i] = alphabet[g.IntN(len(alphabet))]
	}
	return string(b)
}

// Prepare - заполнение автоматических полей; поля, заданные пользователем, сохраняются
func (g *Generator) Prepare(s model.PIBSubmission) model.PIBSubmission {
	s.Origin = strings.TrimSpace(s.Origin)
	s.Destination = strings.TrimSpace(s.Destination)

	if s.SJCNumber == "" {
		s.SJCNumber = g.SJCNumber()
	}
	if s.SJCCode == "" {
		s.SJCCode = g.SJCCode()
	}
	if s.RONumber == "" {
		s.RONumber = g.RONumber()
	}
	if s.SJCPrintDate == "" {
		s.SJCPrintDate = g.Now().In(jakarta).Format("2006-01-02T15:04")
	}
	if s.Origin != "" && s.Destination != "" {
		s.Service = s.Origin + " – " + s.Destination
	}
	if s.ContainerStatus == "" {
		s.ContainerStatus = "FCL"
	}
	s.ContainerSize = strings.ToUpper(strings.TrimSpace(s.ContainerSize))
	return s
}
