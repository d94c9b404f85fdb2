package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Тарифы портовых услуг Pelindo (IDR)

var (
	ErrUnknownService   = errors.New("неизвестная услуга")
	ErrUnknownContainer = errors.New("неизвестный тип контейнера")
	ErrUnknownSize      = errors.New("неизвестный размер контейнера")
)

// ServiceKind - вид портовой услуги
type ServiceKind int

const (
	ServiceStorage ServiceKind = iota + 1
	ServiceLift
	ServiceHaulage
	ServiceExtraMovement
)

var serviceNames = map[ServiceKind]string{
	ServiceStorage:       "Storage",
	ServiceLift:          "Lift",
	ServiceHaulage:       "Haulage",
	ServiceExtraMovement: "Extra Movement",
}

func (s ServiceKind) String() string { return serviceNames[s] }

// ContainerKind - тип контейнера или груза
type ContainerKind int

const (
	ContainerFull ContainerKind = iota + 1
	ContainerEmpty
	ContainerDG
	ContainerReefer
	ContainerOverdimension
	ContainerLoadedChassis
	ContainerEmptyChassis
	ContainerUncontainerized
)

var containerNames = map[ContainerKind]string{
	ContainerFull:            "Full Container",
	ContainerEmpty:           "Empty Container",
	ContainerDG:              "DG Container (IMDG-CODE)",
	ContainerReefer:          "Reefer Container",
	ContainerOverdimension:   "Overdimension Container (OH/OW/OL)",
	ContainerLoadedChassis:   "Loaded Chassis",
	ContainerEmptyChassis:    "Empty Chassis",
	ContainerUncontainerized: "Uncontainerized",
}

func (c ContainerKind) String() string { return containerNames[c] }

// ContainerSize - размер в футах или весовая категория для негабарита
type ContainerSize int

const (
	Size20ft ContainerSize = iota + 1
	Size40ft
	Size45ft
	SizeUpTo20Ton
	Size21To35Ton
	SizeOver35Ton
)

var sizeNames = map[ContainerSize]string{
	Size20ft:      "20ft",
	Size40ft:      "40ft",
	Size45ft:      "45ft",
	SizeUpTo20Ton: "1-20 ton",
	Size21To35Ton: "21-35 ton",
	SizeOver35Ton: ">35 ton",
}

func (s ContainerSize) String() string { return sizeNames[s] }

// FeeKey - ключ тарифной сетки
type FeeKey struct {
	Service   ServiceKind
	Container ContainerKind
	Size      ContainerSize
}

func (k FeeKey) String() string {
	return k.Service.String() + "/" + k.Container.String() + "/" + k.Size.String()
}

type feeRow map[ContainerSize]int64

var (
	feet   = []ContainerSize{Size20ft, Size40ft, Size45ft}
	weight = []ContainerSize{SizeUpTo20Ton, Size21To35Ton, SizeOver35Ton}
)

func row(sizes []ContainerSize, a, b, c int64) feeRow {
	return feeRow{sizes[0]: a, sizes[1]: b, sizes[2]: c}
}

// storage тарифицируется за сутки
var feeSchedule = map[ServiceKind]map[ContainerKind]feeRow{
	ServiceStorage: {
		ContainerFull:            row(feet, 26700, 53400, 66800),
		ContainerEmpty:           row(feet, 12000, 24000, 30000),
		ContainerDG:              row(feet, 36000, 72000, 90000),
		ContainerReefer:          row(feet, 48000, 96000, 120000),
		ContainerOverdimension:   row(feet, 48000, 96000, 120000),
		ContainerLoadedChassis:   row(feet, 20000, 40000, 50000),
		ContainerEmptyChassis:    row(feet, 20000, 40000, 50000),
		ContainerUncontainerized: row(weight, 54000, 108000, 135000),
	},
	ServiceLift: {
		ContainerFull:            row(feet, 196000, 295000, 369000),
		ContainerEmpty:           row(feet, 83500, 125000, 156250),
		ContainerDG:              row(feet, 167000, 250000, 312500),
		ContainerReefer:          row(feet, 196000, 295000, 369000),
		ContainerOverdimension:   row(feet, 637000, 955000, 1115000),
		ContainerUncontainerized: row(weight, 637000, 955000, 1115000),
	},
	ServiceHaulage: {
		ContainerFull:            row(feet, 80000, 120000, 148000),
		ContainerEmpty:           row(feet, 40000, 65000, 75000),
		ContainerDG:              row(feet, 60000, 90000, 110000),
		ContainerReefer:          row(feet, 80000, 120000, 148000),
		ContainerOverdimension:   row(feet, 240000, 360000, 440000),
		ContainerUncontainerized: row(weight, 240000, 360000, 440000),
	},
	ServiceExtraMovement: {
		ContainerFull:            row(feet, 472000, 710000, 886000),
		ContainerEmpty:           row(feet, 207000, 315000, 387500),
		ContainerDG:              row(feet, 394000, 590000, 735000),
		ContainerReefer:          row(feet, 472000, 710000, 886000),
		ContainerOverdimension:   row(feet, 1514000, 2270000, 2670000),
		ContainerUncontainerized: row(weight, 1514000, 2270000, 2670000),
	},
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

var containerAliases = map[string]ContainerKind{
	"full":          ContainerFull,
	"fcl":           ContainerFull,
	"empty":         ContainerEmpty,
	"mty":           ContainerEmpty,
	"dg":            ContainerDG,
	"dg container":  ContainerDG,
	"reefer":        ContainerReefer,
	"overdimension": ContainerOverdimension,
	"oog":           ContainerOverdimension,
}

// ParseService - разбор названия услуги ("Storage", "extra_movement", ...)
func ParseService(name string) (ServiceKind, error) {
	n := normalize(name)
	for kind, title := range serviceNames {
		if normalize(title) == n {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownService, name)
}

// ParseContainer - разбор типа контейнера по полному названию или сокращению
func ParseContainer(name string) (ContainerKind, error) {
	n := normalize(name)
	for kind, title := range containerNames {
		if normalize(title) == n {
			return kind, nil
		}
	}
	if kind, ok := containerAliases[n]; ok {
		return kind, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownContainer, name)
}

// ParseSize - разбор размера: "20ft", "40", "45 feet", "1-20 ton", ">35 ton"
func ParseSize(name string) (ContainerSize, error) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "")
	n = strings.TrimSuffix(strings.TrimSuffix(n, "feet"), "ft")
	switch n {
	case "20":
		return Size20ft, nil
	case "40":
		return Size40ft, nil
	case "45":
		return Size45ft, nil
	case "1-20ton":
		return SizeUpTo20Ton, nil
	case "21-35ton":
		return Size21To35Ton, nil
	case ">35ton":
		return SizeOver35Ton, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSize, name)
}

// ParseFeeKey - строковые названия в типизированный ключ
func ParseFeeKey(service, container, size string) (FeeKey, error) {
	s, err := ParseService(service)
	if err != nil {
		return FeeKey{}, err
	}
	c, err := ParseContainer(container)
	if err != nil {
		return FeeKey{}, err
	}
	z, err := ParseSize(size)
	if err != nil {
		return FeeKey{}, err
	}
	return FeeKey{Service: s, Container: c, Size: z}, nil
}

// Fee - тариф по ключу; ok=false, если такой комбинации нет в сетке
func Fee(key FeeKey) (decimal.Decimal, bool) {
	amount, ok := feeSchedule[key.Service][key.Container][key.Size]
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(amount), true
}

// LookupServiceFee возвращает тариф услуги; любая неизвестная комбинация дает 0
func LookupServiceFee(service, container, size string) decimal.Decimal {
	key, err := ParseFeeKey(service, container, size)
	if err != nil {
		return decimal.Zero
	}
	fee, _ := Fee(key)
	return fee
}

// ScheduleEntry - строка тарифной сетки
type ScheduleEntry struct {
	Service   string          `json:"service"`
	Container string          `json:"container"`
	Size      string          `json:"size"`
	Fee       decimal.Decimal `json:"fee"`
	PerDay    bool            `json:"perDay"`
	key       FeeKey
}

// Schedule - вся тарифная сетка в стабильном порядке
func Schedule() []ScheduleEntry {
	var entries []ScheduleEntry
	for service, containers := range feeSchedule {
		for container, sizes := range containers {
			for size, amount := range sizes {
				key := FeeKey{Service: service, Container: container, Size: size}
				entries = append(entries, ScheduleEntry{
					Service:   service.String(),
					Container: container.String(),
					Size:      size.String(),
					Fee:       decimal.NewFromInt(amount),
					PerDay:    service == ServiceStorage,
					key:       key,
				})
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].key, entries[j].key
		if a.Service != b.Service {
			return a.Service < b.Service
		}
		if a.Container != b.Container {
			return a.Container < b.Container
		}
		return a.Size < b.Size
	})
	return entries
}
