// Package delivery рассчитывает стоимость доставки по координатам адреса.
package delivery

import (
	"math"
)

const (
	// BaseRadiusMeters задаёт радиус базовой зоны доставки.
	BaseRadiusMeters = 10_000
	// BaseFee задаёт стоимость доставки внутри базовой зоны в USD.
	BaseFee = 5.0
	// PerKmOverage задаёт доплату за каждый начатый километр за пределами базовой зоны.
	PerKmOverage = 1.0

	earthRadiusMeters = 6_371_000
)

// Point описывает географическую точку в градусах WGS84.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid проверяет, что координаты лежат в допустимых пределах.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lng) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Haversine возвращает расстояние по большому кругу между точками в метрах.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Fee возвращает стоимость доставки для расстояния в метрах.
func Fee(distanceMeters float64) float64 {
	if math.IsNaN(distanceMeters) || distanceMeters <= BaseRadiusMeters {
		return BaseFee
	}
	overageKm := math.Ceil((distanceMeters - BaseRadiusMeters) / 1000)
	return BaseFee + overageKm*PerKmOverage
}

// Вложенные радиусы визуальных зон 1-4.
var zoneRadiiKm = [...]float64{10, 20, 30, 40}

// Плоские тарифы визуальных зон, используются только без точного расчёта.
var legacyZoneFees = [...]float64{5, 8, 12, 15}

// ZoneCount задаёт количество визуальных зон.
const ZoneCount = len(zoneRadiiKm)

// ZoneFor возвращает номер визуальной зоны для расстояния; зона 4 покрывает всё дальше 30 км.
func ZoneFor(distanceMeters float64) int {
	for i, r := range zoneRadiiKm[:ZoneCount-1] {
		if distanceMeters <= r*1000 {
			return i + 1
		}
	}
	return ZoneCount
}

// ZoneFee возвращает плоский тариф зоны.
func ZoneFee(zoneID int) (float64, bool) {
	if zoneID < 1 || zoneID > ZoneCount {
		return 0, false
	}
	return legacyZoneFees[zoneID-1], true
}

// Quote содержит результат расчёта доставки для точки.
type Quote struct {
	ZoneID         int     `json:"zone_id"`
	DistanceMeters float64 `json:"distance_meters"`
	Fee            float64 `json:"fee"`
}

// Engine считает доставку относительно фиксированной точки хаба.
type Engine struct {
	Hub Point
}

// NewEngine создаёт расчётчик для указанного хаба.
func NewEngine(hub Point) *Engine {
	return &Engine{Hub: hub}
}

// Quote рассчитывает зону, расстояние и точную стоимость для точки.
func (e *Engine) Quote(p Point) Quote {
	return QuoteDistance(Haversine(e.Hub, p))
}

// QuoteDistance рассчитывает зону и стоимость по уже известному расстоянию.
func QuoteDistance(distanceMeters float64) Quote {
	if math.IsNaN(distanceMeters) || distanceMeters < 0 {
		distanceMeters = 0
	}
	return Quote{
		ZoneID:         ZoneFor(distanceMeters),
		DistanceMeters: distanceMeters,
		Fee:            Fee(distanceMeters),
	}
}
