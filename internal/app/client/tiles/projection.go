package tiles

import (
	"math"

	"fieldsync/internal/domain/entity"
)

// kmPerDegree - длина градуса широты в километрах
const kmPerDegree = 111.32

// Coord - адрес тайла в схеме slippy map
type Coord struct {
	Z, X, Y int
}

func (c Coord) ID() string {
	return entity.TileID(c.Z, c.X, c.Y)
}

// LonToX переводит долготу в номер столбца тайлов на уровне z.
func LonToX(lon float64, z int) int {
	n := math.Exp2(float64(z))
	return clamp(int(math.Floor((lon+180)/360*n)), z)
}

// LatToY переводит широту в номер строки тайлов на уровне z.
func LatToY(lat float64, z int) int {
	n := math.Exp2(float64(z))
	phi := lat * math.Pi / 180
	y := (1 - math.Log(math.Tan(phi)+1/math.Cos(phi))/math.Pi) / 2 * n
	return clamp(int(math.Floor(y)), z)
}

// AreaTiles возвращает тайлы квадрата со стороной 2*radiusKM вокруг точки
// для каждого уровня масштаба, без повторов. Диапазон столбцов переходит
// через антимеридиан.
func AreaTiles(lat, lon, radiusKM float64, zooms []int) []Coord {
	// у полюса cos стремится к нулю, считаем по границе проекции
	lat = math.Max(math.Min(lat, maxLat), -maxLat)

	dLat := radiusKM / kmPerDegree
	dLon := math.Min(radiusKM/(kmPerDegree*math.Cos(lat*math.Pi/180)), 180)

	north := math.Min(lat+dLat, maxLat)
	south := math.Max(lat-dLat, -maxLat)
	west := lon - dLon
	east := lon + dLon

	seen := make(map[Coord]struct{})
	var coords []Coord
	for _, z := range zooms {
		n := 1 << z
		x0, x1 := column(west, z), column(east, z)
		if x1-x0+1 > n {
			x0, x1 = 0, n-1
		}
		y0, y1 := LatToY(north, z), LatToY(south, z)

		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				c := Coord{Z: z, X: ((x % n) + n) % n, Y: y}
				if _, ok := seen[c]; ok {
					continue
				}
				seen[c] = struct{}{}
				coords = append(coords, c)
			}
		}
	}
	return coords
}

// column - номер столбца без ограничения диапазона
func column(lon float64, z int) int {
	return int(math.Floor((lon + 180) / 360 * math.Exp2(float64(z))))
}

// maxLat - граница проекции Меркатора
const maxLat = 85.05112878

func clamp(v, z int) int {
	maxIdx := (1 << z) - 1
	if v < 0 {
		return 0
	}
	if v > maxIdx {
		return maxIdx
	}
	return v
}
