package routing

import (
	"fmt"
	"math"
	"sort"

	"github.com/mr1hm/pest-forecast/internal/models"
	"github.com/mr1hm/pest-forecast/internal/spatial"
)

type AreaOptions struct {
	MinCategory     models.RiskCategory
	MaxAreaHectares float64 // 0 means unbounded
}

// ExtractAreas clusters risk cells at or above MinCategory into 8-connected
// intervention areas. Each area grows breadth-first from the highest-scoring
// unclaimed cell until adding another cell would exceed MaxAreaHectares.
// Results are ordered by priority (highest first) and numbered from 1.
func ExtractAreas(g *spatial.Grid, cells []models.RiskCell, observations []models.Observation, opts AreaOptions) []models.InterventionPriority {
	if len(cells) != len(g.Cells) {
		return []models.InterventionPriority{}
	}

	candidate := make([]bool, len(cells))
	seeds := make([]int, 0)
	for i, c := range cells {
		if c.Category.AtLeast(opts.MinCategory) {
			candidate[i] = true
			seeds = append(seeds, i)
		}
	}
	sort.SliceStable(seeds, func(a, b int) bool {
		return cells[seeds[a]].Score > cells[seeds[b]].Score
	})

	cellHa := g.CellAreaHectares()
	maxCells := math.MaxInt
	if opts.MaxAreaHectares > 0 {
		maxCells = max(1, int(opts.MaxAreaHectares/cellHa))
	}

	owner := make([]int, len(cells))
	for i := range owner {
		owner[i] = -1
	}

	var clusters [][]int
	for _, seed := range seeds {
		if owner[seed] >= 0 {
			continue
		}
		id := len(clusters)
		members := []int{seed}
		owner[seed] = id
		for q := 0; q < len(members) && len(members) < maxCells; q++ {
			r, c := cells[members[q]].Row, cells[members[q]].Col
			for _, n := range neighbours(g, r, c) {
				if len(members) >= maxCells {
					break
				}
				if candidate[n] && owner[n] < 0 {
					owner[n] = id
					members = append(members, n)
				}
			}
		}
		clusters = append(clusters, members)
	}

	fields := fieldIndex(g, observations)
	areas := make([]models.InterventionPriority, 0, len(clusters))
	for i, members := range clusters {
		areas = append(areas, summarizeCluster(cells, members, cellHa, fields, i))
	}

	sort.SliceStable(areas, func(a, b int) bool {
		if areas[a].PriorityScore != areas[b].PriorityScore {
			return areas[a].PriorityScore > areas[b].PriorityScore
		}
		return areas[a].AreaHectares > areas[b].AreaHectares
	})
	for i := range areas {
		areas[i].AreaID = i + 1
	}
	return areas
}

func summarizeCluster(cells []models.RiskCell, members []int, cellHa float64, fields map[int]fieldHit, n int) models.InterventionPriority {
	var sumScore, maxScore, latW, lonW float64
	top := cells[members[0]]
	for _, m := range members {
		c := cells[m]
		sumScore += c.Score
		latW += c.Latitude * c.Score
		lonW += c.Longitude * c.Score
		if c.Score > maxScore {
			maxScore = c.Score
			top = c
		}
	}
	mean := sumScore / float64(len(members))

	lat, lon := top.Latitude, top.Longitude
	if sumScore > 0 {
		lat, lon = latW/sumScore, lonW/sumScore
	}

	fieldID := ""
	bestWeight := -1.0
	for _, m := range members {
		if hit, ok := fields[m]; ok && hit.weight > bestWeight {
			fieldID, bestWeight = hit.fieldID, hit.weight
		}
	}
	if fieldID == "" {
		fieldID = fmt.Sprintf("zone-%d", n+1)
	}

	return models.InterventionPriority{
		RiskArea: models.RiskArea{
			Latitude:  lat,
			Longitude: lon,
			Score:     maxScore,
			Category:  top.Category,
		},
		FieldID:       fieldID,
		PriorityScore: 0.7*maxScore + 0.3*mean,
		AreaHectares:  float64(len(members)) * cellHa,
		CellCount:     len(members),
	}
}

type fieldHit struct {
	fieldID string
	weight  float64
}

// fieldIndex maps each cell to the heaviest field observed inside it.
func fieldIndex(g *spatial.Grid, observations []models.Observation) map[int]fieldHit {
	idx := make(map[int]fieldHit)
	for _, o := range observations {
		if o.FieldID == "" {
			continue
		}
		r, c, ok := g.Locate(o.Latitude, o.Longitude)
		if !ok {
			continue
		}
		i := g.Index(r, c)
		if cur, exists := idx[i]; !exists || o.Weight() > cur.weight {
			idx[i] = fieldHit{fieldID: o.FieldID, weight: o.Weight()}
		}
	}
	return idx
}

func neighbours(g *spatial.Grid, r, c int) []int {
	out := make([]int, 0, 8)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			nr, nc := r+dr, c+dc
			if nr < 0 || nr >= g.Rows || nc < 0 || nc >= g.Cols {
				continue
			}
			out = append(out, g.Index(nr, nc))
		}
	}
	return out
}
