package detection

import (
	"image"
	"math"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
)

// minContourPoints drops specks of edge noise.
const minContourPoints = 10

// edgeMask is a binary edge map indexed [y][x] relative to the image origin.
type edgeMask [][]bool

func newEdgeMask(g *image.Gray) edgeMask {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	mask := make(edgeMask, h)
	for y := 0; y < h; y++ {
		mask[y] = make([]bool, w)
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			mask[y][x] = v != 0
		}
	}
	return mask
}

func (m edgeMask) at(x, y int) bool {
	return y >= 0 && y < len(m) && x >= 0 && x < len(m[y]) && m[y][x]
}

// findContours groups 8-connected edge pixels.
func findContours(edges edgeMask, width, height int) [][]image.Point {
	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	contours := make([][]image.Point, 0)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges[y][x] && !visited[y][x] {
				contour := make([]image.Point, 0)
				floodFill(edges, visited, x, y, width, height, &contour)
				if len(contour) >= minContourPoints {
					contours = append(contours, contour)
				}
			}
		}
	}

	return contours
}

func floodFill(edges edgeMask, visited [][]bool, startX, startY, width, height int, contour *[]image.Point) {
	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !edges[p.Y][p.X] {
			continue
		}

		visited[p.Y][p.X] = true
		*contour = append(*contour, p)

		// 8-connected neighbors
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, image.Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
}

// contourBox returns the bounding box of a contour with an exclusive max.
func contourBox(contour []image.Point) anpr.Box {
	b := anpr.Box{XMin: math.MaxInt, YMin: math.MaxInt, XMax: math.MinInt, YMax: math.MinInt}
	for _, p := range contour {
		b.XMin = min(b.XMin, p.X)
		b.YMin = min(b.YMin, p.Y)
		b.XMax = max(b.XMax, p.X+1)
		b.YMax = max(b.YMax, p.Y+1)
	}
	return b
}

// borderCoverage is the fraction of positions along the box perimeter that
// have an edge pixel within band pixels of the border. A closed outline
// scores close to 1; an open stroke or a blob of text scores lower.
func borderCoverage(edges edgeMask, box anpr.Box, band int) float64 {
	w, h := box.Width(), box.Height()
	if w <= 0 || h <= 0 {
		return 0
	}

	covered := 0
	for x := box.XMin; x < box.XMax; x++ {
		if anyInColumn(edges, x, box.YMin, box.YMin+band) {
			covered++
		}
		if anyInColumn(edges, x, box.YMax-band, box.YMax) {
			covered++
		}
	}
	for y := box.YMin; y < box.YMax; y++ {
		if anyInRow(edges, y, box.XMin, box.XMin+band) {
			covered++
		}
		if anyInRow(edges, y, box.XMax-band, box.XMax) {
			covered++
		}
	}
	return float64(covered) / float64(2*(w+h))
}

func anyInColumn(edges edgeMask, x, y0, y1 int) bool {
	for y := y0; y < y1; y++ {
		if edges.at(x, y) {
			return true
		}
	}
	return false
}

func anyInRow(edges edgeMask, y, x0, x1 int) bool {
	for x := x0; x < x1; x++ {
		if edges.at(x, y) {
			return true
		}
	}
	return false
}

// mergeOverlappingRegions combines overlapping candidates, keeping the
// higher confidence.
func mergeOverlappingRegions(regions []candidate) []candidate {
	if len(regions) == 0 {
		return regions
	}

	merged := make([]candidate, 0)

	for _, r := range regions {
		foundMerge := false
		for i := range merged {
			if regionsOverlap(r.box, merged[i].box) {
				merged[i].box = mergeBounds(r.box, merged[i].box)
				merged[i].confidence = math.Max(r.confidence, merged[i].confidence)
				foundMerge = true
				break
			}
		}
		if !foundMerge {
			merged = append(merged, r)
		}
	}

	return merged
}

// regionsOverlap checks if two boxes overlap
func regionsOverlap(a, b anpr.Box) bool {
	return a.XMin < b.XMax && a.XMax > b.XMin && a.YMin < b.YMax && a.YMax > b.YMin
}

// mergeBounds combines two boxes into their union
func mergeBounds(a, b anpr.Box) anpr.Box {
	return anpr.Box{
		XMin: min(a.XMin, b.XMin),
		YMin: min(a.YMin, b.YMin),
		XMax: max(a.XMax, b.XMax),
		YMax: max(a.YMax, b.YMax),
	}
}
