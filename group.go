package facefind

import (
	"math"

	flatbush "github.com/bmharper/flatbush-go"
	"github.com/esimov/facefind/utils"
)

// groupEps is the relative tolerance used both for neighbour matching and
// for nested box suppression.
const groupEps = 0.2

// Group merges overlapping candidates into one box per cluster.
//
// With minNeighbors == 0 every candidate is returned as is. Otherwise the
// candidates are split into classes of similar rectangles, classes with fewer
// than minNeighbors members are dropped, and each remaining class is reduced
// to the average of its members. Boxes nested inside a better supported box
// are removed last. The output follows the order in which each class first
// appeared in cands, and every box is clamped to width x height.
func Group(cands []Candidate, minNeighbors, width, height int) []Box {
	if minNeighbors <= 0 {
		boxes := make([]Box, 0, len(cands))
		for _, c := range cands {
			boxes = append(boxes, c.Box)
		}
		return boxes
	}
	if len(cands) == 0 {
		return []Box{}
	}

	labels := partition(cands)

	type cluster struct {
		sx, sy, sw, sh int
		n              int
	}
	var (
		order    []int
		clusters = map[int]*cluster{}
	)
	for i, c := range cands {
		cl, ok := clusters[labels[i]]
		if !ok {
			cl = &cluster{}
			clusters[labels[i]] = cl
			order = append(order, labels[i])
		}
		cl.sx += c.X
		cl.sy += c.Y
		cl.sw += c.W
		cl.sh += c.H
		cl.n++
	}

	var (
		boxes   []Box
		weights []int
	)
	for _, label := range order {
		cl := clusters[label]
		if cl.n < minNeighbors {
			continue
		}
		avg := func(sum int) int {
			return int(math.Round(float64(sum) / float64(cl.n)))
		}
		box := Box{X: avg(cl.sx), Y: avg(cl.sy), W: avg(cl.sw), H: avg(cl.sh)}.clamp(width, height)
		if box.W > 0 && box.H > 0 {
			boxes = append(boxes, box)
			weights = append(weights, cl.n)
		}
	}

	return suppressNested(boxes, weights)
}

// partition labels every candidate with the id of its equivalence class,
// where two candidates are equivalent when they are transitively similar.
func partition(cands []Candidate) []int {
	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(len(cands))
	for _, c := range cands {
		fb.Add(int32(c.X), int32(c.Y), int32(c.X2()), int32(c.Y2()))
	}
	fb.Finish()

	parent := make([]int, len(cands))
	for i := range parent {
		parent[i] = i
	}
	var find func(i int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	var nearby []int
	for i, c := range cands {
		// Similar rectangles always intersect, so the index only needs to
		// be queried with the candidate itself.
		nearby = fb.SearchFast(int32(c.X), int32(c.Y), int32(c.X2()), int32(c.Y2()), nearby[:0])
		for _, j := range nearby {
			if j == i || !similar(c.Box, cands[j].Box) {
				continue
			}
			ri, rj := find(i), find(j)
			if ri != rj {
				// Keep the lowest index as root, so labels are stable.
				if rj < ri {
					ri, rj = rj, ri
				}
				parent[rj] = ri
			}
		}
	}

	labels := make([]int, len(cands))
	for i := range cands {
		labels[i] = find(i)
	}
	return labels
}

// similar reports whether every edge of a and b lies within delta of the other.
func similar(a, b Box) bool {
	delta := groupEps * float64(min(a.W, b.W)+min(a.H, b.H)) * 0.5
	return float64(utils.Abs(a.X-b.X)) <= delta &&
		float64(utils.Abs(a.Y-b.Y)) <= delta &&
		float64(utils.Abs(a.X2()-b.X2())) <= delta &&
		float64(utils.Abs(a.Y2()-b.Y2())) <= delta
}

// suppressNested drops boxes lying inside another box that has more support.
func suppressNested(boxes []Box, weights []int) []Box {
	out := make([]Box, 0, len(boxes))

	for i, r1 := range boxes {
		n1 := weights[i]
		nested := false

		for j, r2 := range boxes {
			if i == j || r1 == r2 {
				continue
			}
			n2 := weights[j]
			dx := int(math.Round(float64(r2.W) * groupEps))
			dy := int(math.Round(float64(r2.H) * groupEps))

			if r1.X >= r2.X-dx && r1.Y >= r2.Y-dy &&
				r1.X2() <= r2.X2()+dx && r1.Y2() <= r2.Y2()+dy &&
				(n2 > max(3, n1) || n1 < 3) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, r1)
		}
	}
	return out
}
