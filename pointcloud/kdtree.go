package pointcloud

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"

	"go.viam.com/meshfuse/spatialmath"
	"go.viam.com/meshfuse/utils"
)

// Neighbor is an indexed point found by a query together with its euclidean distance from the
// query position.
type Neighbor struct {
	Index    int
	Point    r3.Vector
	Distance float64
}

// KDTree is a static spatial index over a fixed set of points. Indices in query results refer to
// the slice (or cloud iteration order) the tree was built from. Non-finite points are not
// indexed and are never returned.
type KDTree struct {
	tree   *kdtree.Tree
	points []r3.Vector
}

// NewKDTree builds a tree over points. The slice is copied and never modified.
func NewKDTree(points []r3.Vector) *KDTree {
	kd := &KDTree{points: make([]r3.Vector, len(points))}
	copy(kd.points, points)

	nodes := make(kdNodes, 0, len(points))
	for i, p := range points {
		if !spatialmath.IsFinite(p) {
			continue
		}
		nodes = append(nodes, kdNode{pt: p, idx: i})
	}
	if len(nodes) > 0 {
		kd.tree = kdtree.New(nodes, false)
	}
	return kd
}

// ToKDTree builds a tree over the points of a cloud, indexed by iteration order.
func ToKDTree(pc PointCloud) *KDTree {
	points := make([]r3.Vector, 0, pc.Size())
	pc.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		points = append(points, p)
		return true
	})
	return NewKDTree(points)
}

// Len returns the number of points the tree was built from, indexed or not.
func (kd *KDTree) Len() int {
	return len(kd.points)
}

// Point returns the i-th point the tree was built from.
func (kd *KDTree) Point(i int) (r3.Vector, error) {
	if i < 0 || i >= len(kd.points) {
		return r3.Vector{}, utils.NewIndexOutOfRangeError("point", i, len(kd.points))
	}
	return kd.points[i], nil
}

// RadiusNearestNeighbors returns every indexed point within distance r of p (inclusive),
// ordered by ascending distance and then by index. A non-positive or NaN radius yields nothing.
func (kd *KDTree) RadiusNearestNeighbors(p r3.Vector, r float64) []Neighbor {
	return kd.radiusSearch(p, r, -1)
}

// RadiusNearestNeighborsOf is RadiusNearestNeighbors around the i-th indexed point, leaving
// that point out of the result.
func (kd *KDTree) RadiusNearestNeighborsOf(i int, r float64) ([]Neighbor, error) {
	p, err := kd.Point(i)
	if err != nil {
		return nil, err
	}
	return kd.radiusSearch(p, r, i), nil
}

// NearestNeighbor returns the indexed point closest to p. It returns false for an empty tree.
func (kd *KDTree) NearestNeighbor(p r3.Vector) (Neighbor, bool) {
	if kd.tree == nil || !spatialmath.IsFinite(p) {
		return Neighbor{}, false
	}
	c, dist := kd.tree.Nearest(kdNode{pt: p, idx: -1})
	node, ok := c.(kdNode)
	if !ok {
		return Neighbor{}, false
	}
	return Neighbor{Index: node.idx, Point: node.pt, Distance: math.Sqrt(dist)}, true
}

func (kd *KDTree) radiusSearch(p r3.Vector, r float64, exclude int) []Neighbor {
	if kd.tree == nil || math.IsNaN(r) || r <= 0 || !spatialmath.IsFinite(p) {
		return nil
	}
	keeper := kdtree.NewDistKeeper(r * r)
	kd.tree.NearestSet(keeper, kdNode{pt: p, idx: -1})

	neighbors := make([]Neighbor, 0, len(keeper.Heap))
	for _, cd := range keeper.Heap {
		if cd.Comparable == nil {
			continue
		}
		node, ok := cd.Comparable.(kdNode)
		if !ok {
			panic(utils.NewUnexpectedTypeError(node, cd.Comparable))
		}
		if node.idx == exclude {
			continue
		}
		neighbors = append(neighbors, Neighbor{Index: node.idx, Point: node.pt, Distance: math.Sqrt(cd.Dist)})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Index < neighbors[j].Index
	})
	return neighbors
}

// kdNode is a point stored in the tree. Distance is squared euclidean distance, which keeps the
// ordering gonum needs without a square root per comparison.
type kdNode struct {
	pt  r3.Vector
	idx int
}

func (n kdNode) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	o, ok := c.(kdNode)
	if !ok {
		panic(utils.NewUnexpectedTypeError(o, c))
	}
	switch d {
	case 0:
		return n.pt.X - o.pt.X
	case 1:
		return n.pt.Y - o.pt.Y
	case 2:
		return n.pt.Z - o.pt.Z
	default:
		panic("illegal dimension")
	}
}

func (n kdNode) Dims() int {
	return 3
}

func (n kdNode) Distance(c kdtree.Comparable) float64 {
	o, ok := c.(kdNode)
	if !ok {
		panic(utils.NewUnexpectedTypeError(o, c))
	}
	return n.pt.Sub(o.pt).Norm2()
}

type kdNodes []kdNode

func (ns kdNodes) Index(i int) kdtree.Comparable {
	return ns[i]
}

func (ns kdNodes) Len() int {
	return len(ns)
}

func (ns kdNodes) Pivot(d kdtree.Dim) int {
	return kdPlane{Dim: d, kdNodes: ns}.Pivot()
}

func (ns kdNodes) Slice(start, end int) kdtree.Interface {
	return ns[start:end]
}

// kdPlane sorts nodes along one dimension for pivot selection.
type kdPlane struct {
	kdtree.Dim
	kdNodes
}

func (p kdPlane) Less(i, j int) bool {
	return p.kdNodes[i].Compare(p.kdNodes[j], p.Dim) < 0
}

func (p kdPlane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.kdNodes = p.kdNodes[start:end]
	return p
}

func (p kdPlane) Swap(i, j int) {
	p.kdNodes[i], p.kdNodes[j] = p.kdNodes[j], p.kdNodes[i]
}
