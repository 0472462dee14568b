// Package cluster implements the Behavioral Clusterer (spec.md §4.K): every
// clustering interval, bot feature vectors are min-max normalized,
// projected to 2D via a fuzzy-kNN force-directed layout (a simplified UMAP
// suitable for the N <= ~50 bot population this system ever handles), then
// clustered via a minimum-spanning-tree density cut (a simplified
// HDBSCAN). History is not retained — each pass fully replaces the last.
package cluster

import (
	"fmt"
	"math"
	"sort"

	"github.com/wargames-arena/marketfeed/internal/fingerprint"
)

const numDimensions = 9
const defaultKNeighbors = 5
const mstCutFactor = 0.5

// Point2D is a bot's force-directed 2D projection.
type Point2D struct {
	X, Y float64
}

// Cluster is one discovered group of bots.
type Cluster struct {
	ID       int
	BotIDs   []string
	Centroid Point2D
	Radius   float64
	Label    string // e.g. "Aggressive-Contrarian"
}

// Result is the full output of one clustering pass.
type Result struct {
	Clusters  []Cluster
	Noise     []string // bots whose component was too small to call a cluster
	Silhouette float64
}

// entry pairs a bot's ID with its raw (pre-normalization) feature vector.
type entry struct {
	botID  string
	vector [numDimensions]float64
}

func featureVector(f fingerprint.Features) [numDimensions]float64 {
	return [numDimensions]float64{
		f.WinRate, f.ProfitFactor, f.Aggressiveness, f.Conviction, f.Contrarian,
		f.MomentumBias, f.BuyRatio, f.TradeFrequency, f.Regularity,
	}
}

var dimensionNames = [numDimensions]string{
	"WinRate", "ProfitFactor", "Aggressiveness", "Conviction", "Contrarian",
	"MomentumBias", "BuyRatio", "TradeFrequency", "Regularity",
}

// Run executes one full clustering pass over bots with >= 5 trades. The
// fingerprint.Manager is queried directly rather than passed pre-filtered
// features, since eligibility (>= 5 trades) is itself a Features()
// precondition.
func Run(fm *fingerprint.Manager, minClusterSizeOverride int) Result {
	botIDs := fm.BotIDs()

	var entries []entry
	for _, id := range botIDs {
		f, ok := fm.Features(id)
		if !ok {
			continue
		}
		entries = append(entries, entry{botID: id, vector: featureVector(f)})
	}
	if len(entries) == 0 {
		return Result{}
	}

	normalized := normalize(entries)
	points := forceDirectedLayout(normalized)

	minClusterSize := minClusterSizeOverride
	if minClusterSize <= 0 {
		minClusterSize = len(entries) / 7
		if minClusterSize < 2 {
			minClusterSize = 2
		}
	}

	labels, noiseIdx := mstDensityCluster(points, minClusterSize)

	clusters := buildClusters(entries, points, labels, normalized)
	var noise []string
	for _, i := range noiseIdx {
		noise = append(noise, entries[i].botID)
	}

	return Result{
		Clusters:   clusters,
		Noise:      noise,
		Silhouette: silhouette(points, labels),
	}
}

type normalizedEntry struct {
	botID  string
	vector [numDimensions]float64
}

func normalize(entries []entry) []normalizedEntry {
	mins := [numDimensions]float64{}
	maxs := [numDimensions]float64{}
	for d := 0; d < numDimensions; d++ {
		mins[d] = math.Inf(1)
		maxs[d] = math.Inf(-1)
	}
	for _, e := range entries {
		for d := 0; d < numDimensions; d++ {
			if e.vector[d] < mins[d] {
				mins[d] = e.vector[d]
			}
			if e.vector[d] > maxs[d] {
				maxs[d] = e.vector[d]
			}
		}
	}

	out := make([]normalizedEntry, len(entries))
	for i, e := range entries {
		var v [numDimensions]float64
		for d := 0; d < numDimensions; d++ {
			span := maxs[d] - mins[d]
			if span == 0 {
				v[d] = 0
			} else {
				v[d] = (e.vector[d] - mins[d]) / span
			}
		}
		out[i] = normalizedEntry{botID: e.botID, vector: v}
	}
	return out
}

func euclidean(a, b [numDimensions]float64) float64 {
	sum := 0.0
	for d := 0; d < numDimensions; d++ {
		diff := a[d] - b[d]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// forceDirectedLayout builds a k-nearest-neighbor graph with fuzzy-set edge
// weights (1/(1+distance)) and relaxes a 2D embedding with attractive edges
// and a uniform repulsive force between all pairs — the simplified UMAP
// this package implements in place of a full gradient-descent optimizer.
func forceDirectedLayout(entries []normalizedEntry) []Point2D {
	n := len(entries)
	points := make([]Point2D, n)
	for i := range points {
		angle := 2 * math.Pi * float64(i) / float64(n+1)
		points[i] = Point2D{X: math.Cos(angle), Y: math.Sin(angle)}
	}
	if n <= 1 {
		return points
	}

	k := defaultKNeighbors
	if k >= n {
		k = n - 1
	}

	type edge struct {
		from, to int
		weight   float64
	}
	var edges []edge
	for i := 0; i < n; i++ {
		dists := make([]struct {
			j int
			d float64
		}, 0, n-1)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			dists = append(dists, struct {
				j int
				d float64
			}{j, euclidean(entries[i].vector, entries[j].vector)})
		}
		sort.Slice(dists, func(a, b int) bool { return dists[a].d < dists[b].d })
		for _, nb := range dists[:k] {
			edges = append(edges, edge{from: i, to: nb.j, weight: 1 / (1 + nb.d)})
		}
	}

	const iterations = 200
	const attractStrength = 0.02
	const repelStrength = 0.002
	for iter := 0; iter < iterations; iter++ {
		forces := make([]Point2D, n)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx := points[i].X - points[j].X
				dy := points[i].Y - points[j].Y
				d2 := dx*dx + dy*dy + 1e-6
				f := repelStrength / d2
				forces[i].X += f * dx
				forces[i].Y += f * dy
				forces[j].X -= f * dx
				forces[j].Y -= f * dy
			}
		}
		for _, e := range edges {
			dx := points[e.to].X - points[e.from].X
			dy := points[e.to].Y - points[e.from].Y
			forces[e.from].X += attractStrength * e.weight * dx
			forces[e.from].Y += attractStrength * e.weight * dy
		}
		for i := 0; i < n; i++ {
			points[i].X += forces[i].X
			points[i].Y += forces[i].Y
		}
	}
	return points
}

// mstDensityCluster builds a minimum spanning tree over the 2D points,
// cuts edges heavier than mean + 0.5*stddev, and labels the resulting
// connected components — the simplified HDBSCAN this package implements.
// Components smaller than minClusterSize are relabeled noise (label -1).
func mstDensityCluster(points []Point2D, minClusterSize int) (labels []int, noiseIdx []int) {
	n := len(points)
	labels = make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	if n == 0 {
		return labels, nil
	}
	if n == 1 {
		labels[0] = -1
		return labels, []int{0}
	}

	mst := primMST(points)

	mean, stddev := edgeStats(mst)
	threshold := mean + mstCutFactor*stddev

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, e := range mst {
		if e.weight <= threshold {
			union(e.a, e.b)
		}
	}

	components := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := find(i)
		components[root] = append(components[root], i)
	}

	clusterID := 0
	for _, members := range components {
		if len(members) < minClusterSize {
			for _, idx := range members {
				labels[idx] = -1
				noiseIdx = append(noiseIdx, idx)
			}
			continue
		}
		for _, idx := range members {
			labels[idx] = clusterID
		}
		clusterID++
	}
	return labels, noiseIdx
}

type primEdge struct {
	a, b   int
	weight float64
}

// primMST builds a minimum spanning tree over the complete graph of
// mutual-reachability distances between 2D points: max(d(u,v), core(u),
// core(v)), where core(i) is the distance from i to its k-th nearest
// neighbor (k = defaultKNeighbors, capped at n-1).
func primMST(points []Point2D) []primEdge {
	n := len(points)
	k := defaultKNeighbors
	if k > n-1 {
		k = n - 1
	}
	core := make([]float64, n)
	for i := range points {
		ds := make([]float64, 0, n)
		for j := range points {
			ds = append(ds, math.Hypot(points[i].X-points[j].X, points[i].Y-points[j].Y))
		}
		sort.Float64s(ds) // ds[0] is the point's zero distance to itself
		core[i] = ds[k]
	}
	inTree := make([]bool, n)
	dist := make([]float64, n)
	nearest := make([]int, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		nearest[i] = -1
	}
	dist[0] = 0
	var edges []primEdge

	for count := 0; count < n; count++ {
		u := -1
		best := math.Inf(1)
		for v := 0; v < n; v++ {
			if !inTree[v] && dist[v] < best {
				best = dist[v]
				u = v
			}
		}
		if u == -1 {
			break
		}
		inTree[u] = true
		if nearest[u] != -1 {
			edges = append(edges, primEdge{a: u, b: nearest[u], weight: dist[u]})
		}
		for v := 0; v < n; v++ {
			if inTree[v] {
				continue
			}
			dx := points[u].X - points[v].X
			dy := points[u].Y - points[v].Y
			d := math.Max(math.Sqrt(dx*dx+dy*dy), math.Max(core[u], core[v]))
			if d < dist[v] {
				dist[v] = d
				nearest[v] = u
			}
		}
	}
	return edges
}

func edgeStats(edges []primEdge) (mean, stddev float64) {
	if len(edges) == 0 {
		return 0, 0
	}
	for _, e := range edges {
		mean += e.weight
	}
	mean /= float64(len(edges))
	for _, e := range edges {
		d := e.weight - mean
		stddev += d * d
	}
	stddev = math.Sqrt(stddev / float64(len(edges)))
	return mean, stddev
}

func buildClusters(entries []entry, points []Point2D, labels []int, normalized []normalizedEntry) []Cluster {
	byLabel := make(map[int][]int)
	for i, l := range labels {
		if l < 0 {
			continue
		}
		byLabel[l] = append(byLabel[l], i)
	}

	var clusters []Cluster
	for label, members := range byLabel {
		var centroid Point2D
		for _, idx := range members {
			centroid.X += points[idx].X
			centroid.Y += points[idx].Y
		}
		centroid.X /= float64(len(members))
		centroid.Y /= float64(len(members))

		radius := 0.0
		for _, idx := range members {
			dx := points[idx].X - centroid.X
			dy := points[idx].Y - centroid.Y
			d := math.Sqrt(dx*dx + dy*dy)
			if d > radius {
				radius = d
			}
		}

		botIDs := make([]string, len(members))
		for i, idx := range members {
			botIDs[i] = entries[idx].botID
		}

		clusters = append(clusters, Cluster{
			ID:       label,
			BotIDs:   botIDs,
			Centroid: centroid,
			Radius:   radius,
			Label:    dominantReasonLabel(members, normalized),
		})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })
	return clusters
}

// dominantReasonLabel synthesizes a label like "Aggressive-Contrarian" from
// the cluster's top two average feature magnitudes.
func dominantReasonLabel(members []int, normalized []normalizedEntry) string {
	if len(members) == 0 {
		return "Unclassified"
	}
	var avg [numDimensions]float64
	for _, idx := range members {
		for d := 0; d < numDimensions; d++ {
			avg[d] += normalized[idx].vector[d]
		}
	}
	for d := 0; d < numDimensions; d++ {
		avg[d] /= float64(len(members))
	}

	type ranked struct {
		dim int
		val float64
	}
	var ranks []ranked
	for d := 0; d < numDimensions; d++ {
		ranks = append(ranks, ranked{dim: d, val: avg[d]})
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i].val > ranks[j].val })

	names := map[int]string{
		0: "Consistent", 1: "Profitable", 2: "Aggressive", 3: "Convicted",
		4: "Contrarian", 5: "Momentum-Driven", 6: "Buy-Heavy", 7: "Frequent", 8: "Regular",
	}
	if len(ranks) < 2 {
		return "Unclassified"
	}
	return fmt.Sprintf("%s-%s", names[ranks[0].dim], names[ranks[1].dim])
}

// silhouette computes a simplified silhouette score: average over points of
// (b-a)/max(a,b), where a is mean intra-cluster distance and b is the
// distance to the nearest other cluster's centroid.
func silhouette(points []Point2D, labels []int) float64 {
	byLabel := make(map[int][]int)
	for i, l := range labels {
		if l >= 0 {
			byLabel[l] = append(byLabel[l], i)
		}
	}
	if len(byLabel) < 2 {
		return 0
	}

	centroids := make(map[int]Point2D)
	for l, members := range byLabel {
		var c Point2D
		for _, idx := range members {
			c.X += points[idx].X
			c.Y += points[idx].Y
		}
		c.X /= float64(len(members))
		c.Y /= float64(len(members))
		centroids[l] = c
	}

	total, n := 0.0, 0
	for l, members := range byLabel {
		for _, idx := range members {
			a := 0.0
			if len(members) > 1 {
				for _, other := range members {
					if other == idx {
						continue
					}
					dx := points[idx].X - points[other].X
					dy := points[idx].Y - points[other].Y
					a += math.Sqrt(dx*dx + dy*dy)
				}
				a /= float64(len(members) - 1)
			}

			b := math.Inf(1)
			for ol, c := range centroids {
				if ol == l {
					continue
				}
				dx := points[idx].X - c.X
				dy := points[idx].Y - c.Y
				d := math.Sqrt(dx*dx + dy*dy)
				if d < b {
					b = d
				}
			}
			if math.IsInf(b, 1) {
				continue
			}
			m := math.Max(a, b)
			if m == 0 {
				continue
			}
			total += (b - a) / m
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}
