package odfilter

import (
	"bufio"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func prepareTestNetwork(t *testing.T, contract bool) *Network {
	t.Helper()
	net, err := ImportSUMO("./testdata/net.con.xml", "./testdata/net.edg.xml", "./testdata/net.rou.xml", nil)
	if err != nil {
		t.Fatal(err)
	}
	err = net.Prepare(contract)
	if err != nil {
		t.Fatal(err)
	}
	return net
}

func keys(m map[string]float64) []string {
	ans := make([]string, 0, len(m))
	for k := range m {
		ans = append(ans, k)
	}
	sort.Strings(ans)
	return ans
}

func TestImportSUMO(t *testing.T) {
	net := prepareTestNetwork(t, false)
	if net.NodesNum() != 5 {
		t.Errorf("Number of nodes must be 5 (internal edges are skipped), but got %d", net.NodesNum())
	}
	if net.HasNode(":n1_0") {
		t.Errorf("Internal edge must not become a node")
	}
	if net.LinksNum() != 7 {
		t.Errorf("Number of links must be 7, but got %d", net.LinksNum())
	}
	expectedTimes := map[string]float64{
		"A->B": 10.0,
		"B->D": 50.0 / DEFAULT_SUMO_SPEED,
		"F->D": 6.0,
		"B->F": 50.0 / DEFAULT_SUMO_SPEED,
	}
	found := 0
	for _, link := range net.Links() {
		expected, ok := expectedTimes[link.Source+"->"+link.Target]
		if !ok {
			continue
		}
		found++
		if math.Abs(expected-link.Time) > 1e-9 {
			t.Errorf("Time of link %s->%s must be %f, but got %f", link.Source, link.Target, expected, link.Time)
		}
	}
	if found != len(expectedTimes) {
		t.Errorf("Number of checked links must be %d, but got %d", len(expectedTimes), found)
	}
	geom, ok := net.NodeGeometry("B")
	if !ok || len(geom) != 2 {
		t.Errorf("Node 'B' must have geometry of 2 points, but got %v", geom)
	}
	if _, ok := net.NodeGeometry("A"); ok {
		t.Errorf("Node 'A' must have no geometry")
	}
}

func TestImportSUMOWithoutRoutes(t *testing.T) {
	net, err := ImportSUMO("./testdata/net.con.xml", "./testdata/net.edg.xml", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if net.LinksNum() != 6 {
		t.Errorf("Number of links must be 6, but got %d", net.LinksNum())
	}
}

func TestImportSUMOErrors(t *testing.T) {
	if _, err := ImportSUMO("./testdata/net.con.xml", "./testdata/not_exists.xml", "", nil); err == nil {
		t.Errorf("Missing edge file must produce error")
	}
	if _, err := ImportSUMO("./testdata/not_exists.xml", "./testdata/net.edg.xml", "", nil); err == nil {
		t.Errorf("Missing connection file must produce error")
	}
}

func TestReachability(t *testing.T) {
	net := prepareTestNetwork(t, false)

	from, err := net.ReachableFrom("C")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(keys(from), ",") != "C" {
		t.Errorf("Only 'C' itself must be reachable from 'C', but got %v", keys(from))
	}

	from, err = net.ReachableFrom("A")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(keys(from), ",") != "A,B,C,D,F" {
		t.Errorf("Every node must be reachable from 'A', but got %v", keys(from))
	}
	// A -> B -> D is cheaper than A -> F -> D
	if expected := 10.0 + 50.0/DEFAULT_SUMO_SPEED; math.Abs(from["D"]-expected) > 1e-9 {
		t.Errorf("Travel time from 'A' to 'D' must be %f, but got %f", expected, from["D"])
	}

	to, err := net.ReachableTo("C")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(keys(to), ",") != "A,B,C,D,F" {
		t.Errorf("Every node must reach 'C', but got %v", keys(to))
	}

	_, err = net.ReachableFrom("Z")
	if !errors.Is(err, ErrUnknownNode) {
		t.Errorf("Unknown node must produce ErrUnknownNode, but got %v", err)
	}
}

func gridNodeName(row, col int) string {
	return strconv.Itoa(row) + "_" + strconv.Itoa(col)
}

// prepareGridNetwork builds size x size grid with two-way links of unit travel time
func prepareGridNetwork(t *testing.T, size int) *Network {
	t.Helper()
	net := NewNetwork()
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			neighbours := [][2]int{{row + 1, col}, {row, col + 1}}
			for _, next := range neighbours {
				if next[0] >= size || next[1] >= size {
					continue
				}
				source, target := gridNodeName(row, col), gridNodeName(next[0], next[1])
				if err := net.AddLink(Link{Source: source, Target: target, Time: 1, Length: 10}); err != nil {
					t.Fatal(err)
				}
				if err := net.AddLink(Link{Source: target, Target: source, Time: 1, Length: 10}); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	if err := net.Prepare(false); err != nil {
		t.Fatal(err)
	}
	return net
}

func TestReachabilityLargeGrid(t *testing.T) {
	size := 60
	net := prepareGridNetwork(t, size)

	st := time.Now()
	from, err := net.ReachableFrom(gridNodeName(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	to, err := net.ReachableTo(gridNodeName(size-1, size-1))
	if err != nil {
		t.Fatal(err)
	}
	elapsed := time.Since(st)
	if elapsed > 2*time.Second {
		t.Errorf("Two reachability queries on %dx%d grid must take less than 2s, but took %v", size, size, elapsed)
	}
	if len(from) != size*size || len(to) != size*size {
		t.Errorf("Every node of the grid must be reachable, but got %d and %d", len(from), len(to))
	}
	// Shortest travel time on grid is Manhattan distance
	if cost := from[gridNodeName(size-1, size-1)]; cost != float64(2*(size-1)) {
		t.Errorf("Travel time to opposite corner must be %d, but got %f", 2*(size-1), cost)
	}
	if cost := to[gridNodeName(0, 5)]; cost != float64(2*(size-1)-5) {
		t.Errorf("Travel time from (0, 5) to opposite corner must be %d, but got %f", 2*(size-1)-5, cost)
	}
}

func TestNetworkNotPrepared(t *testing.T) {
	net := NewNetwork()
	if err := net.AddLink(Link{Source: "a", Target: "b", Time: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := net.ReachableFrom("a"); !errors.Is(err, ErrNotPrepared) {
		t.Errorf("Query before preparation must produce ErrNotPrepared, but got %v", err)
	}
	if err := net.Prepare(false); err != nil {
		t.Fatal(err)
	}
	if _, _, err := net.ShortestPath("a", "b"); !errors.Is(err, ErrNotContracted) {
		t.Errorf("Shortest path without contraction must produce ErrNotContracted, but got %v", err)
	}
	if err := net.AddLink(Link{Source: "b", Target: "a", Time: 1}); err == nil {
		t.Errorf("Prepared network must not accept new links")
	}
}

func TestAddLink(t *testing.T) {
	net := NewNetwork()
	if err := net.AddLink(Link{Source: "a", Target: "b", Time: 5}); err != nil {
		t.Fatal(err)
	}
	if err := net.AddLink(Link{Source: "a", Target: "b", Time: 3}); err != nil {
		t.Fatal(err)
	}
	if err := net.AddLink(Link{Source: "a", Target: "a", Time: 1}); err != nil {
		t.Fatal(err)
	}
	if err := net.AddLink(Link{Source: "a", Target: "c", Time: -1}); err == nil {
		t.Errorf("Negative travel time must be rejected")
	}
	if err := net.AddLink(Link{Source: "a", Target: "c", Time: math.NaN()}); err == nil {
		t.Errorf("NaN travel time must be rejected")
	}
	links := net.Links()
	if len(links) != 1 {
		t.Fatalf("Number of links must be 1, but got %d", len(links))
	}
	if links[0].Time != 3 {
		t.Errorf("Cheapest duplicate must be kept, but got time %f", links[0].Time)
	}
}

func TestShortestPath(t *testing.T) {
	net := prepareTestNetwork(t, true)
	cost, path, err := net.ShortestPath("A", "D")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(path, ",") != "A,B,D" {
		t.Errorf("Path must be A,B,D, but got %v", path)
	}
	if math.Abs(cost-(10.0+50.0/DEFAULT_SUMO_SPEED)) > 1e-6 {
		t.Errorf("Cost must be %f, but got %f", 10.0+50.0/DEFAULT_SUMO_SPEED, cost)
	}
	cost, path, err = net.ShortestPath("C", "A")
	if err != nil {
		t.Fatal(err)
	}
	if cost >= 0 || path != nil {
		t.Errorf("There must be no path from 'C' to 'A', but got %f %v", cost, path)
	}
}

func TestImportOSM(t *testing.T) {
	cfg := DefaultConfiguration().OSM
	net, err := ImportOSM("./testdata/small.osm", &cfg)
	if err != nil {
		t.Fatal(err)
	}
	// 1->2 (oneway), 2->3, 3->2. Footway and building are filtered out
	if net.LinksNum() != 3 {
		t.Errorf("Number of links must be 3, but got %d", net.LinksNum())
	}
	if net.NodesNum() != 3 {
		t.Errorf("Number of nodes must be 3, but got %d", net.NodesNum())
	}
	for _, link := range net.Links() {
		if link.Source == "2" && link.Target == "1" {
			t.Errorf("Oneway way must not produce backward link")
		}
		if link.Source == "1" && link.Target == "2" {
			if math.Abs(link.Length-2716.93096539) > 1.0 {
				t.Errorf("Length of link 1->2 must be about 2716.93 meters, but got %f", link.Length)
			}
			// primary => 80 km/h
			if math.Abs(link.Time-link.Length/(80.0/3.6)) > 1e-9 {
				t.Errorf("Time of link 1->2 must be evaluated with 80 km/h, but got %f", link.Time)
			}
		}
		if link.Source == "2" && link.Target == "3" {
			if math.Abs(link.Time-link.Length/(20.0*1.609344/3.6)) > 1e-9 {
				t.Errorf("Time of link 2->3 must be evaluated with 20 mph, but got %f", link.Time)
			}
		}
	}

	netAll, err := ImportOSM("./testdata/small.osm", &OSMConfiguration{})
	if err != nil {
		t.Fatal(err)
	}
	if netAll.LinksNum() != 5 {
		t.Errorf("Number of links without tag filter must be 5, but got %d", netAll.LinksNum())
	}
}

func TestImportOSMUnknownExtension(t *testing.T) {
	if _, err := ImportOSM("./testdata/net.con.txt", nil); err == nil {
		t.Errorf("Unknown file must produce error")
	}
}

func TestParseMaxSpeed(t *testing.T) {
	tt := []struct {
		in       string
		expected float64
	}{
		{"", -1},
		{"none", -1},
		{"50", 50},
		{"50 km/h", 50},
		{"30 mph", 30 * 1.609344},
	}
	for _, tc := range tt {
		if got := parseMaxSpeed(tc.in); math.Abs(got-tc.expected) > 1e-9 {
			t.Errorf("Speed for '%s' must be %f, but got %f", tc.in, tc.expected, got)
		}
	}
}

func TestExportToCSV(t *testing.T) {
	net := prepareTestNetwork(t, false)
	fname := filepath.Join(t.TempDir(), "net.csv")
	err := net.ExportToCSV(fname)
	if err != nil {
		t.Fatal(err)
	}
	file, err := os.Open(filepath.Join(filepath.Dir(fname), "net_links.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	lines := []string{}
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != net.LinksNum()+1 {
		t.Fatalf("Number of lines must be %d, but got %d", net.LinksNum()+1, len(lines))
	}
	if lines[0] != "id;source_node;target_node;time;length_meters;geom" {
		t.Errorf("Unexpected header: %s", lines[0])
	}
	withGeom := 0
	for _, line := range lines[1:] {
		if strings.Contains(line, "LINESTRING") {
			withGeom++
		}
	}
	// Only B has geometry, so no link has both ends with geometry
	if withGeom != 0 {
		t.Errorf("Number of links with geometry must be 0, but got %d", withGeom)
	}
}
