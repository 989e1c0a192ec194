package odfilter

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAgents(t *testing.T) {
	agents := []Agent{
		{ID: 0, StartTime: 60, Origin: 0, Destination: 0, Kind: KindHuman, Extra: []Attribute{{Key: "departLane", Value: "best"}}},
		{ID: 1, StartTime: 0, Origin: 1, Destination: 0, Kind: KindHuman, Extra: []Attribute{{Key: "color", Value: "red,blue"}}},
	}
	var buf bytes.Buffer
	err := writeAgents(&buf, agents, false)
	if err != nil {
		t.Fatal(err)
	}
	expected := "id,start_time,origin,destination,kind\n0,60,0,0,Human\n1,0,1,0,Human\n"
	if buf.String() != expected {
		t.Errorf("Agents CSV must be:\n%s\nbut got:\n%s", expected, buf.String())
	}

	buf.Reset()
	err = writeAgents(&buf, agents, true)
	if err != nil {
		t.Fatal(err)
	}
	expected = "id,start_time,origin,destination,departLane,color,kind\n0,60,0,0,best,,Human\n1,0,1,0,,\"red,blue\",Human\n"
	if buf.String() != expected {
		t.Errorf("Agents CSV with extra attributes must be:\n%s\nbut got:\n%s", expected, buf.String())
	}
}

func TestWriteAgentsEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := writeAgents(&buf, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if buf.String() != "id,start_time,origin,destination,kind\n" {
		t.Errorf("Empty table must produce header only, but got %q", buf.String())
	}
}

func TestWriteODLookup(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "od.txt")
	err := WriteODLookup(fname, ODLookup{
		Origins:      []string{"-12345#0", "678"},
		Destinations: []string{"910#1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(fname)
	if err != nil {
		t.Fatal(err)
	}
	expected := "{\n\"origins\" : ['-12345#0', '678'],\n\"destinations\" : ['910#1'],\n}"
	if string(data) != expected {
		t.Errorf("OD lookup must be:\n%s\nbut got:\n%s", expected, string(data))
	}

	var buf bytes.Buffer
	err = writeODLookup(&buf, ODLookup{})
	if err != nil {
		t.Fatal(err)
	}
	expected = "{\n\"origins\" : [],\n\"destinations\" : [],\n}"
	if buf.String() != expected {
		t.Errorf("Empty OD lookup must be:\n%s\nbut got:\n%s", expected, buf.String())
	}
}

func TestPythonQuote(t *testing.T) {
	cases := map[string]string{
		"abc":        `'abc'`,
		"it's":       `"it's"`,
		`say "it's"`: `'say "it\'s"'`,
		`a\b`:        `'a\\b'`,
		"tab\there":  `'tab\there'`,
		"\x01":       `'\x01'`,
		"":           `''`,
	}
	for input, expected := range cases {
		if got := pythonQuote(input); got != expected {
			t.Errorf("Quoted %q must be %s, but got %s", input, expected, got)
		}
	}
}
