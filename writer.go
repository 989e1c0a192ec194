package odfilter

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// WriteAgentsCSV saves agents into comma-separated file with header 'id,start_time,origin,destination,kind'.
// When withExtra is set, attributes which were not consumed by reformatting are written as additional columns before 'kind'.
func WriteAgentsCSV(fname string, agents []Agent, withExtra bool) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer file.Close()
	err = writeAgents(file, agents, withExtra)
	if err != nil {
		return errors.Wrapf(err, "Can't write agents to '%s'", fname)
	}
	return file.Close()
}

func writeAgents(w io.Writer, agents []Agent, withExtra bool) error {
	writer := csv.NewWriter(w)
	extraKeys := []string{}
	if withExtra {
		seen := make(map[string]struct{})
		for _, agent := range agents {
			for _, attr := range agent.Extra {
				if _, ok := seen[attr.Key]; ok {
					continue
				}
				seen[attr.Key] = struct{}{}
				extraKeys = append(extraKeys, attr.Key)
			}
		}
	}
	header := []string{"id", "start_time", "origin", "destination"}
	header = append(header, extraKeys...)
	header = append(header, "kind")
	err := writer.Write(header)
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}
	for _, agent := range agents {
		record := make([]string, 0, len(header))
		record = append(record,
			strconv.Itoa(agent.ID),
			strconv.Itoa(agent.StartTime),
			strconv.Itoa(agent.Origin),
			strconv.Itoa(agent.Destination),
		)
		for _, key := range extraKeys {
			value := ""
			for _, attr := range agent.Extra {
				if attr.Key == key {
					value = attr.Value
					break
				}
			}
			record = append(record, value)
		}
		record = append(record, agent.Kind)
		err = writer.Write(record)
		if err != nil {
			return errors.Wrap(err, "Can't write agent")
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteODLookup saves origin and destination node identifiers ordered by their indices:
//
//	{
//	"origins" : ['a', 'b'],
//	"destinations" : ['c'],
//	}
func WriteODLookup(fname string, lookup ODLookup) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer file.Close()
	err = writeODLookup(file, lookup)
	if err != nil {
		return errors.Wrapf(err, "Can't write OD lookup to '%s'", fname)
	}
	return file.Close()
}

func writeODLookup(w io.Writer, lookup ODLookup) error {
	buf := bufio.NewWriter(w)
	fmt.Fprint(buf, "{\n")
	fmt.Fprintf(buf, "\"origins\" : %s,\n", pythonList(lookup.Origins))
	fmt.Fprintf(buf, "\"destinations\" : %s,\n", pythonList(lookup.Destinations))
	fmt.Fprint(buf, "}")
	return buf.Flush()
}

// pythonList renders strings the same way Python renders list of str
func pythonList(values []string) string {
	quoted := make([]string, len(values))
	for i, value := range values {
		quoted[i] = pythonQuote(value)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func pythonQuote(s string) string {
	quote := '\''
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}
	var b strings.Builder
	b.WriteRune(quote)
	for _, r := range s {
		switch {
		case r == quote || r == '\\':
			b.WriteRune('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteRune(quote)
	return b.String()
}
