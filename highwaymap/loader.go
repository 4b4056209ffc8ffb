package highwaymap

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// fieldsPerRow is x, y, s, dx, dy.
const fieldsPerRow = 5

// Read parses a whitespace separated waypoint table with rows "x y s dx dy". Blank lines and
// lines starting with '#' are skipped.
func Read(r io.Reader) ([]Waypoint, error) {
	var waypoints []Waypoint
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != fieldsPerRow {
			return nil, errors.Errorf("line %d: expected %d fields, got %d", lineNum, fieldsPerRow, len(fields))
		}
		values := make([]float64, fieldsPerRow)
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d field %d", lineNum, i+1)
			}
			values[i] = v
		}

		waypoints = append(waypoints, Waypoint{
			Index:    len(waypoints),
			Position: r3.Vector{X: values[0], Y: values[1]},
			S:        values[2],
			Normal:   r3.Vector{X: values[3], Y: values[4]},
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading waypoint table")
	}
	return waypoints, nil
}

// Load reads the waypoint table at path and builds a Map from it.
func Load(path string, maxS float64, reference r3.Vector) (*Map, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening waypoint table")
	}
	defer func() {
		_ = f.Close()
	}()

	waypoints, err := Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	m, err := NewMap(waypoints, maxS, reference)
	if err != nil {
		return nil, errors.Wrapf(err, "building map from %s", path)
	}
	return m, nil
}
