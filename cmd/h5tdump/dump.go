package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-h5table/tablefile"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

type dumpOptions struct {
	format string
	rows   int
	attrs  bool
	path   string // only nodes at or below this path
}

type fileReport struct {
	Path    string       `json:"path" yaml:"path"`
	Format  string       `json:"format" yaml:"format"`
	ID      string       `json:"id,omitempty" yaml:"id,omitempty"`
	Created *time.Time   `json:"created,omitempty" yaml:"created,omitempty"`
	Size    int64        `json:"size" yaml:"size"`
	Nodes   []nodeReport `json:"nodes" yaml:"nodes"`
}

type nodeReport struct {
	Path    string             `json:"path" yaml:"path"`
	Kind    string             `json:"kind" yaml:"kind"`
	Title   string             `json:"title,omitempty" yaml:"title,omitempty"`
	Rows    int                `json:"rows,omitempty" yaml:"rows,omitempty"`
	Chunks  int                `json:"chunks,omitempty" yaml:"chunks,omitempty"`
	Filters *tablefile.Filters `json:"filters,omitempty" yaml:"filters,omitempty"`
	Columns []columnReport     `json:"columns,omitempty" yaml:"columns,omitempty"`
	Attrs   map[string]any     `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Data    []map[string]any   `json:"data,omitempty" yaml:"data,omitempty"`
}

type columnReport struct {
	Name  string `json:"name" yaml:"name"`
	Dtype string `json:"dtype" yaml:"dtype"`
	Shape []int  `json:"shape,omitempty" yaml:"shape,omitempty"`
}

// report collects the nodes of f below opts.path.
func report(f *tablefile.File, opts dumpOptions) (*fileReport, error) {
	start := f.Root()
	if opts.path != "" && opts.path != "/" {
		g, err := f.Group(opts.path)
		if err != nil {
			t, terr := f.Table(opts.path)
			if terr != nil {
				return nil, err
			}
			n, err := tableReport(t, opts)
			if err != nil {
				return nil, err
			}
			return newFileReport(f, []nodeReport{n}), nil
		}
		start = g
	}

	var nodes []nodeReport
	err := tablefile.Walk(start, func(path string, n tablefile.Node) error {
		switch x := n.(type) {
		case *tablefile.Group:
			nodes = append(nodes, nodeReport{Path: path, Kind: "group", Attrs: attrsOf(x, opts)})
		case *tablefile.Table:
			r, err := tableReport(x, opts)
			if err != nil {
				return err
			}
			nodes = append(nodes, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newFileReport(f, nodes), nil
}

func newFileReport(f *tablefile.File, nodes []nodeReport) *fileReport {
	r := &fileReport{
		Path:   f.Path(),
		Format: "h5t",
		Size:   f.Size(),
		Nodes:  nodes,
	}
	if f.IsHDF5() {
		r.Format = "hdf5"
		return r
	}
	created := f.Created().UTC()
	r.ID = f.ID().String()
	r.Created = &created
	return r
}

func tableReport(t *tablefile.Table, opts dumpOptions) (nodeReport, error) {
	filters := t.Filters()
	r := nodeReport{
		Path:    t.Path(),
		Kind:    "table",
		Title:   t.Title(),
		Rows:    t.Len(),
		Chunks:  t.NumChunks(),
		Filters: &filters,
		Attrs:   attrsOf(t, opts),
	}
	for _, c := range t.Columns() {
		r.Columns = append(r.Columns, columnReport{Name: c.Name, Dtype: c.Dtype, Shape: c.Shape})
	}
	for i := 0; i < opts.rows && i < t.Len(); i++ {
		row, err := t.Row(i)
		if err != nil {
			return r, err
		}
		m := row.Map()
		for k, v := range m {
			m[k] = displayValue(v)
		}
		r.Data = append(r.Data, m)
	}
	return r, nil
}

func attrsOf(n tablefile.Node, opts dumpOptions) map[string]any {
	if !opts.attrs || n.Attrs().Len() == 0 {
		return nil
	}
	out := make(map[string]any, n.Attrs().Len())
	for _, name := range n.Attrs().Names() {
		v, err := n.Attrs().Get(name)
		if err != nil {
			out[name] = "<" + err.Error() + ">"
			continue
		}
		out[name] = v
	}
	return out
}

// displayValue turns stored strings into text.
func displayValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case [][]byte:
		out := make([]string, len(x))
		for i, b := range x {
			out[i] = string(b)
		}
		return out
	}
	return v
}

func writeReport(w io.Writer, r *fileReport, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case formatText, "":
		return writeText(w, r)
	}
	return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
}

func writeText(w io.Writer, r *fileReport) error {
	if r.ID == "" {
		fmt.Fprintf(w, "file %s (%d bytes, %s)\n", r.Path, r.Size, r.Format)
	} else {
		fmt.Fprintf(w, "file %s (%d bytes, id %s)\n", r.Path, r.Size, r.ID)
	}
	for _, n := range r.Nodes {
		depth := strings.Count(strings.TrimPrefix(n.Path, "/"), "/")
		if n.Path == "/" {
			depth = -1
		}
		indent := strings.Repeat("  ", depth+1)

		if n.Kind == "group" {
			fmt.Fprintf(w, "%sgroup %s\n", indent, n.Path)
		} else {
			fmt.Fprintf(w, "%stable %s %q rows=%d chunks=%d complib=%s\n",
				indent, n.Path, n.Title, n.Rows, n.Chunks, n.Filters.Complib)
			for _, c := range n.Columns {
				if len(c.Shape) > 0 {
					fmt.Fprintf(w, "%s  %s %s%v\n", indent, c.Name, c.Dtype, c.Shape)
				} else {
					fmt.Fprintf(w, "%s  %s %s\n", indent, c.Name, c.Dtype)
				}
			}
		}

		for _, k := range slices.Sorted(maps.Keys(n.Attrs)) {
			fmt.Fprintf(w, "%s  @%s = %v\n", indent, k, n.Attrs[k])
		}
		for i, row := range n.Data {
			fmt.Fprintf(w, "%s  [%d]", indent, i)
			for _, c := range n.Columns {
				fmt.Fprintf(w, " %s=%v", c.Name, row[c.Name])
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}
